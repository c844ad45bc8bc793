// Package rabbitmq connects to a broker with amqp091-go and publishes the
// domain events with publisher confirms and trace context in the headers.
package rabbitmq
