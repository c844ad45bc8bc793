// Package errgroup runs indexed tasks concurrently.
//
// Collector runs every task to completion and keeps all failures indexed by
// task, which is what multi-target validation needs. Panics become errors.
package errgroup
