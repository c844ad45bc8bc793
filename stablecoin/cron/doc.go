// Package cron parses job schedules and runs a function on them.
package cron
