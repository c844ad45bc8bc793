package cron

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidExpression is returned for a malformed schedule.
	ErrInvalidExpression = errors.New("invalid cron expression")
	// ErrNoMatch is returned when no time within a year matches.
	ErrNoMatch = errors.New("cron: no matching time found within iteration limit")
)

// Schedule computes the next run after a reference time.
type Schedule interface {
	Next(time.Time) (time.Time, error)
}

// Every runs at a fixed interval, aligned to multiples of the interval.
type Every time.Duration

// Next implements Schedule.
func (e Every) Next(from time.Time) (time.Time, error) {
	d := time.Duration(e)
	if d <= 0 {
		return time.Time{}, fmt.Errorf("%w: non-positive interval", ErrInvalidExpression)
	}

	return from.UTC().Truncate(d).Add(d), nil
}

type field struct {
	name     string
	min, max int
}

var fields = [...]field{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

type schedule struct {
	minutes, hours, doms, months, dows []int
}

// Parse accepts a 5-field expression (minute hour day-of-month month
// day-of-week) or "@every <duration>" for sub-minute jobs.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: invalid interval %q", ErrInvalidExpression, rest)
		}

		return Every(d), nil
	}

	parts := strings.Fields(expr)
	if len(parts) != len(fields) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrInvalidExpression, len(fields), len(parts))
	}

	parsed := make([][]int, len(fields))

	for i, f := range fields {
		vals, err := parseField(parts[i], f.min, f.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", f.name, err)
		}

		parsed[i] = vals
	}

	return &schedule{minutes: parsed[0], hours: parsed[1], doms: parsed[2], months: parsed[3], dows: parsed[4]}, nil
}

// Next implements Schedule. Times are evaluated in UTC.
func (s *schedule) Next(from time.Time) (time.Time, error) {
	from = from.UTC()
	c := from.Add(time.Minute).Truncate(time.Minute)

	const maxIterations = 366 * 24 * 60
	for range maxIterations {
		switch {
		case !slices.Contains(s.months, int(c.Month())):
			c = time.Date(c.Year(), c.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		case !slices.Contains(s.doms, c.Day()) || !slices.Contains(s.dows, int(c.Weekday())):
			c = time.Date(c.Year(), c.Month(), c.Day()+1, 0, 0, 0, 0, time.UTC)
		case !slices.Contains(s.hours, c.Hour()):
			c = time.Date(c.Year(), c.Month(), c.Day(), c.Hour()+1, 0, 0, 0, time.UTC)
		case !slices.Contains(s.minutes, c.Minute()):
			c = c.Add(time.Minute)
		default:
			return c, nil
		}
	}

	return time.Time{}, ErrNoMatch
}

func parseField(raw string, minVal, maxVal int) ([]int, error) {
	var out []int

	for _, part := range strings.Split(raw, ",") {
		vals, err := parsePart(part, minVal, maxVal)
		if err != nil {
			return nil, err
		}

		out = append(out, vals...)
	}

	slices.Sort(out)

	return slices.Compact(out), nil
}

func parsePart(part string, minVal, maxVal int) ([]int, error) {
	rangePart, stepPart, hasStep := strings.Cut(part, "/")

	step := 1

	if hasStep {
		s, err := strconv.Atoi(stepPart)
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("%w: invalid step %q", ErrInvalidExpression, stepPart)
		}

		step = s
	}

	lo, hi := minVal, maxVal

	switch {
	case rangePart == "*":
	case strings.Contains(rangePart, "-"):
		a, b, _ := strings.Cut(rangePart, "-")

		var errA, errB error

		lo, errA = strconv.Atoi(a)
		hi, errB = strconv.Atoi(b)

		if errA != nil || errB != nil || lo < minVal || hi > maxVal || lo > hi {
			return nil, fmt.Errorf("%w: invalid range %q", ErrInvalidExpression, rangePart)
		}
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil || v < minVal || v > maxVal {
			return nil, fmt.Errorf("%w: value %q out of bounds [%d, %d]", ErrInvalidExpression, rangePart, minVal, maxVal)
		}

		if !hasStep {
			return []int{v}, nil
		}

		lo = v
	}

	var vals []int
	for v := lo; v <= hi; v += step {
		vals = append(vals, v)
	}

	return vals, nil
}
