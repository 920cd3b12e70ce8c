// Package cronexpr evaluates cron expressions against IANA timezones.
// It is a thin, stateless layer over robfig/cron's standard 5-field parser;
// parse failure is the only rejection path for malformed expressions.
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts standard 5-field expressions plus descriptors (@hourly etc.).
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Options configures evaluation. An empty Timezone means UTC.
type Options struct {
	Timezone string
}

// NextRunAfter returns the next fire time of expr strictly after the given
// instant, evaluated in the configured timezone. Any parse or timezone
// failure yields an error embedding the offending expression text.
func NextRunAfter(expr string, after time.Time, opts Options) (time.Time, error) {
	tz := opts.Timezone
	if tz == "" {
		tz = "UTC"
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid cron expression %q: unknown timezone %q: %w", expr, tz, err)
	}

	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid cron expression %q: %w", expr, err)
	}

	return schedule.Next(after.In(loc)), nil
}

// NextRun returns the next fire time strictly after now.
func NextRun(expr string, opts Options) (time.Time, error) {
	return NextRunAfter(expr, time.Now(), opts)
}

// NextRunISO is NextRun formatted as an ISO-8601 (RFC 3339) timestamp.
func NextRunISO(expr string, opts Options) (string, error) {
	next, err := NextRun(expr, opts)
	if err != nil {
		return "", err
	}
	return next.Format(time.RFC3339), nil
}

// Validate parses the expression and timezone pair and discards the result.
func Validate(expr string, opts Options) error {
	_, err := NextRun(expr, opts)
	return err
}
