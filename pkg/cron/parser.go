// Package cron parses five-field cron expressions used to schedule
// recurring coordinator maintenance such as alert pruning.
package cron

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidExpression = errors.New("invalid cron expression")

// Schedule is a parsed expression over minute, hour, day of month,
// month and day of week fields.
type Schedule struct {
	spec cron.Schedule
}

func Parse(expr string) (*Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidExpression
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, ErrInvalidExpression
	}

	return &Schedule{spec: spec}, nil
}

func Validate(expr string) error {
	_, err := Parse(expr)

	return err
}

// Next returns the first activation strictly after from, evaluated in
// the given timezone. An empty or unknown timezone falls back to UTC.
func (s *Schedule) Next(from time.Time, timezone string) time.Time {
	if s == nil || s.spec == nil {
		return time.Time{}
	}

	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}

	return s.spec.Next(from.In(loc))
}
