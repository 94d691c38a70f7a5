package cron_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigil-fl/vigil/pkg/cron"
)

func TestParse(t *testing.T) {
	cases := []struct {
		desc string
		expr string
		err  error
	}{
		{
			desc: "daily at 3am",
			expr: "0 3 * * *",
		},
		{
			desc: "every five minutes",
			expr: "*/5 * * * *",
		},
		{
			desc: "empty expression",
			expr: "",
			err:  cron.ErrInvalidExpression,
		},
		{
			desc: "too few fields",
			expr: "0 3 * *",
			err:  cron.ErrInvalidExpression,
		},
		{
			desc: "garbage",
			expr: "not a cron line",
			err:  cron.ErrInvalidExpression,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := cron.Parse(tc.expr)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected %v got %v", tc.desc, tc.err, err))
			if tc.err == nil {
				assert.NotNil(t, s)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, cron.Validate("30 2 * * 1"))
	assert.Equal(t, cron.ErrInvalidExpression, cron.Validate("61 * * * *"))
}

func TestNext(t *testing.T) {
	s, err := cron.Parse("0 3 * * *")
	require.NoError(t, err)

	from := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	next := s.Next(from, "")
	assert.Equal(t, time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC), next)

	before := time.Date(2025, 6, 10, 1, 0, 0, 0, time.UTC)
	next = s.Next(before, "")
	assert.Equal(t, time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC), next)

	next = s.Next(from, "no/such-zone")
	assert.Equal(t, time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC), next)
}

func TestNextNil(t *testing.T) {
	var s *cron.Schedule
	assert.True(t, s.Next(time.Now(), "").IsZero())
}
