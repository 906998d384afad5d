package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTruncateToDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	require.Equal(t, NewDate(2020, 1, 2), TruncateToDate(time.Date(2020, 1, 2, 15, 30, 0, 0, time.UTC)))
	require.Equal(t, NewDate(2020, 1, 2), TruncateToDate(time.Date(2020, 1, 2, 23, 0, 0, 0, ny)))
}

func TestDateInRange(t *testing.T) {
	start := NewDate(2020, 1, 1)
	end := NewDate(2020, 1, 31)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "start is inclusive", t: start, want: true},
		{name: "end is inclusive with time of day", t: time.Date(2020, 1, 31, 20, 0, 0, 0, time.UTC), want: true},
		{name: "before", t: NewDate(2019, 12, 31), want: false},
		{name: "after", t: NewDate(2020, 2, 1), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DateInRange(tt.t, start, end))
		})
	}
}
