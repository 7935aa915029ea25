package slurm

import (
	"testing"
	"time"
)

func TestParseElapsed(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"12:34", 12*time.Minute + 34*time.Second},
		{"0:00", 0},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{"2-03:04", 51*time.Hour + 4*time.Minute},
		{"1-00:00:30", 24*time.Hour + 30*time.Second},
		{"", 0},
		{"N/A", 0},
		{"UNLIMITED", 0},
		{"x-1:2", 0},
	}
	for _, c := range cases {
		if got := ParseElapsed(c.in); got != c.want {
			t.Errorf("ParseElapsed(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
