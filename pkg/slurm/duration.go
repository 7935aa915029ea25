package slurm

import (
	"strconv"
	"strings"
	"time"
)

// ParseElapsed converts squeue's elapsed/time-used notation into a
// Duration. Accepted shapes: "SS" is never produced, the scheduler prints
// "MM:SS", "HH:MM:SS", "D-HH:MM" or "D-HH:MM:SS". Anything unparsable
// yields zero, matching the parser policy of skipping rather than failing.
func ParseElapsed(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	var days int64
	if i := strings.IndexByte(s, '-'); i >= 0 {
		d, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0
		}
		days = d
		s = s[i+1:]
	}

	parts := strings.Split(s, ":")
	var h, m, sec int64
	var err error
	switch len(parts) {
	case 3:
		if h, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
			return 0
		}
		if m, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return 0
		}
		if sec, err = strconv.ParseInt(parts[2], 10, 64); err != nil {
			return 0
		}
	case 2:
		if days > 0 {
			// D-HH:MM
			if h, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
				return 0
			}
			if m, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
				return 0
			}
		} else {
			// MM:SS
			if m, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
				return 0
			}
			if sec, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
				return 0
			}
		}
	default:
		return 0
	}

	return time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second
}
