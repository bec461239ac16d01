// Package retry models delivery retry schedules: how many times to retry
// a failed delivery and how long to wait between attempts.
//
// A schedule is written as a comma-separated list of delay specs, each of
// the form "[attempts*]duration":
//
//	"5m"          one attempt after five minutes
//	"5*15m"       five attempts, fifteen minutes apart
//	"4*15m,3*1h"  four attempts 15m apart, then three attempts 1h apart
//
// Durations accept ms, s (sec), m (minute), h (hour), and d (day) units;
// a bare number is milliseconds.
package retry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when a spec omits a component.
const (
	// DefaultDelayTime is used when no duration is given.
	DefaultDelayTime = 6 * time.Hour

	// DefaultAttempts is used when no attempt count is given.
	DefaultAttempts = 1
)

// ErrInvalidDelay is returned for delay specs that cannot be parsed.
// Use errors.Is() to check for it.
var ErrInvalidDelay = errors.New("retry: invalid delay spec")

// Delay is one rung of a retry schedule: a wait duration applied for a
// number of consecutive attempts.
type Delay struct {
	// Attempts is how many consecutive retries use this delay.
	Attempts int
	// Duration is the wait before each of those retries.
	Duration time.Duration
}

// DefaultDelay returns the delay used when no schedule is configured:
// one attempt after six hours.
func DefaultDelay() Delay {
	return Delay{Attempts: DefaultAttempts, Duration: DefaultDelayTime}
}

// ParseDelay parses a single "[attempts*]duration" spec.
func ParseDelay(spec string) (Delay, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Delay{}, fmt.Errorf("%w: empty spec", ErrInvalidDelay)
	}

	parts := strings.Split(spec, "*")
	switch len(parts) {
	case 1:
		duration, err := parseDuration(parts[0])
		if err != nil {
			return Delay{}, err
		}
		return Delay{Attempts: DefaultAttempts, Duration: duration}, nil
	case 2:
		attempts, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return Delay{}, fmt.Errorf("%w: attempt count in %q: %v", ErrInvalidDelay, spec, err)
		}
		if attempts < 0 {
			return Delay{}, fmt.Errorf("%w: negative attempt count in %q", ErrInvalidDelay, spec)
		}
		duration, err := parseDuration(parts[1])
		if err != nil {
			return Delay{}, err
		}
		return Delay{Attempts: attempts, Duration: duration}, nil
	default:
		return Delay{}, fmt.Errorf("%w: %q contains too many parts", ErrInvalidDelay, spec)
	}
}

// Expand returns the delay repeated once per attempt.
func (d Delay) Expand() []time.Duration {
	expanded := make([]time.Duration, d.Attempts)
	for i := range expanded {
		expanded[i] = d.Duration
	}
	return expanded
}

func (d Delay) String() string {
	return fmt.Sprintf("%d*%s", d.Attempts, d.Duration)
}

// delay duration units, longest names first so that "minutes" is not cut
// short by "m".
var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"msecs", time.Millisecond},
	{"msec", time.Millisecond},
	{"ms", time.Millisecond},
	{"seconds", time.Second},
	{"second", time.Second},
	{"secs", time.Second},
	{"sec", time.Second},
	{"s", time.Second},
	{"minutes", time.Minute},
	{"minute", time.Minute},
	{"mins", time.Minute},
	{"min", time.Minute},
	{"m", time.Minute},
	{"hours", time.Hour},
	{"hour", time.Hour},
	{"hrs", time.Hour},
	{"hr", time.Hour},
	{"h", time.Hour},
	{"days", 24 * time.Hour},
	{"day", 24 * time.Hour},
	{"d", 24 * time.Hour},
}

// parseDuration parses "amount[ ]unit". A missing unit means milliseconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrInvalidDelay)
	}

	unit := time.Millisecond
	for _, candidate := range durationUnits {
		if strings.HasSuffix(s, candidate.suffix) {
			unit = candidate.unit
			s = strings.TrimSpace(strings.TrimSuffix(s, candidate.suffix))
			break
		}
	}

	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: duration amount %q: %v", ErrInvalidDelay, s, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", ErrInvalidDelay, s)
	}
	return time.Duration(amount) * unit, nil
}

// Schedule is an ordered list of delays applied across successive retries.
type Schedule struct {
	delays []Delay
}

// NewSchedule builds a schedule from explicit delays.
func NewSchedule(delays ...Delay) Schedule {
	return Schedule{delays: delays}
}

// ParseSchedule parses a comma-separated list of delay specs. An empty
// string yields the default schedule of a single six-hour delay.
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return NewSchedule(DefaultDelay()), nil
	}

	var delays []Delay
	for _, part := range strings.Split(spec, ",") {
		delay, err := ParseDelay(part)
		if err != nil {
			return Schedule{}, err
		}
		delays = append(delays, delay)
	}
	return Schedule{delays: delays}, nil
}

// Delays returns the schedule's rungs in order.
func (s Schedule) Delays() []Delay {
	return s.delays
}

// Expanded flattens the schedule into one duration per retry attempt.
func (s Schedule) Expanded() []time.Duration {
	var expanded []time.Duration
	for _, delay := range s.delays {
		expanded = append(expanded, delay.Expand()...)
	}
	return expanded
}

// MaxRetries returns the total number of retry attempts in the schedule.
func (s Schedule) MaxRetries() int {
	total := 0
	for _, delay := range s.delays {
		total += delay.Attempts
	}
	return total
}

// NextAfter returns the wait before the given retry attempt (1-based).
// Attempts past the end of the schedule reuse the final delay, so a
// caller retrying beyond MaxRetries keeps a sane cadence; ok is false
// when the schedule is empty.
func (s Schedule) NextAfter(attempt int) (wait time.Duration, ok bool) {
	expanded := s.Expanded()
	if len(expanded) == 0 || attempt < 1 {
		return 0, false
	}
	if attempt > len(expanded) {
		return expanded[len(expanded)-1], true
	}
	return expanded[attempt-1], true
}

func (s Schedule) String() string {
	parts := make([]string, len(s.delays))
	for i, delay := range s.delays {
		parts[i] = delay.String()
	}
	return strings.Join(parts, ",")
}
