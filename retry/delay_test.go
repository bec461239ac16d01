package retry

import (
	"errors"
	"testing"
	"time"
)

func TestParseDelay(t *testing.T) {
	tests := []struct {
		spec string
		want Delay
	}{
		{"500", Delay{Attempts: 1, Duration: 500 * time.Millisecond}},
		{"500ms", Delay{Attempts: 1, Duration: 500 * time.Millisecond}},
		{"30s", Delay{Attempts: 1, Duration: 30 * time.Second}},
		{"15m", Delay{Attempts: 1, Duration: 15 * time.Minute}},
		{"6h", Delay{Attempts: 1, Duration: 6 * time.Hour}},
		{"2d", Delay{Attempts: 1, Duration: 48 * time.Hour}},
		{"2 minutes", Delay{Attempts: 1, Duration: 2 * time.Minute}},
		{"5*15m", Delay{Attempts: 5, Duration: 15 * time.Minute}},
		{"0*1h", Delay{Attempts: 0, Duration: time.Hour}},
		{" 3 * 10s ", Delay{Attempts: 3, Duration: 10 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseDelay(tt.spec)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDelayErrors(t *testing.T) {
	for _, spec := range []string{
		"",
		"-1*15m",
		"x*15m",
		"5*15m*2",
		"abc",
		"-500",
		"5*",
	} {
		t.Run(spec, func(t *testing.T) {
			if _, err := ParseDelay(spec); !errors.Is(err, ErrInvalidDelay) {
				t.Errorf("expected ErrInvalidDelay, got %v", err)
			}
		})
	}
}

func TestDelayExpand(t *testing.T) {
	delay := Delay{Attempts: 3, Duration: time.Minute}
	expanded := delay.Expand()
	if len(expanded) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(expanded))
	}
	for i, d := range expanded {
		if d != time.Minute {
			t.Errorf("entry %d: got %v, want 1m", i, d)
		}
	}

	if got := (Delay{Attempts: 0, Duration: time.Minute}).Expand(); len(got) != 0 {
		t.Errorf("zero attempts should expand to nothing, got %v", got)
	}
}

func TestDefaultDelay(t *testing.T) {
	delay := DefaultDelay()
	if delay.Attempts != 1 || delay.Duration != 6*time.Hour {
		t.Errorf("got %v, want one attempt after six hours", delay)
	}
}

func TestParseSchedule(t *testing.T) {
	t.Run("multi rung schedule", func(t *testing.T) {
		schedule, err := ParseSchedule("4*15m, 3*1h, 1d")
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}

		if got := schedule.MaxRetries(); got != 8 {
			t.Errorf("expected 8 retries, got %d", got)
		}

		expanded := schedule.Expanded()
		want := []time.Duration{
			15 * time.Minute, 15 * time.Minute, 15 * time.Minute, 15 * time.Minute,
			time.Hour, time.Hour, time.Hour,
			24 * time.Hour,
		}
		if len(expanded) != len(want) {
			t.Fatalf("expected %d delays, got %d", len(want), len(expanded))
		}
		for i := range want {
			if expanded[i] != want[i] {
				t.Errorf("delay %d: got %v, want %v", i, expanded[i], want[i])
			}
		}
	})

	t.Run("empty spec uses default", func(t *testing.T) {
		schedule, err := ParseSchedule("")
		if err != nil {
			t.Fatalf("parse failed: %v", err)
		}
		if got := schedule.MaxRetries(); got != 1 {
			t.Errorf("expected 1 retry, got %d", got)
		}
		wait, ok := schedule.NextAfter(1)
		if !ok || wait != 6*time.Hour {
			t.Errorf("expected 6h wait, got %v (ok=%t)", wait, ok)
		}
	})

	t.Run("invalid rung fails whole schedule", func(t *testing.T) {
		if _, err := ParseSchedule("15m,bogus,1h"); !errors.Is(err, ErrInvalidDelay) {
			t.Errorf("expected ErrInvalidDelay, got %v", err)
		}
	})
}

func TestScheduleNextAfter(t *testing.T) {
	schedule, err := ParseSchedule("2*10s,1m")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tests := []struct {
		attempt int
		want    time.Duration
		ok      bool
	}{
		{1, 10 * time.Second, true},
		{2, 10 * time.Second, true},
		{3, time.Minute, true},
		// Past the schedule the final delay keeps applying.
		{4, time.Minute, true},
		{100, time.Minute, true},
		{0, 0, false},
	}

	for _, tt := range tests {
		wait, ok := schedule.NextAfter(tt.attempt)
		if wait != tt.want || ok != tt.ok {
			t.Errorf("NextAfter(%d): got (%v, %t), want (%v, %t)", tt.attempt, wait, ok, tt.want, tt.ok)
		}
	}

	if _, ok := NewSchedule().NextAfter(1); ok {
		t.Error("empty schedule should report no delay")
	}
}

func TestScheduleString(t *testing.T) {
	schedule, err := ParseSchedule("4*15m,1h")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := schedule.String(); got != "4*15m0s,1*1h0m0s" {
		t.Errorf("unexpected string form: %q", got)
	}
}
