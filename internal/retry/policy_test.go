package retry

import (
	"testing"
	"time"

	"git.home.luguber.info/inful/blogsmith/internal/config"
)

func TestDelay_Modes(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		retry  int
		want   time.Duration
	}{
		{"fixed stays flat", NewPolicy(config.RetryBackoffFixed, time.Second, time.Minute, 3), 3, time.Second},
		{"linear grows", NewPolicy(config.RetryBackoffLinear, time.Second, time.Minute, 3), 3, 3 * time.Second},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 20*time.Second, 30*time.Second, 5), 4, 30 * time.Second},
		{"exponential grows", NewPolicy(config.RetryBackoffExponential, time.Second, time.Minute, 5), 4, 8 * time.Second},
		{"exponential capped", NewPolicy(config.RetryBackoffExponential, 10*time.Second, 30*time.Second, 5), 4, 30 * time.Second},
		{"zero retry is immediate", DefaultPolicy(), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Delay(tc.retry); got != tc.want {
				t.Fatalf("Delay(%d) = %v, want %v", tc.retry, got, tc.want)
			}
		})
	}
}

func TestNewPolicy_FallsBackOnInvalid(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	def := DefaultPolicy()
	if p != def {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestFromBuildConfig(t *testing.T) {
	p := FromBuildConfig(config.BuildConfig{
		MaxRetries:        4,
		RetryBackoff:      config.RetryBackoffExponential,
		RetryInitialDelay: "500ms",
		RetryMaxDelay:     "10s",
	})
	if p.MaxRetries != 4 || p.Initial != 500*time.Millisecond || p.Max != 10*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
