package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

func TestCancellationAllowed(t *testing.T) {
	placed := time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		now   time.Time
		allow bool
	}{
		{name: "right after placing", now: placed, allow: true},
		{name: "nine minutes fifty nine", now: placed.Add(9*time.Minute + 59*time.Second), allow: true},
		{name: "one nanosecond before boundary", now: placed.Add(domain.CancellationWindow - time.Nanosecond), allow: true},
		{name: "exactly ten minutes", now: placed.Add(10 * time.Minute), allow: false},
		{name: "long after", now: placed.Add(3 * time.Hour), allow: false},
		{name: "clock behind by a minute", now: placed.Add(-time.Minute), allow: true},
		{name: "clock behind by ten minutes", now: placed.Add(-10 * time.Minute), allow: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.CancellationAllowed(placed, tc.now); got != tc.allow {
				t.Fatalf("CancellationAllowed = %v, want %v", got, tc.allow)
			}
		})
	}
}
