package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eyeonidea/contentd/pkg/models"
)

// ErrThrottled is returned when a sender exceeded a submission policy.
var ErrThrottled = errors.New("too many submissions")

// Throttle checks submissions per sender against policies.
type Throttle struct {
	policies []models.ThrottlePolicy
	ledger   Ledger
	now      func() time.Time
}

// NewThrottle creates a Throttle with the given policies and ledger.
func NewThrottle(policies []models.ThrottlePolicy, l Ledger) *Throttle {
	return &Throttle{policies: policies, ledger: l, now: time.Now}
}

// Check returns ErrThrottled if sender has reached any policy's limit.
func (t *Throttle) Check(ctx context.Context, sender string) error {
	for _, p := range t.policies {
		used, err := t.ledger.CountBySender(ctx, sender, periodStart(p.Period, t.now()))
		if err != nil {
			return fmt.Errorf("throttle check: %w", err)
		}
		if used >= p.MaxSubmissions {
			return ErrThrottled
		}
	}
	return nil
}

// Status returns the sender's standing against every policy.
func (t *Throttle) Status(ctx context.Context, sender string) ([]models.ThrottleStatus, error) {
	statuses := make([]models.ThrottleStatus, 0, len(t.policies))
	for _, p := range t.policies {
		used, err := t.ledger.CountBySender(ctx, sender, periodStart(p.Period, t.now()))
		if err != nil {
			return nil, fmt.Errorf("throttle status: %w", err)
		}
		statuses = append(statuses, models.ThrottleStatus{
			Policy:    p,
			Sender:    sender,
			Used:      used,
			Remaining: max(p.MaxSubmissions-used, 0),
		})
	}
	return statuses, nil
}

func periodStart(period models.ThrottlePeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.ThrottleHourly:
		return now.Truncate(time.Hour)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
