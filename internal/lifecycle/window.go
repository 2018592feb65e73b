package lifecycle

import (
	"context"
	"time"
)

// DefaultChangeWindow is how long after placement a customer may change the
// delivery address or date.
const DefaultChangeWindow = 48 * time.Hour

// Reasons reported when a change is not allowed.
const (
	ReasonExpired    = "change window expired"
	ReasonDispatched = "dispatch preparation has started"
	ReasonClosed     = "order is closed"
	ReasonNotPlaced  = "order placement time unknown"
)

// ChangeWindow is the result of the change-eligibility gate.
type ChangeWindow struct {
	Allowed     bool          `json:"allowed"`
	Expired     bool          `json:"expired"`
	HoursLeft   int           `json:"hoursLeft"`
	MinutesLeft int           `json:"minutesLeft"`
	SecondsLeft int           `json:"secondsLeft"`
	Remaining   time.Duration `json:"-"`
	Deadline    time.Time     `json:"deadline"`
	Reason      string        `json:"reason,omitempty"`
}

// StageAllowsChanges reports whether the stage alone still permits an edit.
// Edits stop once the truck starts loading, and closed orders can never be
// edited.
func StageAllowsChanges(stage Stage) bool {
	switch stage {
	case StageCancelled, StageReturned:
		return false
	}
	return !stage.Reached(StageTruckLoading)
}

// Eligibility combines the elapsed-time gate with the stage veto.
func Eligibility(stage Stage, placedAt time.Time, window time.Duration, now time.Time) ChangeWindow {
	if window <= 0 {
		window = DefaultChangeWindow
	}
	if placedAt.IsZero() {
		return ChangeWindow{Expired: true, Reason: ReasonNotPlaced}
	}

	deadline := placedAt.Add(window)
	cw := ChangeWindow{Deadline: deadline}

	remaining := deadline.Sub(now)
	if remaining <= 0 {
		cw.Expired = true
		cw.Reason = ReasonExpired
	} else {
		cw.Remaining = remaining
		total := int(remaining / time.Second)
		cw.HoursLeft = total / 3600
		cw.MinutesLeft = total % 3600 / 60
		cw.SecondsLeft = total % 60
	}

	switch {
	case stage == StageCancelled || stage == StageReturned:
		cw.Reason = ReasonClosed
	case !StageAllowsChanges(stage):
		cw.Reason = ReasonDispatched
	case !cw.Expired:
		cw.Allowed = true
	}
	return cw
}

// Countdown recomputes the change window once per second and sends it on
// the returned channel. The first value is sent immediately. The channel is
// closed after the first value that is not allowed, or when ctx is done.
// now is the clock; nil means time.Now.
func Countdown(ctx context.Context, stage Stage, placedAt time.Time, window time.Duration, now func() time.Time) <-chan ChangeWindow {
	if now == nil {
		now = time.Now
	}
	out := make(chan ChangeWindow, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			cw := Eligibility(stage, placedAt, window, now())
			select {
			case out <- cw:
			case <-ctx.Done():
				return
			}
			if !cw.Allowed {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}
