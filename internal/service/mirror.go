package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
	"order-tracking-service/internal/repository"
)

// StatusEvent is a status change announced by the order backend.
type StatusEvent struct {
	LeadID               string
	CustomerID           string
	Status               string
	Reason               string
	ChangedBy            string
	ChangedAt            time.Time
	OrderDate            time.Time
	DeliveryExpectedDate *time.Time
	DeliveryAddress      string
}

var ErrMissingLeadID = errors.New("status event without leadId")

// ApplyStatusEvent folds a backend event into the mirror and notifies live
// watchers. The first event for an order creates it. An event repeating the
// current stage is ignored, and so is one that would move the order
// backwards.
func (s *OrderService) ApplyStatusEvent(ctx context.Context, ev StatusEvent) error {
	return s.applyStatusEvent(ctx, ev, false)
}

// applyStatusEvent with force set skips the backwards check, for manual
// corrections.
func (s *OrderService) applyStatusEvent(ctx context.Context, ev StatusEvent, force bool) error {
	if ev.LeadID == "" {
		return ErrMissingLeadID
	}
	stage := lifecycle.Normalize(ev.Status)
	if ev.ChangedAt.IsZero() {
		ev.ChangedAt = s.now().UTC()
	}
	record := model.StatusRecord{
		Status:    string(stage),
		Reason:    ev.Reason,
		ChangedBy: ev.ChangedBy,
		Timestamp: ev.ChangedAt,
		Current:   true,
	}

	existing, err := s.repo.FindByLeadID(ctx, ev.LeadID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		orderDate := ev.OrderDate
		if orderDate.IsZero() {
			orderDate = ev.ChangedAt
		}
		err = s.repo.Create(ctx, &model.TrackedOrder{
			LeadID:               ev.LeadID,
			CustomerID:           ev.CustomerID,
			Status:               string(stage),
			OrderDate:            orderDate,
			DeliveryExpectedDate: ev.DeliveryExpectedDate,
			DeliveryAddress:      ev.DeliveryAddress,
			History:              []model.StatusRecord{record},
		})
		if err != nil {
			return err
		}
	case err != nil:
		return err
	case lifecycle.Normalize(existing.Status) == stage:
		s.log.Debug("duplicate status event ignored", zap.String("leadId", ev.LeadID), zap.String("status", string(stage)))
		return nil
	case !force && stale(existing, stage, ev.ChangedAt):
		s.log.Info("stale status event ignored",
			zap.String("leadId", ev.LeadID),
			zap.String("status", string(stage)),
			zap.String("current", existing.Status),
			zap.Time("changedAt", ev.ChangedAt),
		)
		return nil
	default:
		if err := s.repo.ApplyStatus(ctx, ev.LeadID, string(stage), record); err != nil {
			return err
		}
		if ev.DeliveryAddress != "" || ev.DeliveryExpectedDate != nil {
			if err := s.repo.UpdateDelivery(ctx, ev.LeadID, ev.DeliveryAddress, ev.DeliveryExpectedDate); err != nil {
				return err
			}
		}
	}

	s.log.Info("order status mirrored", zap.String("leadId", ev.LeadID), zap.String("status", string(stage)))

	if s.hub.Watchers(ev.LeadID) == 0 {
		return nil
	}
	t, err := s.repo.FindByLeadID(ctx, ev.LeadID)
	if err != nil {
		return err
	}
	s.hub.Publish(trackingView(t, s.window, s.now()))
	return nil
}

// stale reports whether moving existing to stage at the given time would go
// backwards: the event predates the current record, the order is closed, or
// the stage is earlier in the journey. Moving into cancelled or returned is
// always forward.
func stale(existing *model.TrackedOrder, stage lifecycle.Stage, at time.Time) bool {
	if cur, ok := existing.CurrentRecord(); ok && at.Before(cur.Timestamp) {
		return true
	}
	if stage == lifecycle.StageCancelled || stage == lifecycle.StageReturned {
		return false
	}
	current := lifecycle.Normalize(existing.Status)
	if current == lifecycle.StageCancelled || current == lifecycle.StageReturned {
		return true
	}
	return !stage.Reached(current)
}
