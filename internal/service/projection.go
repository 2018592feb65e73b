package service

import (
	"time"

	"order-tracking-service/internal/dto"
	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
)

const reasonBackendLocked = "changes are disabled for this order"

// changeWindow applies the local gate and, when the backend has answered,
// its own canMakeChanges flag.
func changeWindow(stage lifecycle.Stage, o *model.Order, elig *model.Eligibility, window time.Duration, now time.Time) lifecycle.ChangeWindow {
	placedAt := o.OrderDate
	if elig != nil && !elig.OrderPlacedAt.IsZero() {
		placedAt = elig.OrderPlacedAt
	}
	cw := lifecycle.Eligibility(stage, placedAt, window, now)
	if cw.Allowed && elig != nil && !elig.CanMakeChanges {
		cw.Allowed = false
		cw.Reason = reasonBackendLocked
	}
	return cw
}

func documentLinks(leadID string, kinds []lifecycle.DocumentKind) []dto.DocumentLink {
	out := make([]dto.DocumentLink, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, dto.DocumentLink{
			Kind:  k,
			Title: k.Title(),
			URL:   "/orders/" + leadID + "/documents/" + string(k),
		})
	}
	return out
}

func summarize(o *model.Order, elig *model.Eligibility, window time.Duration, now time.Time) dto.OrderSummary {
	stage := lifecycle.Normalize(o.Status)
	return dto.OrderSummary{
		LeadID:               o.LeadID,
		Status:               o.Status,
		Stage:                stage,
		StageLabel:           lifecycle.Label(stage),
		OrderDate:            o.OrderDate,
		DeliveryExpectedDate: o.DeliveryExpectedDate,
		DeliveryAddress:      o.DeliveryAddress,
		ItemCount:            len(o.Items),
		Total:                o.Total(),
		Documents:            documentLinks(o.LeadID, lifecycle.DocumentsWithArtifacts(stage, o.Artifacts)),
		ChangeWindow:         changeWindow(stage, o, elig, window, now),
	}
}

func orderView(o *model.Order, elig *model.Eligibility, window time.Duration, now time.Time) *dto.OrderView {
	summary := summarize(o, elig, window, now)

	addr, dates := o.AddressChangeHistory, o.DeliveryDateChangeHistory
	if elig != nil {
		if len(elig.AddressChangeHistory) > len(addr) {
			addr = elig.AddressChangeHistory
		}
		if len(elig.DeliveryDateChangeHistory) > len(dates) {
			dates = elig.DeliveryDateChangeHistory
		}
	}

	return &dto.OrderView{
		OrderSummary:              summary,
		Order:                     o,
		Timeline:                  lifecycle.Timeline(summary.Stage, o.OrderDate),
		AddressChangeHistory:      nonNil(addr),
		DeliveryDateChangeHistory: nonNil(dates),
	}
}

func trackingView(t *model.TrackedOrder, window time.Duration, now time.Time) dto.TrackingView {
	o := t.AsOrder()
	stage := lifecycle.Normalize(t.Status)
	return dto.TrackingView{
		LeadID:          t.LeadID,
		CustomerID:      t.CustomerID,
		Status:          t.Status,
		Stage:           stage,
		StageLabel:      lifecycle.Label(stage),
		DeliveryAddress: t.DeliveryAddress,
		Timeline:        lifecycle.Timeline(stage, t.OrderDate),
		Documents:       documentLinks(t.LeadID, lifecycle.Documents(stage)),
		ChangeWindow:    changeWindow(stage, o, nil, window, now),
		History:         t.History,
		UpdatedAt:       t.UpdatedAt,
	}
}

func computeStats(stages []lifecycle.Stage) dto.Stats {
	st := dto.Stats{ByStatus: make(map[lifecycle.Stage]int)}
	for _, s := range stages {
		st.Total++
		st.ByStatus[s]++
		switch s {
		case lifecycle.StageDelivered:
			st.Delivered++
		case lifecycle.StageCancelled, lifecycle.StageReturned:
			st.Closed++
		default:
			st.Active++
		}
	}
	return st
}

func nonNil(in []model.ChangeRecord) []model.ChangeRecord {
	if in == nil {
		return []model.ChangeRecord{}
	}
	return in
}
