// Package lifecycle projects a raw order record into what the customer sees:
// its canonical stage, the timeline steps, the documents that can be
// downloaded and whether the order can still be edited.
//
// Everything here is a pure function of the order status, its timestamps and
// the current time. Nothing is cached or stored.
package lifecycle

import "strings"

// Stage is the canonical lifecycle stage of an order.
type Stage string

const (
	StagePending        Stage = "pending"
	StageOrderPlaced    Stage = "order_placed"
	StageVendorAccepted Stage = "vendor_accepted"
	StagePaymentDone    Stage = "payment_done"
	StageOrderConfirmed Stage = "order_confirmed"
	StageTruckLoading   Stage = "truck_loading"
	StageInTransit      Stage = "in_transit"
	StageShipped        Stage = "shipped"
	StageOutForDelivery Stage = "out_for_delivery"
	StageDelivered      Stage = "delivered"
	StageCancelled      Stage = "cancelled"
	StageReturned       Stage = "returned"
)

// journey is the fixed order in which a delivered order passes through the
// stages. order_placed, cancelled and returned sit outside of it.
var journey = []Stage{
	StagePending,
	StageVendorAccepted,
	StagePaymentDone,
	StageOrderConfirmed,
	StageTruckLoading,
	StageInTransit,
	StageShipped,
	StageOutForDelivery,
	StageDelivered,
}

var knownStages = map[Stage]bool{
	StagePending:        true,
	StageOrderPlaced:    true,
	StageVendorAccepted: true,
	StagePaymentDone:    true,
	StageOrderConfirmed: true,
	StageTruckLoading:   true,
	StageInTransit:      true,
	StageShipped:        true,
	StageOutForDelivery: true,
	StageDelivered:      true,
	StageCancelled:      true,
	StageReturned:       true,
}

// Normalize maps a raw backend status to its canonical stage. Surrounding
// whitespace, case, spaces and hyphens are ignored ("Out-For Delivery" is
// out_for_delivery). Empty or unknown values map to pending, so Normalize
// never fails.
func Normalize(raw string) Stage {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	if st := Stage(s); knownStages[st] {
		return st
	}
	return StagePending
}

// Stages returns every known stage in journey order followed by
// order_placed, cancelled and returned.
func Stages() []Stage {
	out := make([]Stage, 0, len(knownStages))
	out = append(out, journey...)
	return append(out, StageOrderPlaced, StageCancelled, StageReturned)
}

func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known stages.
func (s Stage) IsValid() bool {
	return knownStages[s]
}

// IsTerminal reports whether no further transition is expected.
func (s Stage) IsTerminal() bool {
	return s == StageDelivered || s == StageCancelled || s == StageReturned
}

// position is the index of s in the journey. order_placed shares the pending
// position; anything outside the journey also falls back to 0.
func (s Stage) position() int {
	for i, st := range journey {
		if st == s {
			return i
		}
	}
	return 0
}

// Reached reports whether s is at or past target in the journey. cancelled
// never reaches anything; returned has passed every journey stage.
func (s Stage) Reached(target Stage) bool {
	switch s {
	case StageCancelled:
		return false
	case StageReturned:
		return true
	}
	return s.position() >= target.position()
}
