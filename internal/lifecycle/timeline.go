package lifecycle

import "time"

// Badge marks how a timeline step is rendered.
type Badge string

const (
	BadgeCurrent       Badge = "current"
	BadgeInProgress    Badge = "in-progress"
	BadgeCompleted     Badge = "completed"
	BadgePendingAction Badge = "pending-action"
	BadgeUpcoming      Badge = "upcoming"
)

// Step is one entry of the order timeline.
type Step struct {
	Key         Stage      `json:"key"`
	Label       string     `json:"label"`
	Icon        string     `json:"icon"`
	Badge       Badge      `json:"badge"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Description string     `json:"description"`
}

type stepInfo struct {
	label       string
	icon        string
	description string
}

var steps = map[Stage]stepInfo{
	StagePending:        {"Order Pending", "clock", "Your order has been received and is waiting for a vendor."},
	StageVendorAccepted: {"Vendor Accepted", "store", "A vendor accepted your order. Your quote is ready."},
	StagePaymentDone:    {"Payment Completed", "credit-card", "We received your payment."},
	StageOrderConfirmed: {"Order Confirmed", "check-circle", "Your order is confirmed and scheduled for dispatch."},
	StageTruckLoading:   {"Truck Loading", "package", "Your materials are being loaded onto the truck."},
	StageInTransit:      {"In Transit", "truck", "The truck has left the warehouse."},
	StageShipped:        {"Shipped", "ship", "Your order is on its way to the delivery hub."},
	StageOutForDelivery: {"Out for Delivery", "map-pin", "The driver is on the way to your site."},
	StageDelivered:      {"Delivered", "home", "Your order has been delivered."},
	StageCancelled:      {"Order Cancelled", "x-circle", "This order has been cancelled."},
	StageReturned:       {"Order Returned", "rotate-ccw", "This order has been returned."},
}

func newStep(st Stage, badge Badge) Step {
	info := steps[st]
	return Step{
		Key:         st,
		Label:       info.label,
		Icon:        info.icon,
		Badge:       badge,
		Description: info.description,
	}
}

// Label is the human readable name of a stage.
func Label(stage Stage) string {
	if info, ok := steps[stage]; ok {
		return info.label
	}
	return steps[StagePending].label
}

// Timeline derives the ordered timeline for an order at the given stage.
//
// Journey steps before the stage are completed, the stage itself is current
// and everything after is upcoming. A cancelled order collapses to a single
// cancelled step. The result is never empty.
func Timeline(stage Stage, orderDate time.Time) []Step {
	switch stage {
	case StageCancelled:
		return []Step{newStep(StageCancelled, BadgeCurrent)}
	case StageReturned:
		out := make([]Step, 0, len(journey)+1)
		for _, st := range journey {
			out = append(out, newStep(st, BadgeCompleted))
		}
		out = append(out, newStep(StageReturned, BadgeCurrent))
		stampFirst(out, orderDate)
		return out
	}

	current := stage.position()
	out := make([]Step, 0, len(journey))
	for i, st := range journey {
		badge := BadgeUpcoming
		switch {
		case i < current:
			badge = BadgeCompleted
		case i == current:
			badge = BadgeCurrent
		}
		out = append(out, newStep(st, badge))
	}
	stampFirst(out, orderDate)
	return out
}

func stampFirst(out []Step, orderDate time.Time) {
	if orderDate.IsZero() {
		return
	}
	ts := orderDate
	out[0].Timestamp = &ts
}

// CurrentStep returns the step marked current.
func CurrentStep(timeline []Step) (Step, bool) {
	for _, s := range timeline {
		if s.Badge == BadgeCurrent {
			return s, true
		}
	}
	return Step{}, false
}
