// models.go
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"order-tracking-service/internal/lifecycle"
)

// Order is the record served by the order backend. Status is the raw value;
// callers normalize it with lifecycle.Normalize.
type Order struct {
	LeadID                    string               `json:"leadId"`
	CustomerID                string               `json:"customerId"`
	Status                    string               `json:"status"`
	OrderDate                 time.Time            `json:"orderDate"`
	DeliveryExpectedDate      *time.Time           `json:"deliveryExpectedDate,omitempty"`
	DeliveryAddress           string               `json:"deliveryAddress"`
	DeliveryPincode           string               `json:"deliveryPincode"`
	Items                     []Item               `json:"items"`
	DeliveryInfo              *DeliveryInfo        `json:"deliveryInfo,omitempty"`
	PaymentInfo               *PaymentInfo         `json:"paymentInfo,omitempty"`
	VendorInfo                *VendorInfo          `json:"vendorInfo,omitempty"`
	Artifacts                 *lifecycle.Artifacts `json:"artifacts,omitempty"`
	AddressChangeHistory      []ChangeRecord       `json:"addressChangeHistory,omitempty"`
	DeliveryDateChangeHistory []ChangeRecord       `json:"deliveryDateChangeHistory,omitempty"`
}

type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Total is the line amount.
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums every line of the order.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Total())
	}
	return total
}

type DeliveryInfo struct {
	DriverName     string `json:"driverName"`
	DriverPhone    string `json:"driverPhone"`
	TruckNumber    string `json:"truckNumber"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
}

type PaymentInfo struct {
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transactionId"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

type VendorInfo struct {
	VendorID   string     `json:"vendorId"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone,omitempty"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
}

// ChangeRecord is an entry of the append-only address or delivery date log.
type ChangeRecord struct {
	OldValue  string    `bson:"old_value" json:"oldValue"`
	NewValue  string    `bson:"new_value" json:"newValue"`
	Reason    string    `bson:"reason" json:"reason"`
	ChangedAt time.Time `bson:"changed_at" json:"changedAt"`
	ChangedBy string    `bson:"changed_by" json:"changedBy"`
}

// Eligibility is the backend's view of whether an order may still change.
type Eligibility struct {
	OrderPlacedAt             time.Time      `json:"orderPlacedAt"`
	CanMakeChanges            bool           `json:"canMakeChanges"`
	AddressChangeHistory      []ChangeRecord `json:"addressChangeHistory"`
	DeliveryDateChangeHistory []ChangeRecord `json:"deliveryDateChangeHistory"`
}

// TrackedOrder is the mirrored status of an order, fed by backend events.
type TrackedOrder struct {
	LeadID               string         `bson:"lead_id" json:"leadId"`
	CustomerID           string         `bson:"customer_id" json:"customerId"`
	Status               string         `bson:"status" json:"status"`
	OrderDate            time.Time      `bson:"order_date" json:"orderDate"`
	DeliveryExpectedDate *time.Time     `bson:"delivery_expected_date,omitempty" json:"deliveryExpectedDate,omitempty"`
	DeliveryAddress      string         `bson:"delivery_address" json:"deliveryAddress"`
	History              []StatusRecord `bson:"history" json:"history"`
	Changes              []ChangeRecord `bson:"changes,omitempty" json:"changes,omitempty"`
	CreatedAt            time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time      `bson:"updated_at" json:"updatedAt"`
}

type StatusRecord struct {
	Status    string    `bson:"status" json:"status"`
	Reason    string    `bson:"reason" json:"reason"`
	ChangedBy string    `bson:"changed_by" json:"changedBy"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`

	// exactly one record is current
	Current bool `bson:"current" json:"current"`
}

// CurrentRecord returns the history entry marked current.
func (o *TrackedOrder) CurrentRecord() (StatusRecord, bool) {
	for _, h := range o.History {
		if h.Current {
			return h, true
		}
	}
	return StatusRecord{}, false
}

// AsOrder exposes the mirrored fields as an Order so the same projection
// applies to both sources.
func (o *TrackedOrder) AsOrder() *Order {
	return &Order{
		LeadID:               o.LeadID,
		CustomerID:           o.CustomerID,
		Status:               o.Status,
		OrderDate:            o.OrderDate,
		DeliveryExpectedDate: o.DeliveryExpectedDate,
		DeliveryAddress:      o.DeliveryAddress,
	}
}

// ChangeRequest asks the backend to replace the delivery address or date.
type ChangeRequest struct {
	NewValue string `json:"newValue" validate:"required,min=1,max=500"`
	Reason   string `json:"reason" validate:"required,min=3,max=300"`
}
