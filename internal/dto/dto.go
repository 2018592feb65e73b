// dto.go
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"order-tracking-service/internal/lifecycle"
	"order-tracking-service/internal/model"
)

// ChangeRequest is the body of the address and delivery date change routes.
type ChangeRequest struct {
	NewValue string `json:"newValue" binding:"required,max=500"`
	Reason   string `json:"reason" binding:"required,min=3,max=300"`
}

// StatusUpdateRequest is the body of the admin status correction route.
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=300"`
}

type DocumentLink struct {
	Kind  lifecycle.DocumentKind `json:"kind"`
	Title string                 `json:"title"`
	URL   string                 `json:"url"`
}

// OrderSummary is one row of the customer's order list.
type OrderSummary struct {
	LeadID               string                 `json:"leadId"`
	Status               string                 `json:"status"`
	Stage                lifecycle.Stage        `json:"stage"`
	StageLabel           string                 `json:"stageLabel"`
	OrderDate            time.Time              `json:"orderDate"`
	DeliveryExpectedDate *time.Time             `json:"deliveryExpectedDate,omitempty"`
	DeliveryAddress      string                 `json:"deliveryAddress"`
	ItemCount            int                    `json:"itemCount"`
	Total                decimal.Decimal        `json:"total"`
	Documents            []DocumentLink         `json:"documents"`
	ChangeWindow         lifecycle.ChangeWindow `json:"changeWindow"`
}

// OrderView is the full order page.
type OrderView struct {
	OrderSummary
	Order                     *model.Order         `json:"order"`
	Timeline                  []lifecycle.Step     `json:"timeline"`
	AddressChangeHistory      []model.ChangeRecord `json:"addressChangeHistory"`
	DeliveryDateChangeHistory []model.ChangeRecord `json:"deliveryDateChangeHistory"`
}

type Stats struct {
	Total     int                     `json:"total"`
	Active    int                     `json:"active"`
	Delivered int                     `json:"delivered"`
	Closed    int                     `json:"closed"`
	ByStatus  map[lifecycle.Stage]int `json:"byStatus"`
}

type OrderList struct {
	Orders []OrderSummary `json:"orders"`
	Stats  Stats          `json:"stats"`
}

type ChangeEligibility struct {
	LeadID                    string                 `json:"leadId"`
	Stage                     lifecycle.Stage        `json:"stage"`
	OrderPlacedAt             time.Time              `json:"orderPlacedAt"`
	ChangeWindow              lifecycle.ChangeWindow `json:"changeWindow"`
	AddressChangeHistory      []model.ChangeRecord   `json:"addressChangeHistory"`
	DeliveryDateChangeHistory []model.ChangeRecord   `json:"deliveryDateChangeHistory"`
}

// TrackingView is the projection of a mirrored order.
type TrackingView struct {
	LeadID          string                 `json:"leadId"`
	CustomerID      string                 `json:"customerId"`
	Status          string                 `json:"status"`
	Stage           lifecycle.Stage        `json:"stage"`
	StageLabel      string                 `json:"stageLabel"`
	DeliveryAddress string                 `json:"deliveryAddress"`
	Timeline        []lifecycle.Step       `json:"timeline"`
	Documents       []DocumentLink         `json:"documents"`
	ChangeWindow    lifecycle.ChangeWindow `json:"changeWindow"`
	History         []model.StatusRecord   `json:"history"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}
