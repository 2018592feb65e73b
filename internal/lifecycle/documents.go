package lifecycle

import (
	"fmt"
	"strings"
)

// DocumentKind is a PDF artifact generated by the backend at a specific
// lifecycle transition.
type DocumentKind string

const (
	DocumentQuote      DocumentKind = "quote"
	DocumentSalesOrder DocumentKind = "sales-order"
	DocumentInvoice    DocumentKind = "invoice"
	DocumentEwayBill   DocumentKind = "ewaybill"
)

// Title is the name shown to the customer.
func (k DocumentKind) Title() string {
	switch k {
	case DocumentQuote:
		return "Quote"
	case DocumentSalesOrder:
		return "Sales Order"
	case DocumentInvoice:
		return "Invoice"
	case DocumentEwayBill:
		return "E-way Bill"
	}
	return string(k)
}

// ParseDocumentKind accepts the path spellings used by clients.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quote":
		return DocumentQuote, nil
	case "sales-order", "sales_order", "salesorder":
		return DocumentSalesOrder, nil
	case "invoice":
		return DocumentInvoice, nil
	case "ewaybill", "eway-bill", "eway_bill":
		return DocumentEwayBill, nil
	}
	return "", fmt.Errorf("unknown document %q", s)
}

// Document exposure keyed by stage. The order of categories must follow the
// order in which the backend creates the artifacts: quote on vendor
// acceptance, sales order on payment, invoice and e-way bill on dispatch.
var (
	quoteOnly      = []DocumentKind{DocumentQuote}
	salesOrderOnly = []DocumentKind{DocumentSalesOrder}
	dispatchDocs   = []DocumentKind{DocumentInvoice, DocumentEwayBill}
)

// Documents returns the documents a customer may download at the given
// stage. Only one category is ever exposed: once a later document exists the
// earlier one is hidden.
func Documents(stage Stage) []DocumentKind {
	var set []DocumentKind
	switch stage {
	case StageVendorAccepted:
		set = quoteOnly
	case StagePaymentDone, StageOrderConfirmed, StageTruckLoading, StageShipped:
		set = salesOrderOnly
	case StageInTransit, StageOutForDelivery, StageDelivered, StageReturned:
		set = dispatchDocs
	default:
		return []DocumentKind{}
	}
	return append([]DocumentKind(nil), set...)
}

// DocumentAvailable reports whether kind is exposed at stage.
func DocumentAvailable(stage Stage, kind DocumentKind) bool {
	for _, k := range Documents(stage) {
		if k == kind {
			return true
		}
	}
	return false
}

// Artifacts carries explicit per-document existence flags when the backend
// provides them.
type Artifacts struct {
	Quote      bool `json:"quote" bson:"quote"`
	SalesOrder bool `json:"salesOrder" bson:"sales_order"`
	Invoice    bool `json:"invoice" bson:"invoice"`
	EwayBill   bool `json:"ewaybill" bson:"ewaybill"`
}

func (a Artifacts) has(kind DocumentKind) bool {
	switch kind {
	case DocumentQuote:
		return a.Quote
	case DocumentSalesOrder:
		return a.SalesOrder
	case DocumentInvoice:
		return a.Invoice
	case DocumentEwayBill:
		return a.EwayBill
	}
	return false
}

// DocumentsWithArtifacts narrows the stage rule with the backend's flags.
// A category is exposed only when every document in it exists, so the
// result is still one of the sets Documents can return. A nil artifacts value
// falls back to Documents.
func DocumentsWithArtifacts(stage Stage, artifacts *Artifacts) []DocumentKind {
	docs := Documents(stage)
	if artifacts == nil {
		return docs
	}
	for _, k := range docs {
		if !artifacts.has(k) {
			return []DocumentKind{}
		}
	}
	return docs
}
