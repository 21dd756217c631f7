package events

import (
	"context"
	"time"

	"github.com/AlphaSudo/HmS2/internal/model"
)

// Event type constants
const (
	InvoiceCreated       = "invoice.created"
	InvoiceUpdated       = "invoice.updated"
	InvoiceStatusChanged = "invoice.status_changed"
	InvoicePaymentAdded  = "invoice.payment_added"
	InvoiceDeleted       = "invoice.deleted"
)

// InvoiceEvent describes a completed invoice mutation. It is published
// best-effort after the transaction commits; consumers must tolerate gaps.
type InvoiceEvent struct {
	Type              string      `json:"type"`
	InvoiceID         string      `json:"invoice_id"`
	InvoiceNumber     string      `json:"invoice_number"`
	PatientID         int64       `json:"patient_id"`
	Status            string      `json:"status"`
	TotalAmount       model.Money `json:"total_amount"`
	OutstandingAmount model.Money `json:"outstanding_amount"`
	OccurredAt        time.Time   `json:"occurred_at"`
}

// NewInvoiceEvent builds an event snapshot from an invoice.
func NewInvoiceEvent(eventType string, inv *model.Invoice) InvoiceEvent {
	return InvoiceEvent{
		Type:              eventType,
		InvoiceID:         inv.ID.String(),
		InvoiceNumber:     inv.InvoiceNumber,
		PatientID:         inv.PatientID,
		Status:            inv.Status,
		TotalAmount:       inv.TotalAmount,
		OutstandingAmount: inv.OutstandingAmount,
		OccurredAt:        time.Now(),
	}
}

// Publisher delivers invoice events fire-and-forget: implementations must
// never block the caller, never propagate delivery failures, and never
// retry. Retry belongs to the consumer side.
type Publisher interface {
	Publish(ctx context.Context, event InvoiceEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, InvoiceEvent) {}

// Fanout publishes to every configured sink.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event InvoiceEvent) {
	for _, p := range f {
		p.Publish(ctx, event)
	}
}
