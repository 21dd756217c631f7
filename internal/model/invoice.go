package model

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus enum constants
const (
	StatusDraft         = "DRAFT"
	StatusSent          = "SENT"
	StatusPartiallyPaid = "PARTIALLY_PAID"
	StatusPaid          = "PAID"
	StatusOverdue       = "OVERDUE"
	StatusCancelled     = "CANCELLED"
)

// ValidStatus reports whether s is one of the known invoice statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Invoice is the billing aggregate root for one patient encounter: ordered
// line items, derived totals, insurance apportionment, payment history and
// a status field.
//
// All derived Money fields (Subtotal through OutstandingAmount) are
// recomputed from scratch on every mutation; they are never incremented in
// place. Status has two mutation paths: derived from payment state, or set
// verbatim by a direct status update.
type Invoice struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PatientID     int64     `gorm:"not null;index" json:"patient_id"`
	DoctorID      int64     `gorm:"not null;index" json:"doctor_id"`
	AppointmentID *int64    `gorm:"index" json:"appointment_id"`

	InvoiceNumber string     `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	InvoiceDate   time.Time  `json:"invoice_date"`
	DueDate       *time.Time `json:"due_date"`

	BillingItems   BillingItems `gorm:"type:jsonb;default:'[]'" json:"billing_items"`
	Subtotal       Money        `gorm:"type:jsonb" json:"subtotal"`
	TaxAmount      Money        `gorm:"type:jsonb" json:"tax_amount"`
	DiscountAmount Money        `gorm:"type:jsonb" json:"discount_amount"`
	TotalAmount    Money        `gorm:"type:jsonb" json:"total_amount"`

	Insurance             *Insurance `gorm:"type:jsonb" json:"insurance,omitempty"`
	InsuranceCoverage     *Money     `gorm:"type:jsonb" json:"insurance_coverage,omitempty"`
	PatientResponsibility Money      `gorm:"type:jsonb" json:"patient_responsibility"`

	Payments          Payments `gorm:"type:jsonb;default:'[]'" json:"payments"`
	PaidAmount        Money    `gorm:"type:jsonb" json:"paid_amount"`
	OutstandingAmount Money    `gorm:"type:jsonb" json:"outstanding_amount"`

	Status string `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"` // DRAFT, SENT, PARTIALLY_PAID, PAID, OVERDUE, CANCELLED
	Notes  string `gorm:"type:text" json:"notes"`

	// Version is the optimistic-concurrency token; invoice saves are
	// conditional on the version that was read and bump it by one.
	Version int64 `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Currency returns the invoice's working currency: the first billing item's
// total-price currency, or DefaultCurrency when no items exist.
func (inv *Invoice) Currency() string {
	if len(inv.BillingItems) > 0 && inv.BillingItems[0].TotalPrice.Currency != "" {
		return inv.BillingItems[0].TotalPrice.Currency
	}
	return DefaultCurrency
}
