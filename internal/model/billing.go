package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillingCategory enum constants
const (
	CategoryConsultation = "CONSULTATION"
	CategoryProcedure    = "PROCEDURE"
	CategoryMedication   = "MEDICATION"
	CategoryLabTest      = "LAB_TEST"
)

// PaymentMethod enum constants
const (
	MethodCash         = "CASH"
	MethodCreditCard   = "CREDIT_CARD"
	MethodDebitCard    = "DEBIT_CARD"
	MethodInsurance    = "INSURANCE"
	MethodBankTransfer = "BANK_TRANSFER"
)

// PaymentStatus enum constants
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// BillingItem is one invoice line. TotalPrice is authoritative for all
// aggregate totals; it is not re-derived from UnitPrice * Quantity even
// when the two disagree.
type BillingItem struct {
	ItemCode    string `json:"item_code"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   Money  `json:"unit_price"`
	TotalPrice  Money  `json:"total_price"`
	Category    string `json:"category"` // CONSULTATION, PROCEDURE, MEDICATION, LAB_TEST
}

// Insurance describes the policy attached to an invoice. Deductible and
// MaxCoverage are stored but never applied by the calculator.
type Insurance struct {
	InsuranceCompany   string          `json:"insurance_company"`
	PolicyNumber       string          `json:"policy_number"`
	CoveragePercentage decimal.Decimal `json:"coverage_percentage"` // 0-100
	CopayAmount        Money           `json:"copay_amount"`
	Deductible         Money           `json:"deductible"`
	MaxCoverage        Money           `json:"max_coverage"`
}

// Payment is one payment attempt against an invoice. Only COMPLETED
// payments count toward the paid amount.
type Payment struct {
	PaymentID     string     `json:"payment_id"`
	Amount        Money      `json:"amount"`
	PaymentMethod string     `json:"payment_method"` // CASH, CREDIT_CARD, DEBIT_CARD, INSURANCE, BANK_TRANSFER
	TransactionID string     `json:"transaction_id"`
	PaymentDate   *time.Time `json:"payment_date"`
	Status        string     `json:"status"` // PENDING, COMPLETED, FAILED, REFUNDED
}

// BillingItems persists the ordered line-item list as a jsonb column.
type BillingItems []BillingItem

func (b BillingItems) Value() (driver.Value, error) {
	if b == nil {
		return json.Marshal(BillingItems{})
	}
	return json.Marshal(b)
}

func (b *BillingItems) Scan(value interface{}) error {
	return scanJSON(value, b, "BillingItems")
}

// Payments persists the ordered payment history as a jsonb column.
type Payments []Payment

func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return json.Marshal(Payments{})
	}
	return json.Marshal(p)
}

func (p *Payments) Scan(value interface{}) error {
	return scanJSON(value, p, "Payments")
}

func (i Insurance) Value() (driver.Value, error) {
	return json.Marshal(i)
}

func (i *Insurance) Scan(value interface{}) error {
	return scanJSON(value, i, "Insurance")
}

func scanJSON(value, dest interface{}, typeName string) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, typeName)
	}
}
