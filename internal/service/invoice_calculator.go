package service

import (
	"fmt"

	"github.com/AlphaSudo/HmS2/internal/model"

	"github.com/shopspring/decimal"
)

// percentFactor converts a 0-100 coverage percentage into a multiplier.
var percentFactor = decimal.NewFromFloat(0.01)

// RecalculateInvoice re-derives every computed Money field of the invoice
// from its inputs: subtotal from the line items, total from tax/discount,
// insurance apportionment, paid and outstanding amounts.
//
// The derivation is idempotent: it never reads a previously derived field,
// so running it twice yields the same invoice. The only error condition is
// mixed currencies in the inputs.
func RecalculateInvoice(inv *model.Invoice) error {
	currency := inv.Currency()

	subtotal := model.Zero(currency)
	for _, item := range inv.BillingItems {
		var err error
		subtotal, err = subtotal.Add(item.TotalPrice.OrZero(currency))
		if err != nil {
			return fmt.Errorf("subtotal for item %q: %w", item.ItemCode, err)
		}
	}
	inv.Subtotal = subtotal

	tax := inv.TaxAmount.OrZero(currency)
	discount := inv.DiscountAmount.OrZero(currency)
	inv.TaxAmount = tax
	inv.DiscountAmount = discount

	withTax, err := subtotal.Add(tax)
	if err != nil {
		return fmt.Errorf("applying tax: %w", err)
	}
	total, err := withTax.Sub(discount)
	if err != nil {
		return fmt.Errorf("applying discount: %w", err)
	}
	inv.TotalAmount = total

	if inv.Insurance != nil {
		coverage := total.Mul(inv.Insurance.CoveragePercentage).Mul(percentFactor)
		inv.InsuranceCoverage = &coverage

		copay := inv.Insurance.CopayAmount.OrZero(currency)
		uncovered, err := total.Sub(coverage)
		if err != nil {
			return fmt.Errorf("insurance coverage: %w", err)
		}
		responsibility, err := uncovered.Add(copay)
		if err != nil {
			return fmt.Errorf("copay: %w", err)
		}
		inv.PatientResponsibility = responsibility
	} else {
		inv.InsuranceCoverage = nil
		inv.PatientResponsibility = total
	}

	return RecalculatePayments(inv)
}

// RecalculatePayments re-derives paidAmount and outstandingAmount from the
// payment history. Only COMPLETED payments count; outstanding may go
// negative on overpayment and is deliberately not clamped.
func RecalculatePayments(inv *model.Invoice) error {
	currency := inv.TotalAmount.OrZero(inv.Currency()).Currency

	paid := model.Zero(currency)
	for _, p := range inv.Payments {
		if p.Status != model.PaymentCompleted {
			continue
		}
		var err error
		paid, err = paid.Add(p.Amount)
		if err != nil {
			return fmt.Errorf("payment %s: %w", p.PaymentID, err)
		}
	}
	inv.PaidAmount = paid

	outstanding, err := inv.TotalAmount.OrZero(currency).Sub(paid)
	if err != nil {
		return fmt.Errorf("outstanding amount: %w", err)
	}
	inv.OutstandingAmount = outstanding
	return nil
}

// AdvanceStatusOnPayment derives the invoice status from the recomputed
// payment amounts: zero outstanding means PAID, any completed payment with
// a remainder means PARTIALLY_PAID, otherwise the status is left alone.
// OVERDUE and CANCELLED are never produced here; they are only reachable
// through a direct status update.
func AdvanceStatusOnPayment(inv *model.Invoice) {
	if inv.OutstandingAmount.IsZero() {
		inv.Status = model.StatusPaid
	} else if !inv.PaidAmount.IsZero() {
		inv.Status = model.StatusPartiallyPaid
	}
}
