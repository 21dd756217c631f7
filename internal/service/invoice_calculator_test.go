package service

import (
	"testing"

	"github.com/AlphaSudo/HmS2/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(s, currency string) model.Money {
	return model.MoneyOf(decimal.RequireFromString(s), currency)
}

func usd(s string) model.Money {
	return money(s, "USD")
}

// insuredInvoice builds the canonical worked example: two items at 100 and
// 50, 10 tax, 20% coverage with a 5 copay.
func insuredInvoice() model.Invoice {
	return model.Invoice{
		BillingItems: model.BillingItems{
			{ItemCode: "CONS-01", Description: "Consultation", Quantity: 1, TotalPrice: usd("100"), Category: model.CategoryConsultation},
			{ItemCode: "LAB-07", Description: "Blood panel", Quantity: 1, TotalPrice: usd("50"), Category: model.CategoryLabTest},
		},
		TaxAmount: usd("10"),
		Insurance: &model.Insurance{
			InsuranceCompany:   "Acme Health",
			PolicyNumber:       "POL-123",
			CoveragePercentage: decimal.NewFromInt(20),
			CopayAmount:        usd("5"),
		},
		Status: model.StatusDraft,
	}
}

func TestRecalculateInvoiceWithInsurance(t *testing.T) {
	inv := insuredInvoice()
	require.NoError(t, RecalculateInvoice(&inv))

	assert.True(t, inv.Subtotal.Equal(usd("150")))
	assert.True(t, inv.TotalAmount.Equal(usd("160")))
	require.NotNil(t, inv.InsuranceCoverage)
	assert.True(t, inv.InsuranceCoverage.Equal(usd("32")))
	assert.True(t, inv.PatientResponsibility.Equal(usd("133")), "160 - 32 + 5 copay")
	assert.True(t, inv.PaidAmount.Equal(usd("0")))
	assert.True(t, inv.OutstandingAmount.Equal(usd("160")))
}

func TestRecalculateInvoiceWithoutInsurance(t *testing.T) {
	inv := insuredInvoice()
	inv.Insurance = nil
	require.NoError(t, RecalculateInvoice(&inv))

	assert.Nil(t, inv.InsuranceCoverage)
	assert.True(t, inv.PatientResponsibility.Equal(inv.TotalAmount))
}

func TestRecalculateInvoiceIsIdempotent(t *testing.T) {
	inv := insuredInvoice()
	require.NoError(t, RecalculateInvoice(&inv))
	first := inv

	require.NoError(t, RecalculateInvoice(&inv))
	assert.True(t, inv.Subtotal.Equal(first.Subtotal))
	assert.True(t, inv.TotalAmount.Equal(first.TotalAmount))
	assert.True(t, inv.PatientResponsibility.Equal(first.PatientResponsibility))
	assert.True(t, inv.OutstandingAmount.Equal(first.OutstandingAmount))
}

func TestRecalculateInvoiceNoItems(t *testing.T) {
	inv := model.Invoice{}
	require.NoError(t, RecalculateInvoice(&inv))

	assert.Equal(t, "USD", inv.TotalAmount.Currency)
	assert.True(t, inv.TotalAmount.IsZero())
	assert.True(t, inv.Subtotal.IsZero())
	assert.True(t, inv.OutstandingAmount.IsZero())
}

func TestRecalculateInvoiceAbsentTaxAndDiscount(t *testing.T) {
	inv := model.Invoice{
		BillingItems: model.BillingItems{{TotalPrice: usd("80")}},
	}
	require.NoError(t, RecalculateInvoice(&inv))

	assert.True(t, inv.TaxAmount.Equal(usd("0")), "absent tax normalizes to zero in the invoice currency")
	assert.True(t, inv.DiscountAmount.Equal(usd("0")))
	assert.True(t, inv.TotalAmount.Equal(usd("80")))
}

func TestRecalculateInvoiceDiscountBelowZero(t *testing.T) {
	inv := model.Invoice{
		BillingItems:   model.BillingItems{{TotalPrice: usd("20")}},
		DiscountAmount: usd("30"),
	}
	require.NoError(t, RecalculateInvoice(&inv))
	assert.True(t, inv.TotalAmount.Equal(usd("-10")), "discount larger than subtotal is not clamped")
}

func TestRecalculateInvoiceMixedCurrencies(t *testing.T) {
	inv := model.Invoice{
		BillingItems: model.BillingItems{
			{TotalPrice: usd("100")},
			{TotalPrice: money("50", "EUR")},
		},
	}
	err := RecalculateInvoice(&inv)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrIncompatibleCurrency)
}

func TestRecalculatePaymentsCountsOnlyCompleted(t *testing.T) {
	inv := insuredInvoice()
	require.NoError(t, RecalculateInvoice(&inv))

	inv.Payments = model.Payments{
		{PaymentID: "p1", Amount: usd("60"), Status: model.PaymentCompleted},
		{PaymentID: "p2", Amount: usd("40"), Status: model.PaymentPending},
		{PaymentID: "p3", Amount: usd("40"), Status: model.PaymentFailed},
		{PaymentID: "p4", Amount: usd("40"), Status: model.PaymentRefunded},
	}
	require.NoError(t, RecalculatePayments(&inv))

	assert.True(t, inv.PaidAmount.Equal(usd("60")))
	assert.True(t, inv.OutstandingAmount.Equal(usd("100")))
}

func TestAdvanceStatusOnPayment(t *testing.T) {
	tests := []struct {
		name       string
		paid       string
		wantStatus string
	}{
		{"full payment settles the invoice", "160", model.StatusPaid},
		{"partial payment", "60", model.StatusPartiallyPaid},
		{"overpayment leaves a negative remainder", "200", model.StatusPartiallyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := insuredInvoice()
			require.NoError(t, RecalculateInvoice(&inv))

			inv.Payments = model.Payments{{PaymentID: "p1", Amount: usd(tt.paid), Status: model.PaymentCompleted}}
			require.NoError(t, RecalculatePayments(&inv))
			AdvanceStatusOnPayment(&inv)

			assert.Equal(t, tt.wantStatus, inv.Status)
		})
	}
}

func TestAdvanceStatusOnPaymentNoCompletedPayments(t *testing.T) {
	inv := insuredInvoice()
	inv.Status = model.StatusSent
	require.NoError(t, RecalculateInvoice(&inv))

	inv.Payments = model.Payments{{PaymentID: "p1", Amount: usd("60"), Status: model.PaymentPending}}
	require.NoError(t, RecalculatePayments(&inv))
	AdvanceStatusOnPayment(&inv)

	assert.Equal(t, model.StatusSent, inv.Status, "a pending payment must not move the status")
}

func TestAdvanceStatusOnPaymentZeroTotal(t *testing.T) {
	inv := model.Invoice{Status: model.StatusDraft}
	require.NoError(t, RecalculateInvoice(&inv))
	AdvanceStatusOnPayment(&inv)

	assert.Equal(t, model.StatusPaid, inv.Status, "zero total with zero outstanding counts as settled")
}
