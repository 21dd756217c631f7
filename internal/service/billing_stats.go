package service

import (
	"fmt"

	"github.com/AlphaSudo/HmS2/internal/model"
)

// BillingStats summarizes a patient's invoices.
type BillingStats struct {
	PatientID        int64       `json:"patient_id"`
	TotalBilled      model.Money `json:"total_billed"`
	TotalPaid        model.Money `json:"total_paid"`
	TotalOutstanding model.Money `json:"total_outstanding"`
}

// AggregateBillingStats folds totalAmount, paidAmount and outstandingAmount
// across one patient's invoices. The currency comes from the first invoice's
// total, or the default when the patient has none; an empty list yields
// all-zero stats, never an error. A cross-currency fold fails with
// ErrIncompatibleCurrency; invoices for one patient are expected to share
// a currency and a mismatch is a data defect.
func AggregateBillingStats(patientID int64, invoices []model.Invoice) (BillingStats, error) {
	currency := model.DefaultCurrency
	if len(invoices) > 0 && invoices[0].TotalAmount.Currency != "" {
		currency = invoices[0].TotalAmount.Currency
	}

	stats := BillingStats{
		PatientID:        patientID,
		TotalBilled:      model.Zero(currency),
		TotalPaid:        model.Zero(currency),
		TotalOutstanding: model.Zero(currency),
	}

	for _, inv := range invoices {
		var err error
		if stats.TotalBilled, err = stats.TotalBilled.Add(inv.TotalAmount.OrZero(currency)); err != nil {
			return BillingStats{}, fmt.Errorf("invoice %s total: %w", inv.InvoiceNumber, err)
		}
		if stats.TotalPaid, err = stats.TotalPaid.Add(inv.PaidAmount.OrZero(currency)); err != nil {
			return BillingStats{}, fmt.Errorf("invoice %s paid: %w", inv.InvoiceNumber, err)
		}
		if stats.TotalOutstanding, err = stats.TotalOutstanding.Add(inv.OutstandingAmount.OrZero(currency)); err != nil {
			return BillingStats{}, fmt.Errorf("invoice %s outstanding: %w", inv.InvoiceNumber, err)
		}
	}

	return stats, nil
}
