package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AlphaSudo/HmS2/internal/model"

	"github.com/xuri/excelize/v2"
)

type invoiceColumn struct {
	Header string
	Value  func(inv *model.Invoice) interface{}
}

var invoiceExportColumns = []invoiceColumn{
	{"Invoice Number", func(inv *model.Invoice) interface{} { return inv.InvoiceNumber }},
	{"Invoice Date", func(inv *model.Invoice) interface{} { return inv.InvoiceDate.Format("2006-01-02") }},
	{"Due Date", func(inv *model.Invoice) interface{} {
		if inv.DueDate == nil {
			return ""
		}
		return inv.DueDate.Format("2006-01-02")
	}},
	{"Status", func(inv *model.Invoice) interface{} { return inv.Status }},
	{"Currency", func(inv *model.Invoice) interface{} { return inv.Currency() }},
	{"Subtotal", func(inv *model.Invoice) interface{} { return inv.Subtotal.Amount.InexactFloat64() }},
	{"Tax", func(inv *model.Invoice) interface{} { return inv.TaxAmount.Amount.InexactFloat64() }},
	{"Discount", func(inv *model.Invoice) interface{} { return inv.DiscountAmount.Amount.InexactFloat64() }},
	{"Total", func(inv *model.Invoice) interface{} { return inv.TotalAmount.Amount.InexactFloat64() }},
	{"Insurance Coverage", func(inv *model.Invoice) interface{} {
		if inv.InsuranceCoverage == nil {
			return 0.0
		}
		return inv.InsuranceCoverage.Amount.InexactFloat64()
	}},
	{"Patient Responsibility", func(inv *model.Invoice) interface{} { return inv.PatientResponsibility.Amount.InexactFloat64() }},
	{"Paid", func(inv *model.Invoice) interface{} { return inv.PaidAmount.Amount.InexactFloat64() }},
	{"Outstanding", func(inv *model.Invoice) interface{} { return inv.OutstandingAmount.Amount.InexactFloat64() }},
}

// ExportPatientInvoices renders all of a patient's invoices into an xlsx
// workbook. The second return value is the suggested file name.
func (s *invoiceService) ExportPatientInvoices(ctx context.Context, patientID int64) ([]byte, string, error) {
	invoices, err := s.invoiceRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch invoices: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Invoices"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, col := range invoiceExportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	rowIdx := 2
	for i := range invoices {
		for colIdx, col := range invoiceExportColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(&invoices[i]))
		}
		rowIdx++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write invoice workbook: %w", err)
	}

	fileName := fmt.Sprintf("invoices_patient_%d_%s.xlsx", patientID, time.Now().Format("20060102_150405"))
	return buf.Bytes(), fileName, nil
}
