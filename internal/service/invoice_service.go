package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AlphaSudo/HmS2/internal/events"
	"github.com/AlphaSudo/HmS2/internal/model"
	"github.com/AlphaSudo/HmS2/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// userPatientIDOffset maps a shared-auth user id onto a patient id.
// Patient rows were seeded 7 below their user rows in the auth database
// and the gateway still addresses billing by user id on some routes.
const userPatientIDOffset = 7

// ValidationError reports a missing or malformed request field. It maps to
// a 400 at the HTTP boundary, distinct from not-found and internal errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// --- DTOs ---

type MoneyRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

type BillingItemRequest struct {
	ItemCode    string        `json:"item_code"`
	Description string        `json:"description"`
	Quantity    int           `json:"quantity" binding:"required,gt=0"`
	UnitPrice   *MoneyRequest `json:"unit_price"`
	TotalPrice  MoneyRequest  `json:"total_price" binding:"required"`
	Category    string        `json:"category" binding:"omitempty,oneof=CONSULTATION PROCEDURE MEDICATION LAB_TEST"`
}

type InsuranceRequest struct {
	InsuranceCompany   string        `json:"insurance_company"`
	PolicyNumber       string        `json:"policy_number"`
	CoveragePercentage string        `json:"coverage_percentage" binding:"required"`
	CopayAmount        *MoneyRequest `json:"copay_amount"`
	Deductible         *MoneyRequest `json:"deductible"`
	MaxCoverage        *MoneyRequest `json:"max_coverage"`
}

type CreateInvoiceRequest struct {
	PatientID      int64                `json:"patient_id" binding:"required"`
	DoctorID       int64                `json:"doctor_id" binding:"required"`
	AppointmentID  *int64               `json:"appointment_id"`
	InvoiceNumber  string               `json:"invoice_number"`
	DueDate        string               `json:"due_date"` // RFC3339, optional
	BillingItems   []BillingItemRequest `json:"billing_items" binding:"required,min=1,dive"`
	TaxAmount      *MoneyRequest        `json:"tax_amount"`
	DiscountAmount *MoneyRequest        `json:"discount_amount"`
	Insurance      *InsuranceRequest    `json:"insurance"`
	Status         string               `json:"status"`
	Notes          string               `json:"notes"`
}

// UpdateInvoiceRequest replaces the invoice's items, insurance, tax,
// discount, due date and notes wholesale. Payment history is deliberately
// not part of the payload: payments change only through AddPayment, so an
// update can never silently drop them.
type UpdateInvoiceRequest struct {
	PatientID      int64                `json:"patient_id" binding:"required"`
	DoctorID       int64                `json:"doctor_id" binding:"required"`
	AppointmentID  *int64               `json:"appointment_id"`
	DueDate        string               `json:"due_date"`
	BillingItems   []BillingItemRequest `json:"billing_items" binding:"required,min=1,dive"`
	TaxAmount      *MoneyRequest        `json:"tax_amount"`
	DiscountAmount *MoneyRequest        `json:"discount_amount"`
	Insurance      *InsuranceRequest    `json:"insurance"`
	Status         string               `json:"status"`
	Notes          string               `json:"notes"`
}

type PaymentRequest struct {
	PaymentID     string       `json:"payment_id"`
	Amount        MoneyRequest `json:"amount" binding:"required"`
	PaymentMethod string       `json:"payment_method" binding:"required,oneof=CASH CREDIT_CARD DEBIT_CARD INSURANCE BANK_TRANSFER"`
	TransactionID string       `json:"transaction_id"`
	Status        string       `json:"status" binding:"required,oneof=PENDING COMPLETED FAILED REFUNDED"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

type MoneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type BillingItemResponse struct {
	ItemCode    string         `json:"item_code"`
	Description string         `json:"description"`
	Quantity    int            `json:"quantity"`
	UnitPrice   *MoneyResponse `json:"unit_price,omitempty"`
	TotalPrice  MoneyResponse  `json:"total_price"`
	Category    string         `json:"category"`
}

type InsuranceResponse struct {
	InsuranceCompany   string         `json:"insurance_company"`
	PolicyNumber       string         `json:"policy_number"`
	CoveragePercentage string         `json:"coverage_percentage"`
	CopayAmount        MoneyResponse  `json:"copay_amount"`
	Deductible         *MoneyResponse `json:"deductible,omitempty"`
	MaxCoverage        *MoneyResponse `json:"max_coverage,omitempty"`
}

type PaymentResponse struct {
	PaymentID     string        `json:"payment_id"`
	Amount        MoneyResponse `json:"amount"`
	PaymentMethod string        `json:"payment_method"`
	TransactionID string        `json:"transaction_id"`
	PaymentDate   *string       `json:"payment_date"`
	Status        string        `json:"status"`
}

type InvoiceResponse struct {
	ID                    string                `json:"id"`
	PatientID             int64                 `json:"patient_id"`
	DoctorID              int64                 `json:"doctor_id"`
	AppointmentID         *int64                `json:"appointment_id,omitempty"`
	InvoiceNumber         string                `json:"invoice_number"`
	InvoiceDate           string                `json:"invoice_date"`
	DueDate               *string               `json:"due_date,omitempty"`
	BillingItems          []BillingItemResponse `json:"billing_items"`
	Subtotal              MoneyResponse         `json:"subtotal"`
	TaxAmount             MoneyResponse         `json:"tax_amount"`
	DiscountAmount        MoneyResponse         `json:"discount_amount"`
	TotalAmount           MoneyResponse         `json:"total_amount"`
	Insurance             *InsuranceResponse    `json:"insurance,omitempty"`
	InsuranceCoverage     *MoneyResponse        `json:"insurance_coverage,omitempty"`
	PatientResponsibility MoneyResponse         `json:"patient_responsibility"`
	Payments              []PaymentResponse     `json:"payments"`
	PaidAmount            MoneyResponse         `json:"paid_amount"`
	OutstandingAmount     MoneyResponse         `json:"outstanding_amount"`
	Status                string                `json:"status"`
	Notes                 string                `json:"notes"`
	Version               int64                 `json:"version"`
	CreatedAt             string                `json:"created_at"`
	UpdatedAt             string                `json:"updated_at"`
}

// --- Interface ---

// StatsCache caches per-patient billing stats. Implementations are
// best-effort; a nil cache disables caching entirely.
type StatsCache interface {
	Get(ctx context.Context, patientID int64) (*BillingStats, bool)
	Set(ctx context.Context, stats BillingStats)
	Invalidate(ctx context.Context, patientID int64)
}

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetInvoiceByID(ctx context.Context, id string) (InvoiceResponse, error)
	GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (InvoiceResponse, error)
	GetInvoicesByPatient(ctx context.Context, patientID int64) ([]InvoiceResponse, error)
	GetInvoicesByUser(ctx context.Context, userID int64) ([]InvoiceResponse, error)
	GetInvoicesByDoctor(ctx context.Context, doctorID int64) ([]InvoiceResponse, error)
	GetInvoicesByStatus(ctx context.Context, status string, page, limit int) ([]InvoiceResponse, int64, error)
	UpdateInvoice(ctx context.Context, id string, req UpdateInvoiceRequest) (InvoiceResponse, error)
	UpdateInvoiceStatus(ctx context.Context, id string, status string) (InvoiceResponse, error)
	AddPayment(ctx context.Context, id string, req PaymentRequest) (InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
	GetBillingStats(ctx context.Context, patientID int64) (BillingStats, error)
	GetBillingStatsByUser(ctx context.Context, userID int64) (BillingStats, error)
	ExportPatientInvoices(ctx context.Context, patientID int64) ([]byte, string, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	txManager   repository.TransactionManager
	publisher   events.Publisher
	statsCache  StatsCache
	log         *zap.Logger
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
	statsCache StatsCache,
	log *zap.Logger,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		txManager:   txManager,
		publisher:   publisher,
		statsCache:  statsCache,
		log:         log,
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResponse, error) {
	if req.PatientID == 0 {
		return InvoiceResponse{}, &ValidationError{Field: "patient_id", Message: "patient id is required"}
	}
	if req.DoctorID == 0 {
		return InvoiceResponse{}, &ValidationError{Field: "doctor_id", Message: "doctor id is required"}
	}
	if len(req.BillingItems) == 0 {
		return InvoiceResponse{}, &ValidationError{Field: "billing_items", Message: "at least one billing item is required"}
	}

	invoice := model.Invoice{
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		AppointmentID: req.AppointmentID,
		InvoiceNumber: req.InvoiceNumber,
		Notes:         req.Notes,
		Status:        req.Status,
		Version:       1,
	}

	if err := s.applyBillingInputs(&invoice, req.BillingItems, req.TaxAmount, req.DiscountAmount, req.Insurance, req.DueDate); err != nil {
		return InvoiceResponse{}, err
	}

	now := time.Now()
	invoice.InvoiceDate = now
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	if invoice.InvoiceNumber == "" {
		invoice.InvoiceNumber = generateInvoiceNumber(now)
	}
	if invoice.Status == "" {
		invoice.Status = model.StatusDraft
	} else if !model.ValidStatus(invoice.Status) {
		return InvoiceResponse{}, &ValidationError{Field: "status", Message: "unknown invoice status " + invoice.Status}
	}

	if err := RecalculateInvoice(&invoice); err != nil {
		return InvoiceResponse{}, fmt.Errorf("calculating invoice totals: %w", err)
	}

	if err := s.invoiceRepo.Create(ctx, &invoice); err != nil {
		return InvoiceResponse{}, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.publisher.Publish(ctx, events.NewInvoiceEvent(events.InvoiceCreated, &invoice))
	s.invalidateStats(ctx, invoice.PatientID)

	return toInvoiceResponse(&invoice), nil
}

func (s *invoiceService) GetInvoiceByID(ctx context.Context, id string) (InvoiceResponse, error) {
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return InvoiceResponse{}, err
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) GetInvoicesByPatient(ctx context.Context, patientID int64) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), nil
}

func (s *invoiceService) GetInvoicesByUser(ctx context.Context, userID int64) ([]InvoiceResponse, error) {
	return s.GetInvoicesByPatient(ctx, userID-userPatientIDOffset)
}

func (s *invoiceService) GetInvoicesByDoctor(ctx context.Context, doctorID int64) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.FindByDoctorID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), nil
}

func (s *invoiceService) GetInvoicesByStatus(ctx context.Context, status string, page, limit int) ([]InvoiceResponse, int64, error) {
	if !model.ValidStatus(status) {
		return nil, 0, &ValidationError{Field: "status", Message: "unknown invoice status " + status}
	}

	invoices, total, err := s.invoiceRepo.FindByStatus(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), total, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, id string, req UpdateInvoiceRequest) (InvoiceResponse, error) {
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if req.Status != "" && !model.ValidStatus(req.Status) {
		return InvoiceResponse{}, &ValidationError{Field: "status", Message: "unknown invoice status " + req.Status}
	}

	var invoice *model.Invoice
	var previousPatientID int64
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}
		previousPatientID = invoice.PatientID

		// Wholesale replace of the caller-owned sections. Identity,
		// timestamps, invoice number and payment history are preserved.
		invoice.PatientID = req.PatientID
		invoice.DoctorID = req.DoctorID
		invoice.AppointmentID = req.AppointmentID
		invoice.Notes = req.Notes
		invoice.Insurance = nil
		invoice.TaxAmount = model.Money{}
		invoice.DiscountAmount = model.Money{}
		invoice.DueDate = nil
		if applyErr := s.applyBillingInputs(invoice, req.BillingItems, req.TaxAmount, req.DiscountAmount, req.Insurance, req.DueDate); applyErr != nil {
			return applyErr
		}
		if req.Status != "" {
			invoice.Status = req.Status
		}

		if calcErr := RecalculateInvoice(invoice); calcErr != nil {
			return fmt.Errorf("calculating invoice totals: %w", calcErr)
		}
		invoice.UpdatedAt = time.Now()

		return s.invoiceRepo.Update(txCtx, invoice)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.publisher.Publish(ctx, events.NewInvoiceEvent(events.InvoiceUpdated, invoice))
	s.invalidateStats(ctx, invoice.PatientID)
	if previousPatientID != invoice.PatientID {
		s.invalidateStats(ctx, previousPatientID)
	}

	return toInvoiceResponse(invoice), nil
}

// UpdateInvoiceStatus sets the requested status verbatim. It bypasses the
// payment-derived state machine entirely, so combinations like PAID with a
// positive outstanding amount are possible; this mirrors how billing clerks
// override invoice state today and is not silently corrected.
func (s *invoiceService) UpdateInvoiceStatus(ctx context.Context, id string, status string) (InvoiceResponse, error) {
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if !model.ValidStatus(status) {
		return InvoiceResponse{}, &ValidationError{Field: "status", Message: "unknown invoice status " + status}
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}

		invoice.Status = status
		invoice.UpdatedAt = time.Now()

		return s.invoiceRepo.Update(txCtx, invoice)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.publisher.Publish(ctx, events.NewInvoiceEvent(events.InvoiceStatusChanged, invoice))

	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) AddPayment(ctx context.Context, id string, req PaymentRequest) (InvoiceResponse, error) {
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return InvoiceResponse{}, err
	}

	amount, err := parseMoney(&req.Amount, "amount")
	if err != nil {
		return InvoiceResponse{}, err
	}

	now := time.Now()
	payment := model.Payment{
		PaymentID:     req.PaymentID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		PaymentDate:   &now,
		Status:        req.Status,
	}
	if payment.PaymentID == "" {
		payment.PaymentID = uuid.NewString()
	}
	if payment.TransactionID == "" {
		payment.TransactionID = uuid.NewString()
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if findErr != nil {
			return findErr
		}

		invoice.Payments = append(invoice.Payments, payment)

		if calcErr := RecalculatePayments(invoice); calcErr != nil {
			return fmt.Errorf("recalculating payments: %w", calcErr)
		}
		AdvanceStatusOnPayment(invoice)
		invoice.UpdatedAt = now

		return s.invoiceRepo.Update(txCtx, invoice)
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.publisher.Publish(ctx, events.NewInvoiceEvent(events.InvoicePaymentAdded, invoice))
	s.invalidateStats(ctx, invoice.PatientID)

	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return err
	}

	// Load first so the event and cache invalidation know the patient.
	// Deletion is immediate and irreversible; there is no soft delete.
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return err
	}

	if err := s.invoiceRepo.Delete(ctx, invoiceID); err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.NewInvoiceEvent(events.InvoiceDeleted, invoice))
	s.invalidateStats(ctx, invoice.PatientID)

	return nil
}

func (s *invoiceService) GetBillingStats(ctx context.Context, patientID int64) (BillingStats, error) {
	if s.statsCache != nil {
		if cached, ok := s.statsCache.Get(ctx, patientID); ok {
			return *cached, nil
		}
	}

	invoices, err := s.invoiceRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		return BillingStats{}, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	stats, err := AggregateBillingStats(patientID, invoices)
	if err != nil {
		return BillingStats{}, err
	}

	if s.statsCache != nil {
		s.statsCache.Set(ctx, stats)
	}
	return stats, nil
}

func (s *invoiceService) GetBillingStatsByUser(ctx context.Context, userID int64) (BillingStats, error) {
	return s.GetBillingStats(ctx, userID-userPatientIDOffset)
}

// --- Helpers ---

func (s *invoiceService) invalidateStats(ctx context.Context, patientID int64) {
	if s.statsCache != nil {
		s.statsCache.Invalidate(ctx, patientID)
	}
}

// applyBillingInputs parses and sets the caller-supplied billing sections
// on the invoice: items, tax, discount, insurance and due date.
func (s *invoiceService) applyBillingInputs(
	invoice *model.Invoice,
	items []BillingItemRequest,
	tax, discount *MoneyRequest,
	insurance *InsuranceRequest,
	dueDate string,
) error {
	billingItems := make(model.BillingItems, 0, len(items))
	for i, item := range items {
		totalPrice, err := parseMoney(&item.TotalPrice, fmt.Sprintf("billing_items[%d].total_price", i))
		if err != nil {
			return err
		}
		var unitPrice model.Money
		if item.UnitPrice != nil {
			unitPrice, err = parseMoney(item.UnitPrice, fmt.Sprintf("billing_items[%d].unit_price", i))
			if err != nil {
				return err
			}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("billing_items[%d].quantity", i), Message: "quantity must be positive"}
		}
		billingItems = append(billingItems, model.BillingItem{
			ItemCode:    item.ItemCode,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  totalPrice,
			Category:    item.Category,
		})
	}
	invoice.BillingItems = billingItems

	if tax != nil {
		parsed, err := parseMoney(tax, "tax_amount")
		if err != nil {
			return err
		}
		invoice.TaxAmount = parsed
	}
	if discount != nil {
		parsed, err := parseMoney(discount, "discount_amount")
		if err != nil {
			return err
		}
		invoice.DiscountAmount = parsed
	}

	if insurance != nil {
		coverage, err := decimal.NewFromString(insurance.CoveragePercentage)
		if err != nil {
			return &ValidationError{Field: "insurance.coverage_percentage", Message: "invalid decimal: " + insurance.CoveragePercentage}
		}
		if coverage.IsNegative() || coverage.GreaterThan(decimal.NewFromInt(100)) {
			return &ValidationError{Field: "insurance.coverage_percentage", Message: "must be between 0 and 100"}
		}

		ins := model.Insurance{
			InsuranceCompany:   insurance.InsuranceCompany,
			PolicyNumber:       insurance.PolicyNumber,
			CoveragePercentage: coverage,
		}
		if insurance.CopayAmount != nil {
			if ins.CopayAmount, err = parseMoney(insurance.CopayAmount, "insurance.copay_amount"); err != nil {
				return err
			}
		}
		if insurance.Deductible != nil {
			if ins.Deductible, err = parseMoney(insurance.Deductible, "insurance.deductible"); err != nil {
				return err
			}
		}
		if insurance.MaxCoverage != nil {
			if ins.MaxCoverage, err = parseMoney(insurance.MaxCoverage, "insurance.max_coverage"); err != nil {
				return err
			}
		}
		invoice.Insurance = &ins
	}

	if dueDate != "" {
		parsed, err := time.Parse(time.RFC3339, dueDate)
		if err != nil {
			return &ValidationError{Field: "due_date", Message: "must be RFC3339"}
		}
		invoice.DueDate = &parsed
	}

	return nil
}

func parseInvoiceID(id string) (uuid.UUID, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, &ValidationError{Field: "id", Message: "invalid invoice id"}
	}
	return invoiceID, nil
}

func parseMoney(req *MoneyRequest, field string) (model.Money, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return model.Money{}, &ValidationError{Field: field, Message: "invalid decimal: " + req.Amount}
	}
	if req.Currency == "" {
		return model.Money{}, &ValidationError{Field: field, Message: "currency is required"}
	}
	return model.MoneyOf(amount, req.Currency), nil
}

// generateInvoiceNumber derives a number from the year and the current
// unix-milli remainder. Collisions are possible under load; the unique
// index on invoice_number is the actual guard.
func generateInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%d-%06d", now.Year(), now.UnixMilli()%1000000)
}

// --- Mapping ---

func toMoneyResponse(m model.Money) MoneyResponse {
	return MoneyResponse{Amount: m.Amount.StringFixed(2), Currency: m.Currency}
}

func toMoneyResponsePtr(m *model.Money) *MoneyResponse {
	if m == nil {
		return nil
	}
	resp := toMoneyResponse(*m)
	return &resp
}

func toInvoiceResponses(invoices []model.Invoice) []InvoiceResponse {
	result := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		result = append(result, toInvoiceResponse(&invoices[i]))
	}
	return result
}

func toInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                    inv.ID.String(),
		PatientID:             inv.PatientID,
		DoctorID:              inv.DoctorID,
		AppointmentID:         inv.AppointmentID,
		InvoiceNumber:         inv.InvoiceNumber,
		InvoiceDate:           inv.InvoiceDate.Format(time.RFC3339),
		Subtotal:              toMoneyResponse(inv.Subtotal),
		TaxAmount:             toMoneyResponse(inv.TaxAmount),
		DiscountAmount:        toMoneyResponse(inv.DiscountAmount),
		TotalAmount:           toMoneyResponse(inv.TotalAmount),
		InsuranceCoverage:     toMoneyResponsePtr(inv.InsuranceCoverage),
		PatientResponsibility: toMoneyResponse(inv.PatientResponsibility),
		PaidAmount:            toMoneyResponse(inv.PaidAmount),
		OutstandingAmount:     toMoneyResponse(inv.OutstandingAmount),
		Status:                inv.Status,
		Notes:                 inv.Notes,
		Version:               inv.Version,
		CreatedAt:             inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             inv.UpdatedAt.Format(time.RFC3339),
	}

	if inv.DueDate != nil {
		due := inv.DueDate.Format(time.RFC3339)
		resp.DueDate = &due
	}

	resp.BillingItems = make([]BillingItemResponse, 0, len(inv.BillingItems))
	for _, item := range inv.BillingItems {
		itemResp := BillingItemResponse{
			ItemCode:    item.ItemCode,
			Description: item.Description,
			Quantity:    item.Quantity,
			TotalPrice:  toMoneyResponse(item.TotalPrice),
			Category:    item.Category,
		}
		if item.UnitPrice.Currency != "" {
			unit := toMoneyResponse(item.UnitPrice)
			itemResp.UnitPrice = &unit
		}
		resp.BillingItems = append(resp.BillingItems, itemResp)
	}

	if inv.Insurance != nil {
		insResp := InsuranceResponse{
			InsuranceCompany:   inv.Insurance.InsuranceCompany,
			PolicyNumber:       inv.Insurance.PolicyNumber,
			CoveragePercentage: inv.Insurance.CoveragePercentage.String(),
			CopayAmount:        toMoneyResponse(inv.Insurance.CopayAmount.OrZero(inv.Currency())),
		}
		if inv.Insurance.Deductible.Currency != "" {
			d := toMoneyResponse(inv.Insurance.Deductible)
			insResp.Deductible = &d
		}
		if inv.Insurance.MaxCoverage.Currency != "" {
			m := toMoneyResponse(inv.Insurance.MaxCoverage)
			insResp.MaxCoverage = &m
		}
		resp.Insurance = &insResp
	}

	resp.Payments = make([]PaymentResponse, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		payResp := PaymentResponse{
			PaymentID:     p.PaymentID,
			Amount:        toMoneyResponse(p.Amount),
			PaymentMethod: p.PaymentMethod,
			TransactionID: p.TransactionID,
			Status:        p.Status,
		}
		if p.PaymentDate != nil {
			d := p.PaymentDate.Format(time.RFC3339)
			payResp.PaymentDate = &d
		}
		resp.Payments = append(resp.Payments, payResp)
	}

	return resp
}
