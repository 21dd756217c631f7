package service

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/AlphaSudo/HmS2/internal/events"
	"github.com/AlphaSudo/HmS2/internal/model"
	"github.com/AlphaSudo/HmS2/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInvoiceRepo is an in-memory InvoiceRepository with version-checked
// updates, mirroring the conditional-update contract of the gorm impl.
type fakeInvoiceRepo struct {
	invoices map[uuid.UUID]model.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{invoices: make(map[uuid.UUID]model.Invoice)}
}

func (r *fakeInvoiceRepo) Create(_ context.Context, invoice *model.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	r.invoices[invoice.ID] = *invoice
	return nil
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, repository.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (r *fakeInvoiceRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeInvoiceRepo) FindByNumber(_ context.Context, invoiceNumber string) (*model.Invoice, error) {
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == invoiceNumber {
			found := inv
			return &found, nil
		}
	}
	return nil, repository.ErrInvoiceNotFound
}

func (r *fakeInvoiceRepo) FindByPatientID(_ context.Context, patientID int64) ([]model.Invoice, error) {
	var result []model.Invoice
	for _, inv := range r.invoices {
		if inv.PatientID == patientID {
			result = append(result, inv)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].InvoiceDate.Before(result[j].InvoiceDate) })
	return result, nil
}

func (r *fakeInvoiceRepo) FindByDoctorID(_ context.Context, doctorID int64) ([]model.Invoice, error) {
	var result []model.Invoice
	for _, inv := range r.invoices {
		if inv.DoctorID == doctorID {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (r *fakeInvoiceRepo) FindByStatus(_ context.Context, status string, page, limit int) ([]model.Invoice, int64, error) {
	var result []model.Invoice
	for _, inv := range r.invoices {
		if inv.Status == status {
			result = append(result, inv)
		}
	}
	return result, int64(len(result)), nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, invoice *model.Invoice) error {
	stored, ok := r.invoices[invoice.ID]
	if !ok {
		return repository.ErrVersionConflict
	}
	if stored.Version != invoice.Version {
		return repository.ErrVersionConflict
	}
	invoice.Version++
	r.invoices[invoice.ID] = *invoice
	return nil
}

func (r *fakeInvoiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.invoices[id]; !ok {
		return repository.ErrInvoiceNotFound
	}
	delete(r.invoices, id)
	return nil
}

// fakeTxManager runs the closure without a real transaction.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// capturePublisher records published event types in order.
type capturePublisher struct {
	types []string
}

func (p *capturePublisher) Publish(_ context.Context, event events.InvoiceEvent) {
	p.types = append(p.types, event.Type)
}

// fakeStatsCache records invalidations and serves a canned entry.
type fakeStatsCache struct {
	entries     map[int64]BillingStats
	invalidated []int64
	sets        int
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{entries: make(map[int64]BillingStats)}
}

func (c *fakeStatsCache) Get(_ context.Context, patientID int64) (*BillingStats, bool) {
	stats, ok := c.entries[patientID]
	if !ok {
		return nil, false
	}
	return &stats, true
}

func (c *fakeStatsCache) Set(_ context.Context, stats BillingStats) {
	c.entries[stats.PatientID] = stats
	c.sets++
}

func (c *fakeStatsCache) Invalidate(_ context.Context, patientID int64) {
	delete(c.entries, patientID)
	c.invalidated = append(c.invalidated, patientID)
}

type serviceFixture struct {
	repo      *fakeInvoiceRepo
	publisher *capturePublisher
	cache     *fakeStatsCache
	svc       InvoiceService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	repo := newFakeInvoiceRepo()
	publisher := &capturePublisher{}
	statsCache := newFakeStatsCache()
	svc := NewInvoiceService(repo, fakeTxManager{}, publisher, statsCache, zap.NewNop())
	return &serviceFixture{repo: repo, publisher: publisher, cache: statsCache, svc: svc}
}

func validCreateRequest() CreateInvoiceRequest {
	return CreateInvoiceRequest{
		PatientID: 3,
		DoctorID:  11,
		BillingItems: []BillingItemRequest{
			{ItemCode: "CONS-01", Description: "Consultation", Quantity: 1, TotalPrice: MoneyRequest{Amount: "100", Currency: "USD"}, Category: model.CategoryConsultation},
			{ItemCode: "LAB-07", Description: "Blood panel", Quantity: 1, TotalPrice: MoneyRequest{Amount: "50", Currency: "USD"}, Category: model.CategoryLabTest},
		},
		TaxAmount: &MoneyRequest{Amount: "10", Currency: "USD"},
		Insurance: &InsuranceRequest{
			InsuranceCompany:   "Acme Health",
			PolicyNumber:       "POL-123",
			CoveragePercentage: "20",
			CopayAmount:        &MoneyRequest{Amount: "5", Currency: "USD"},
		},
	}
}

func TestCreateInvoiceDefaults(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusDraft, resp.Status)
	assert.True(t, strings.HasPrefix(resp.InvoiceNumber, "INV-"), "generated number %q", resp.InvoiceNumber)
	assert.Equal(t, "150.00", resp.Subtotal.Amount)
	assert.Equal(t, "160.00", resp.TotalAmount.Amount)
	require.NotNil(t, resp.InsuranceCoverage)
	assert.Equal(t, "32.00", resp.InsuranceCoverage.Amount)
	assert.Equal(t, "133.00", resp.PatientResponsibility.Amount)
	assert.Equal(t, "160.00", resp.OutstandingAmount.Amount)
	assert.Equal(t, int64(1), resp.Version)
	assert.Equal(t, []string{events.InvoiceCreated}, f.publisher.types)
}

func TestCreateInvoiceKeepsProvidedNumberAndStatus(t *testing.T) {
	f := newServiceFixture(t)

	req := validCreateRequest()
	req.InvoiceNumber = "INV-2026-000042"
	req.Status = model.StatusSent

	resp, err := f.svc.CreateInvoice(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000042", resp.InvoiceNumber)
	assert.Equal(t, model.StatusSent, resp.Status)
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newServiceFixture(t)

	req := validCreateRequest()
	req.BillingItems = nil
	_, err := f.svc.CreateInvoice(context.Background(), req)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "billing_items", validationErr.Field)

	req = validCreateRequest()
	req.BillingItems[0].TotalPrice.Amount = "not-a-number"
	_, err = f.svc.CreateInvoice(context.Background(), req)
	require.ErrorAs(t, err, &validationErr)
}

func TestAddPaymentSettlesInvoice(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	resp, err := f.svc.AddPayment(context.Background(), created.ID, PaymentRequest{
		Amount:        MoneyRequest{Amount: "160", Currency: "USD"},
		PaymentMethod: model.MethodCreditCard,
		Status:        model.PaymentCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPaid, resp.Status)
	assert.Equal(t, "160.00", resp.PaidAmount.Amount)
	assert.Equal(t, "0.00", resp.OutstandingAmount.Amount)
	require.Len(t, resp.Payments, 1)
	assert.NotEmpty(t, resp.Payments[0].PaymentID, "payment id is generated when absent")
	assert.NotEmpty(t, resp.Payments[0].TransactionID)
	assert.NotNil(t, resp.Payments[0].PaymentDate)
	assert.Equal(t, int64(2), resp.Version)
	assert.Contains(t, f.publisher.types, events.InvoicePaymentAdded)
	assert.Contains(t, f.cache.invalidated, int64(3))
}

func TestAddPaymentPartial(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	resp, err := f.svc.AddPayment(context.Background(), created.ID, PaymentRequest{
		Amount:        MoneyRequest{Amount: "60", Currency: "USD"},
		PaymentMethod: model.MethodCash,
		Status:        model.PaymentCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPartiallyPaid, resp.Status)
	assert.Equal(t, "100.00", resp.OutstandingAmount.Amount)
}

func TestAddPaymentPendingDoesNotAdvanceStatus(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	resp, err := f.svc.AddPayment(context.Background(), created.ID, PaymentRequest{
		Amount:        MoneyRequest{Amount: "60", Currency: "USD"},
		PaymentMethod: model.MethodBankTransfer,
		Status:        model.PaymentPending,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusDraft, resp.Status)
	assert.Equal(t, "0.00", resp.PaidAmount.Amount)
	require.Len(t, resp.Payments, 1, "pending payments stay in the history")
}

func TestAddPaymentUnknownInvoice(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.AddPayment(context.Background(), uuid.NewString(), PaymentRequest{
		Amount:        MoneyRequest{Amount: "10", Currency: "USD"},
		PaymentMethod: model.MethodCash,
		Status:        model.PaymentCompleted,
	})
	assert.ErrorIs(t, err, repository.ErrInvoiceNotFound)
}

func TestAddPaymentInvalidID(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.AddPayment(context.Background(), "not-a-uuid", PaymentRequest{
		Amount:        MoneyRequest{Amount: "10", Currency: "USD"},
		PaymentMethod: model.MethodCash,
		Status:        model.PaymentCompleted,
	})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateInvoicePreservesPaymentsAndIdentity(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = f.svc.AddPayment(context.Background(), created.ID, PaymentRequest{
		Amount:        MoneyRequest{Amount: "60", Currency: "USD"},
		PaymentMethod: model.MethodCash,
		Status:        model.PaymentCompleted,
	})
	require.NoError(t, err)

	resp, err := f.svc.UpdateInvoice(context.Background(), created.ID, UpdateInvoiceRequest{
		PatientID: 3,
		DoctorID:  11,
		BillingItems: []BillingItemRequest{
			{ItemCode: "PROC-02", Description: "Minor procedure", Quantity: 1, TotalPrice: MoneyRequest{Amount: "200", Currency: "USD"}, Category: model.CategoryProcedure},
		},
		Notes: "revised after coding review",
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, created.InvoiceNumber, resp.InvoiceNumber)
	assert.Equal(t, created.CreatedAt, resp.CreatedAt)
	require.Len(t, resp.Payments, 1, "update must not drop recorded payments")
	assert.Equal(t, "200.00", resp.TotalAmount.Amount)
	assert.Equal(t, "140.00", resp.OutstandingAmount.Amount, "outstanding recomputed against the new total")
	assert.Nil(t, resp.Insurance, "insurance not in the payload clears the section")
	assert.Equal(t, "0.00", resp.TaxAmount.Amount)
	assert.Equal(t, "revised after coding review", resp.Notes)
}

func TestUpdateInvoiceUnknownInvoice(t *testing.T) {
	f := newServiceFixture(t)

	req := UpdateInvoiceRequest{
		PatientID: 3,
		DoctorID:  11,
		BillingItems: []BillingItemRequest{
			{Description: "x", Quantity: 1, TotalPrice: MoneyRequest{Amount: "1", Currency: "USD"}},
		},
	}
	_, err := f.svc.UpdateInvoice(context.Background(), uuid.NewString(), req)
	assert.ErrorIs(t, err, repository.ErrInvoiceNotFound)
}

func TestUpdateInvoiceStatusVerbatim(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	resp, err := f.svc.UpdateInvoiceStatus(context.Background(), created.ID, model.StatusCancelled)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelled, resp.Status)
	assert.Equal(t, "160.00", resp.OutstandingAmount.Amount, "direct status set leaves amounts untouched")
	assert.Contains(t, f.publisher.types, events.InvoiceStatusChanged)
}

func TestUpdateInvoiceStatusRejectsUnknown(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = f.svc.UpdateInvoiceStatus(context.Background(), created.ID, "VOIDED")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeleteInvoice(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteInvoice(context.Background(), created.ID))

	_, err = f.svc.GetInvoiceByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrInvoiceNotFound)
	assert.Contains(t, f.publisher.types, events.InvoiceDeleted)

	assert.ErrorIs(t, f.svc.DeleteInvoice(context.Background(), created.ID), repository.ErrInvoiceNotFound)
}

func TestGetInvoicesByUserAppliesOffset(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateInvoice(context.Background(), validCreateRequest()) // patient 3
	require.NoError(t, err)

	invoices, err := f.svc.GetInvoicesByUser(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, int64(3), invoices[0].PatientID)
}

func TestGetInvoiceByNumber(t *testing.T) {
	f := newServiceFixture(t)

	req := validCreateRequest()
	req.InvoiceNumber = "INV-2026-000077"
	_, err := f.svc.CreateInvoice(context.Background(), req)
	require.NoError(t, err)

	resp, err := f.svc.GetInvoiceByNumber(context.Background(), "INV-2026-000077")
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-000077", resp.InvoiceNumber)

	_, err = f.svc.GetInvoiceByNumber(context.Background(), "INV-0000-000000")
	assert.ErrorIs(t, err, repository.ErrInvoiceNotFound)
}

func TestGetBillingStatsUsesCache(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateInvoice(context.Background(), validCreateRequest())
	require.NoError(t, err)

	stats, err := f.svc.GetBillingStats(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, stats.TotalBilled.Equal(usd("160")))
	assert.Equal(t, 1, f.cache.sets)

	// Second read is served from the cache, no new Set.
	again, err := f.svc.GetBillingStats(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, again.TotalBilled.Equal(stats.TotalBilled))
	assert.Equal(t, 1, f.cache.sets)
}

func TestGetBillingStatsByUserAppliesOffset(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateInvoice(context.Background(), validCreateRequest()) // patient 3
	require.NoError(t, err)

	stats, err := f.svc.GetBillingStatsByUser(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.PatientID)
	assert.True(t, stats.TotalBilled.Equal(usd("160")))
}
