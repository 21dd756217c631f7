package repository

import (
	"context"
	"errors"

	"github.com/AlphaSudo/HmS2/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvoiceNotFound is returned when no invoice matches the given id
	// or invoice number.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrVersionConflict is returned when a conditional update loses the
	// race: the stored version no longer matches the version that was read.
	ErrVersionConflict = errors.New("invoice version conflict")
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	// FindByIDForUpdate takes a row lock; call it inside RunInTx so
	// concurrent payment additions serialize instead of losing updates.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByNumber(ctx context.Context, invoiceNumber string) (*model.Invoice, error)
	FindByPatientID(ctx context.Context, patientID int64) ([]model.Invoice, error)
	FindByDoctorID(ctx context.Context, doctorID int64) ([]model.Invoice, error)
	FindByStatus(ctx context.Context, status string, page, limit int) ([]model.Invoice, int64, error)
	// Update persists the invoice conditionally on its Version token and
	// bumps the token. Returns ErrVersionConflict on a lost race.
	Update(ctx context.Context, invoice *model.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "invoice_number = ?", invoiceNumber).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByPatientID(ctx context.Context, patientID int64) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := GetDB(ctx, r.db).
		Where("patient_id = ?", patientID).
		Order("invoice_date asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) FindByDoctorID(ctx context.Context, doctorID int64) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := GetDB(ctx, r.db).
		Where("doctor_id = ?", doctorID).
		Order("invoice_date asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) FindByStatus(ctx context.Context, status string, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Where("status = ?", status).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Where("status = ?", status).
		Order("created_at desc").
		Offset(offset).Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	readVersion := invoice.Version
	invoice.Version = readVersion + 1

	res := GetDB(ctx, r.db).
		Model(&model.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, readVersion).
		Select("*").Omit("id", "created_at").
		Updates(invoice)
	if res.Error != nil {
		invoice.Version = readVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		invoice.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Delete(&model.Invoice{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvoiceNotFound
	}
	return err
}
