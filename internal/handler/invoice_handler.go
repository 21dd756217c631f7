package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/AlphaSudo/HmS2/internal/middleware"
	"github.com/AlphaSudo/HmS2/internal/model"
	"github.com/AlphaSudo/HmS2/internal/repository"
	"github.com/AlphaSudo/HmS2/internal/service"
	"github.com/AlphaSudo/HmS2/pkg/pagination"
	"github.com/AlphaSudo/HmS2/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleDoctor, middleware.RoleBillingClerk)
	clerks := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBillingClerk)

	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", staff, h.CreateInvoice)
		invoices.GET("/:id", staff, h.GetInvoiceByID)
		invoices.GET("/number/:invoiceNumber", staff, h.GetInvoiceByNumber)
		invoices.GET("/patient/:patientId", staff, h.GetInvoicesByPatient)
		invoices.GET("/patient/:patientId/export", clerks, h.ExportPatientInvoices)
		invoices.GET("/user/:userId", middleware.RequireRoleOrSelf("userId", middleware.RoleAdmin, middleware.RoleBillingClerk), h.GetInvoicesByUser)
		invoices.GET("/doctor/:doctorId", middleware.RequireRoleOrSelf("doctorId", middleware.RoleAdmin, middleware.RoleBillingClerk), h.GetInvoicesByDoctor)
		invoices.GET("/status/:status", staff, h.GetInvoicesByStatus)
		invoices.GET("/stats/:patientId", staff, h.GetBillingStats)
		invoices.GET("/stats/user/:userId", middleware.RequireRoleOrSelf("userId", middleware.RoleAdmin, middleware.RoleBillingClerk), h.GetBillingStatsByUser)
		invoices.PUT("/:id", clerks, h.UpdateInvoice)
		invoices.PATCH("/:id/status", clerks, h.UpdateInvoiceStatus)
		invoices.POST("/:id/payments", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBillingClerk, middleware.RolePatient), h.AddPayment)
		invoices.DELETE("/:id", middleware.RequireRole(middleware.RoleAdmin), h.DeleteInvoice)
	}
}

// writeError maps service and repository errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.Is(err, repository.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Invoice not found"))
	case errors.Is(err, repository.ErrVersionConflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, "Invoice was modified concurrently, retry the request"))
	case errors.Is(err, model.ErrIncompatibleCurrency):
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

// CreateInvoice creates a new patient invoice
// @Summary      Create invoice
// @Description  Creates an invoice from billing items, computing totals, insurance coverage and patient responsibility
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// GetInvoiceByID fetches a single invoice
// @Summary      Get invoice by ID
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoiceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetInvoiceByNumber fetches an invoice by its business number
// @Summary      Get invoice by number
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        invoiceNumber  path      string  true  "Invoice Number"
// @Success      200            {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404            {object}  response.Response
// @Router       /api/invoices/number/{invoiceNumber} [get]
func (h *InvoiceHandler) GetInvoiceByNumber(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoiceByNumber(c.Request.Context(), c.Param("invoiceNumber"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetInvoicesByPatient lists all invoices for a patient
// @Summary      List invoices by patient
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        patientId  path      int  true  "Patient ID"
// @Success      200        {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      400        {object}  response.Response
// @Router       /api/invoices/patient/{patientId} [get]
func (h *InvoiceHandler) GetInvoicesByPatient(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("patientId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid patient id"))
		return
	}

	invoices, err := h.invoiceService.GetInvoicesByPatient(c.Request.Context(), patientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// GetInvoicesByUser lists invoices for the patient linked to a user account
// @Summary      List invoices by user
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        userId  path      int  true  "User ID"
// @Success      200     {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      400     {object}  response.Response
// @Router       /api/invoices/user/{userId} [get]
func (h *InvoiceHandler) GetInvoicesByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
		return
	}

	invoices, err := h.invoiceService.GetInvoicesByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// GetInvoicesByDoctor lists all invoices issued by a doctor
// @Summary      List invoices by doctor
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        doctorId  path      int  true  "Doctor ID"
// @Success      200       {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      400       {object}  response.Response
// @Router       /api/invoices/doctor/{doctorId} [get]
func (h *InvoiceHandler) GetInvoicesByDoctor(c *gin.Context) {
	doctorID, err := strconv.ParseInt(c.Param("doctorId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid doctor id"))
		return
	}

	invoices, err := h.invoiceService.GetInvoicesByDoctor(c.Request.Context(), doctorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// GetInvoicesByStatus lists invoices in a given status, paginated
// @Summary      List invoices by status
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status  path      string  true   "Invoice status (DRAFT, SENT, PARTIALLY_PAID, PAID, OVERDUE, CANCELLED)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20, max 100)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      400     {object}  response.Response
// @Router       /api/invoices/status/{status} [get]
func (h *InvoiceHandler) GetInvoicesByStatus(c *gin.Context) {
	params := pagination.Parse(c)

	invoices, total, err := h.invoiceService.GetInvoicesByStatus(c.Request.Context(), c.Param("status"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetBillingStats returns billed/paid/outstanding totals for a patient
// @Summary      Get billing stats by patient
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        patientId  path      int  true  "Patient ID"
// @Success      200        {object}  response.Response{data=service.BillingStats}
// @Failure      400        {object}  response.Response
// @Router       /api/invoices/stats/{patientId} [get]
func (h *InvoiceHandler) GetBillingStats(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("patientId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid patient id"))
		return
	}

	stats, err := h.invoiceService.GetBillingStats(c.Request.Context(), patientID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetBillingStatsByUser returns billing stats for the patient linked to a user account
// @Summary      Get billing stats by user
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        userId  path      int  true  "User ID"
// @Success      200     {object}  response.Response{data=service.BillingStats}
// @Failure      400     {object}  response.Response
// @Router       /api/invoices/stats/user/{userId} [get]
func (h *InvoiceHandler) GetBillingStatsByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
		return
	}

	stats, err := h.invoiceService.GetBillingStatsByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// ExportPatientInvoices downloads a patient's invoices as an xlsx workbook
// @Summary      Export patient invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        patientId  path  int  true  "Patient ID"
// @Success      200
// @Failure      400  {object}  response.Response
// @Router       /api/invoices/patient/{patientId}/export [get]
func (h *InvoiceHandler) ExportPatientInvoices(c *gin.Context) {
	patientID, err := strconv.ParseInt(c.Param("patientId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid patient id"))
		return
	}

	data, fileName, err := h.invoiceService.ExportPatientInvoices(c.Request.Context(), patientID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// UpdateInvoice replaces an invoice's billing details
// @Summary      Update invoice
// @Description  Replaces billing items, insurance, tax, discount, due date and notes. Payments are preserved; use the payments endpoint to record them.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.UpdateInvoiceRequest  true  "Update Invoice Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateInvoiceStatus sets an invoice's status directly
// @Summary      Update invoice status
// @Description  Sets the invoice status verbatim, bypassing the payment-derived state machine
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Invoice ID"
// @Param        payload  body      service.StatusUpdateRequest  true  "Status Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/invoices/{id}/status [patch]
func (h *InvoiceHandler) UpdateInvoiceStatus(c *gin.Context) {
	var req service.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.UpdateInvoiceStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// AddPayment records a payment against an invoice
// @Summary      Add payment
// @Description  Appends a payment and recomputes paid, outstanding and status
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.PaymentRequest  true  "Payment Payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) AddPayment(c *gin.Context) {
	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.AddPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice permanently removes an invoice
// @Summary      Delete invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
