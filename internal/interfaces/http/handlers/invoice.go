// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/domain/notification"
	"github.com/your-org/marketplace-api/internal/domain/order"
	"github.com/your-org/marketplace-api/internal/interfaces/http/middleware"
	"github.com/your-org/marketplace-api/internal/pkg/pdf"
)

// CustomerLookup resolves the name and email printed on an invoice
type CustomerLookup interface {
	ResolveRecipient(ctx context.Context, userID uint) (notification.Recipient, error)
}

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	orderService *order.Service
	pdfService   *pdf.Service
	customers    CustomerLookup
	logger       *logrus.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orderService *order.Service, pdfService *pdf.Service, customers CustomerLookup, logger *logrus.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		orderService: orderService,
		pdfService:   pdfService,
		customers:    customers,
		logger:       logger,
	}
}

// GenerateInvoice handles GET /orders/:id/invoice. Buyers get their own
// orders only; admins may fetch any. ?format=html returns the rendered page
// instead of the PDF.
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		o   *order.Order
		err error
	)
	if middleware.IsAdminFromContext(c) {
		o, err = h.orderService.GetOrderForStaff(ctx, orderID)
	} else {
		o, err = h.orderService.GetOrder(ctx, orderID, userID)
	}
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	recipient, err := h.customers.ResolveRecipient(ctx, o.UserID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	customer := pdf.Customer{Name: recipient.Name, Email: recipient.Email}

	if c.Query("format") == "html" {
		page, err := h.pdfService.RenderInvoiceHTML(o, customer)
		if err != nil {
			handleError(c, h.logger, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
		return
	}

	buf, err := h.pdfService.GenerateInvoice(o, customer)
	if err != nil {
		handleError(c, h.logger, fmt.Errorf("failed to generate invoice: %w", err))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", o.OrderNumber))
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
