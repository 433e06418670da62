package notification

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-api/internal/pkg/email"
)

// EmailSink delivers notifications as transactional emails
type EmailSink struct {
	mailer      *email.Service
	resetExpiry string
}

// NewEmailSink wraps the email service
func NewEmailSink(mailer *email.Service, resetExpiry string) *EmailSink {
	return &EmailSink{mailer: mailer, resetExpiry: resetExpiry}
}

func (s *EmailSink) NotifyOrderConfirmed(ctx context.Context, to Recipient, order OrderSummary) error {
	return s.mailer.SendOrderConfirmation(ctx, to.Email, to.Name, orderData(order))
}

func (s *EmailSink) NotifyOrderStatusChanged(ctx context.Context, to Recipient, order OrderSummary) error {
	return s.mailer.SendOrderStatusUpdate(ctx, to.Email, to.Name, orderData(order))
}

func (s *EmailSink) NotifyWelcome(ctx context.Context, to Recipient, activationURL string) error {
	return s.mailer.SendWelcome(ctx, to.Email, to.Name, activationURL)
}

func (s *EmailSink) NotifyPasswordReset(ctx context.Context, to Recipient, resetURL string) error {
	return s.mailer.SendPasswordReset(ctx, to.Email, to.Name, resetURL, s.resetExpiry)
}

func orderData(order OrderSummary) email.OrderData {
	lines := make([]email.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, email.OrderLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(2),
			Total:    item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2),
		})
	}

	return email.OrderData{
		OrderNumber:     order.OrderNumber,
		OrderDate:       order.PlacedAt.Format("January 2, 2006"),
		Status:          order.Status,
		PreviousStatus:  order.PreviousStatus,
		Total:           order.TotalAmount.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		Items:           lines,
	}
}

var _ Sink = (*EmailSink)(nil)
