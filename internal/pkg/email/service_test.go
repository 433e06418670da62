package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/pkg/logger"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*Message
}

func (r *recordingSender) Send(_ context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{BaseURL: "http://shop.test"},
		Email: config.EmailConfig{
			Provider:   "log",
			FromEmail:  "noreply@shop.test",
			FromName:   "Shop",
			APIKey:     "key-123",
			APITimeout: time.Second,
		},
	}
}

func TestSendOrderConfirmation_RendersItems(t *testing.T) {
	rec := &recordingSender{}
	svc, err := NewServiceWithSender(testConfig(), rec, logger.Discard())
	require.NoError(t, err)

	err = svc.SendOrderConfirmation(context.Background(), "buyer@shop.test", "Bea", OrderData{
		OrderNumber: "ORD-20260101-abc",
		Total:       "25.00",
		Items: []OrderLine{
			{Name: "Widget", Quantity: 2, Price: "10.00", Total: "20.00"},
			{Name: "Gadget", Quantity: 1, Price: "5.00", Total: "5.00"},
		},
	})
	require.NoError(t, err)

	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, []string{"buyer@shop.test"}, msg.To)
	assert.Equal(t, KindOrderConfirmation, msg.Kind)
	assert.Contains(t, msg.Subject, "ORD-20260101-abc")
	assert.Contains(t, msg.HTML, "Widget")
	assert.Contains(t, msg.HTML, "Order total: 25.00")
}

func TestSendOrderStatusUpdate_DefaultsMessage(t *testing.T) {
	rec := &recordingSender{}
	svc, err := NewServiceWithSender(testConfig(), rec, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, svc.SendOrderStatusUpdate(context.Background(), "b@shop.test", "B", OrderData{
		OrderNumber: "ORD-1", Status: "shipped", PreviousStatus: "confirmed",
	}))
	assert.Contains(t, rec.sent[0].HTML, "on its way")
	assert.Contains(t, rec.sent[0].HTML, "Previous status: confirmed")
}

func TestSend_RequiresRecipient(t *testing.T) {
	svc, err := NewServiceWithSender(testConfig(), &recordingSender{}, logger.Discard())
	require.NoError(t, err)
	assert.Error(t, svc.Send(context.Background(), &Message{Subject: "x"}))
}

func TestSendGridSender_PostsPayload(t *testing.T) {
	var got sendGridRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := testConfig().Email
	sender := newSendGridSender(cfg, srv.Client(), srv.URL)
	err := sender.Send(context.Background(), &Message{To: []string{"x@shop.test"}, Subject: "Hi", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	assert.Equal(t, "Hi", got.Subject)
	assert.Equal(t, "x@shop.test", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "Shop", got.From.Name)
}

func TestResendSender_ReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sender := newResendSender(testConfig().Email, srv.Client(), srv.URL)
	err := sender.Send(context.Background(), &Message{To: []string{"x@shop.test"}})
	assert.ErrorContains(t, err, "status 422")
}

func TestNewSender_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Email.Provider = "pigeon"
	_, err := NewService(cfg, logger.Discard())
	assert.Error(t, err)
}

func TestBuildMIME_HeaderOrder(t *testing.T) {
	cfg := testConfig().Email
	cfg.ReplyTo = "help@shop.test"
	raw := string(buildMIME(cfg, &Message{To: []string{"a@x", "b@x"}, Subject: "S", HTML: "<b>x</b>"}))

	assert.Contains(t, raw, "From: Shop <noreply@shop.test>\r\nTo: a@x, b@x\r\nSubject: S\r\nReply-To: help@shop.test\r\n")
	assert.Contains(t, raw, "\r\n\r\n<b>x</b>")
}
