package pdf

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-api/internal/domain/order"
	"github.com/your-org/marketplace-api/internal/testutil"
)

func TestRenderInvoiceHTML(t *testing.T) {
	svc := NewService(testutil.Config())
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

	o := &order.Order{
		OrderNumber: "ORD-20240309-ABCDEF12",
		Status:      order.StatusConfirmed,
		TotalAmount: decimal.RequireFromString("41.50"),
		ShippingAddress: order.ShippingAddress{
			Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US",
		},
		Items: []order.OrderItem{
			{Name: "Mug <large>", Price: decimal.RequireFromString("10.25"), Quantity: 2},
			{Name: "Poster", Price: decimal.NewFromInt(21), Quantity: 1},
		},
	}

	html, err := svc.RenderInvoiceHTML(o, Customer{Name: "Ada Buyer", Email: "ada@shop.test"})
	require.NoError(t, err)
	out := string(html)

	assert.Contains(t, out, "INV-ORD-20240309-ABCDEF12")
	assert.Contains(t, out, "March 9, 2024")
	assert.Contains(t, out, "marketplace-test")
	assert.Contains(t, out, "Springfield, IL 62701")
	assert.Contains(t, out, "20.50")
	assert.Contains(t, out, "21.00")
	assert.Contains(t, out, "41.50")
	assert.Contains(t, out, "Mug &lt;large&gt;")
	assert.NotContains(t, out, "Mug <large>")
}
