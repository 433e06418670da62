// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-api/internal/config"
	"github.com/your-org/marketplace-api/internal/domain/order"
)

// Service renders order invoices
type Service struct {
	config *config.Config
	tmpl   *template.Template
	now    func() time.Time
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	}
	return &Service{
		config: cfg,
		tmpl:   template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceTemplate)),
		now:    time.Now,
	}
}

// Customer is who the invoice is addressed to
type Customer struct {
	Name  string
	Email string
}

// InvoiceData is the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	Seller        string
	Website       string
	Customer      Customer
	Order         *order.Order
}

// RenderInvoiceHTML renders the invoice page for an order
func (s *Service) RenderInvoiceHTML(o *order.Order, customer Customer) ([]byte, error) {
	data := InvoiceData{
		InvoiceNumber: "INV-" + o.OrderNumber,
		InvoiceDate:   s.now().Format("January 2, 2006"),
		Seller:        s.config.App.Name,
		Website:       s.config.App.BaseURL,
		Customer:      customer,
		Order:         o,
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute invoice template: %w", err)
	}
	return buf.Bytes(), nil
}

// GenerateInvoice renders the invoice and converts it to PDF with wkhtmltopdf
func (s *Service) GenerateInvoice(o *order.Order, customer Customer) (*bytes.Buffer, error) {
	html, err := s.RenderInvoiceHTML(o, customer)
	if err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}
	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.FooterRight.Set("[page]/[topage]")
	page.FooterFontSize.Set(8)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return bytes.NewBuffer(pdfg.Bytes()), nil
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Arial, sans-serif; color: #333; padding: 24px; }
.header { display: flex; justify-content: space-between; border-bottom: 2px solid #333; }
table { width: 100%; border-collapse: collapse; margin-top: 24px; }
th, td { padding: 8px; border-bottom: 1px solid #ddd; text-align: left; }
.num { text-align: right; }
.total td { font-weight: bold; border-top: 2px solid #333; }
</style>
</head>
<body>
<div class="header">
  <div>
    <h1>{{.Seller}}</h1>
    {{if .Website}}<p>{{.Website}}</p>{{end}}
  </div>
  <div>
    <p><strong>Invoice #:</strong> {{.InvoiceNumber}}</p>
    <p><strong>Date:</strong> {{.InvoiceDate}}</p>
    <p><strong>Order #:</strong> {{.Order.OrderNumber}}</p>
    <p><strong>Status:</strong> {{.Order.Status}}</p>
  </div>
</div>

<h3>Ship to</h3>
<p><strong>{{.Customer.Name}}</strong>{{if .Customer.Email}} &lt;{{.Customer.Email}}&gt;{{end}}</p>
<p>{{.Order.ShippingAddress.Street}}</p>
<p>{{.Order.ShippingAddress.City}}, {{.Order.ShippingAddress.State}} {{.Order.ShippingAddress.ZipCode}}</p>
<p>{{.Order.ShippingAddress.Country}}</p>

<table>
  <thead>
    <tr><th>Item</th><th class="num">Qty</th><th class="num">Price</th><th class="num">Total</th></tr>
  </thead>
  <tbody>
  {{range .Order.Items}}
    <tr>
      <td>{{.Name}}</td>
      <td class="num">{{.Quantity}}</td>
      <td class="num">{{money .Price}}</td>
      <td class="num">{{money .Subtotal}}</td>
    </tr>
  {{end}}
    <tr class="total">
      <td colspan="3">Total</td>
      <td class="num">{{money .Order.TotalAmount}}</td>
    </tr>
  </tbody>
</table>
</body>
</html>
`
