// Package documents renders purchase-order PDFs with headless Chrome.
package documents

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/skip2/go-qrcode"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

const (
	defaultRenderTimeout = 30 * time.Second
	qrSize               = 160
)

// PurchaseOrder is what a vendor receives for one order.
type PurchaseOrder struct {
	Order  models.Order
	Vendor models.Vendor
}

// Renderer turns a purchase order into a PDF.
type Renderer interface {
	RenderPurchaseOrder(ctx context.Context, po PurchaseOrder) ([]byte, error)
}

// printer converts an HTML document to PDF bytes.
type printer interface {
	PrintHTML(ctx context.Context, html string) ([]byte, error)
}

// Chrome renders purchase orders through a local headless Chrome.
type Chrome struct {
	printer printer
	timeout time.Duration
}

// NewChrome builds a renderer from config. ChromePath is optional; chromedp
// looks for a browser on PATH otherwise.
func NewChrome(cfg config.DocumentsConfig) *Chrome {
	timeout := cfg.RenderTimeout
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &Chrome{printer: chromePrinter{execPath: cfg.ChromePath}, timeout: timeout}
}

// RenderPurchaseOrder builds the HTML and prints it to PDF.
func (c *Chrome) RenderPurchaseOrder(ctx context.Context, po PurchaseOrder) ([]byte, error) {
	html, err := BuildHTML(po)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pdf, err := c.printer.PrintHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("print purchase order %s: %w", po.Order.OrderNumber, err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("renderer returned an empty document")
	}
	return pdf, nil
}

type chromePrinter struct {
	execPath string
}

func (p chromePrinter) PrintHTML(ctx context.Context, html string) ([]byte, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	if p.execPath != "" {
		opts = append(opts, chromedp.ExecPath(p.execPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

type labels struct {
	Dir, Title, Vendor, Customer, Delivery, Date, Product, Quantity, Price, Total, DeliveryFee, GrandTotal, Notes string
}

var labelsByLanguage = map[enums.Language]labels{
	enums.LanguageEnglish: {
		Dir: "ltr", Title: "Purchase Order", Vendor: "Vendor", Customer: "Customer", Delivery: "Delivery",
		Date: "Delivery date", Product: "Product", Quantity: "Qty", Price: "Unit price", Total: "Total",
		DeliveryFee: "Delivery", GrandTotal: "Grand total", Notes: "Notes",
	},
	enums.LanguageHebrew: {
		Dir: "rtl", Title: "הזמנת רכש", Vendor: "ספק", Customer: "לקוח", Delivery: "משלוח",
		Date: "תאריך משלוח", Product: "מוצר", Quantity: "כמות", Price: "מחיר יחידה", Total: "סה\"כ",
		DeliveryFee: "דמי משלוח", GrandTotal: "סה\"כ לתשלום", Notes: "הערות",
	},
}

type line struct {
	Name     string
	Quantity string
	Unit     string
	Price    string
	Total    string
}

type view struct {
	L            labels
	Number       string
	QR           template.URL
	VendorName   string
	Customer     string
	Household    string
	Address      string
	Phone        string
	Notes        string
	DeliveryDate string
	Lines        []line
	DeliveryFee  string
	GrandTotal   string
	Currency     string
}

var purchaseOrderTemplate = template.Must(template.New("po").Parse(`<!DOCTYPE html>
<html dir="{{.L.Dir}}"><head><meta charset="UTF-8"><title>{{.L.Title}} {{.Number}}</title>
<style>
body{font-family:Arial,sans-serif;font-size:12px;margin:24px}
table{width:100%;border-collapse:collapse;margin-top:16px}
th,td{border:1px solid #ccc;padding:6px;text-align:start}
.head{display:flex;justify-content:space-between;align-items:center}
.totals td{font-weight:bold}
</style></head>
<body>
<div class="head"><div><h1>{{.L.Title}}</h1><p>{{.Number}}</p></div><img src="{{.QR}}" width="120" height="120" alt="{{.Number}}"></div>
<p><strong>{{.L.Vendor}}:</strong> {{.VendorName}}</p>
<p><strong>{{.L.Customer}}:</strong> {{.Customer}}{{if .Household}} ({{.Household}}){{end}}</p>
<p><strong>{{.L.Delivery}}:</strong> {{.Address}}{{if .Phone}} · {{.Phone}}{{end}}</p>
{{if .DeliveryDate}}<p><strong>{{.L.Date}}:</strong> {{.DeliveryDate}}</p>{{end}}
{{if .Notes}}<p><strong>{{.L.Notes}}:</strong> {{.Notes}}</p>{{end}}
<table>
<thead><tr><th>{{.L.Product}}</th><th>{{.L.Quantity}}</th><th>{{.L.Price}}</th><th>{{.L.Total}}</th></tr></thead>
<tbody>{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}} {{.Unit}}</td><td>{{.Price}}</td><td>{{.Total}}</td></tr>{{end}}</tbody>
<tfoot class="totals">
<tr><td colspan="3">{{.L.DeliveryFee}}</td><td>{{.DeliveryFee}}</td></tr>
<tr><td colspan="3">{{.L.GrandTotal}}</td><td>{{.GrandTotal}} {{.Currency}}</td></tr>
</tfoot></table>
</body></html>`))

// BuildHTML renders the purchase order page that RenderPurchaseOrder prints.
func BuildHTML(po PurchaseOrder) (string, error) {
	qr, err := qrcode.Encode(po.Order.OrderNumber, qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("encode order qr: %w", err)
	}

	l, ok := labelsByLanguage[po.Order.Language]
	if !ok {
		l = labelsByLanguage[enums.LanguageHebrew]
	}
	o := po.Order
	v := view{
		L:           l,
		Number:      o.OrderNumber,
		QR:          template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(qr)),
		VendorName:  po.Vendor.Name,
		Customer:    o.UserEmail,
		Household:   deref(o.HouseholdName),
		Address:     o.DeliveryAddress + ", " + o.DeliveryCity,
		Phone:       deref(o.DeliveryPhone),
		Notes:       deref(o.DeliveryNotes),
		DeliveryFee: money(o.DeliveryPrice),
		GrandTotal:  money(o.TotalAmount),
		Currency:    o.OrderCurrency.String(),
	}
	if o.DeliveryDate != nil {
		v.DeliveryDate = o.DeliveryDate.Format("2006-01-02")
	}
	for _, item := range o.Items {
		name := item.ProductName
		if o.Language != enums.LanguageEnglish && item.ProductNameLocalized != nil {
			name = *item.ProductNameLocalized
		}
		v.Lines = append(v.Lines, line{
			Name:     name,
			Quantity: fmt.Sprintf("%g", item.EffectiveQuantity()),
			Unit:     item.Unit,
			Price:    money(item.Price),
			Total:    money(item.LineTotal()),
		})
	}

	var buf bytes.Buffer
	if err := purchaseOrderTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render purchase order html: %w", err)
	}
	return buf.String(), nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
