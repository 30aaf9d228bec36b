package fulfillment

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

type copyText struct {
	Dir            string
	VendorSubject  string
	VendorHeading  string
	VendorIntro    string
	CustSubject    string
	CustHeading    string
	CustIntro      string
	Product        string
	Quantity       string
	Total          string
	Delivery       string
	AttachmentNote string
	InAppCustomer  string
	InAppVendor    string
}

var copyByLanguage = map[enums.Language]copyText{
	enums.LanguageEnglish: {
		Dir:            "ltr",
		VendorSubject:  "New order %s",
		VendorHeading:  "New order received",
		VendorIntro:    "A new order was placed with you. The purchase order is attached when available.",
		CustSubject:    "Your order %s is confirmed",
		CustHeading:    "Thank you for your order",
		CustIntro:      "We received your order and passed it to the vendor.",
		Product:        "Product",
		Quantity:       "Qty",
		Total:          "Total",
		Delivery:       "Delivery",
		AttachmentNote: "Purchase order attached.",
		InAppCustomer:  "Order %s placed",
		InAppVendor:    "New order %s",
	},
	enums.LanguageHebrew: {
		Dir:            "rtl",
		VendorSubject:  "הזמנה חדשה %s",
		VendorHeading:  "התקבלה הזמנה חדשה",
		VendorIntro:    "התקבלה אצלך הזמנה חדשה. הזמנת הרכש מצורפת כשהיא זמינה.",
		CustSubject:    "הזמנתך %s התקבלה",
		CustHeading:    "תודה על הזמנתך",
		CustIntro:      "הזמנתך התקבלה והועברה לספק.",
		Product:        "מוצר",
		Quantity:       "כמות",
		Total:          "סה\"כ",
		Delivery:       "משלוח",
		AttachmentNote: "הזמנת הרכש מצורפת.",
		InAppCustomer:  "הזמנה %s בוצעה",
		InAppVendor:    "הזמנה חדשה %s",
	},
}

func copyFor(lang enums.Language) copyText {
	if c, ok := copyByLanguage[lang]; ok {
		return c
	}
	return copyByLanguage[enums.LanguageHebrew]
}

type emailLine struct {
	Name     string
	Quantity string
	Total    string
}

type emailView struct {
	C          copyText
	Heading    string
	Intro      string
	Number     string
	VendorName string
	Address    string
	Lines      []emailLine
	Delivery   string
	Total      string
	Currency   string
	Attached   bool
}

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html dir="{{.C.Dir}}"><head><meta charset="UTF-8"></head>
<body style="font-family:Arial,sans-serif;background:#f7f7f7;padding:20px">
<div style="max-width:600px;margin:auto;background:#fff;padding:20px;border-radius:8px">
<h2>{{.Heading}}</h2>
<p>{{.Intro}}</p>
<p><strong>{{.Number}}</strong> · {{.VendorName}}</p>
<p>{{.Address}}</p>
<table style="width:100%;border-collapse:collapse">
<tr><th style="text-align:start">{{.C.Product}}</th><th>{{.C.Quantity}}</th><th>{{.C.Total}}</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.Total}}</td></tr>{{end}}
<tr><td colspan="2">{{.C.Delivery}}</td><td>{{.Delivery}}</td></tr>
<tr><td colspan="2"><strong>{{.C.Total}}</strong></td><td><strong>{{.Total}} {{.Currency}}</strong></td></tr>
</table>
{{if .Attached}}<p>{{.C.AttachmentNote}}</p>{{end}}
</div></body></html>`))

type audience int

const (
	toVendor audience = iota
	toCustomer
)

// renderEmail returns the subject and HTML body for one recipient.
func renderEmail(order models.Order, vendor models.Vendor, who audience, attached bool) (string, string, error) {
	lang := order.Language
	if who == toVendor {
		lang = vendor.Language
	}
	c := copyFor(lang)
	v := emailView{
		C:          c,
		Number:     order.OrderNumber,
		VendorName: vendor.Name,
		Address:    order.DeliveryAddress + ", " + order.DeliveryCity,
		Delivery:   fmt.Sprintf("%.2f", order.DeliveryPrice),
		Total:      fmt.Sprintf("%.2f", order.TotalAmount),
		Currency:   order.OrderCurrency.String(),
		Attached:   attached,
	}
	subject := fmt.Sprintf(c.CustSubject, order.OrderNumber)
	v.Heading, v.Intro = c.CustHeading, c.CustIntro
	if who == toVendor {
		subject = fmt.Sprintf(c.VendorSubject, order.OrderNumber)
		v.Heading, v.Intro = c.VendorHeading, c.VendorIntro
	}
	for _, item := range order.Items {
		name := item.ProductName
		if lang != enums.LanguageEnglish && item.ProductNameLocalized != nil {
			name = *item.ProductNameLocalized
		}
		v.Lines = append(v.Lines, emailLine{
			Name:     name,
			Quantity: fmt.Sprintf("%g %s", item.EffectiveQuantity(), item.Unit),
			Total:    fmt.Sprintf("%.2f", item.LineTotal()),
		})
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, v); err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return subject, buf.String(), nil
}
