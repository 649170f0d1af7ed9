package receipt

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"store_manager/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Line 小票上的一行。
type Line struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Document 一张可打印的销售小票。
type Document struct {
	StoreName     string
	InvoiceNumber string
	IssuedAt      time.Time
	Lines         []Line
	GrandTotal    decimal.Decimal
}

// FromSale 由销售单（含明细）构造小票。
func FromSale(storeName string, sale model.Sale, issuedAt time.Time) Document {
	doc := Document{
		StoreName:     storeName,
		InvoiceNumber: sale.InvoiceNumber,
		IssuedAt:      issuedAt,
		Lines:         make([]Line, 0, len(sale.Items)),
		GrandTotal:    sale.TotalAmount,
	}
	for _, it := range sale.Items {
		doc.Lines = append(doc.Lines, Line{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Total:     it.TotalPrice,
		})
	}
	return doc
}

// Renderer 按门店语言输出 HTML 小票。
type Renderer struct {
	tag     language.Tag
	printer *message.Printer
	dir     string
	point   string
	tmpl    *template.Template
}

// NewRenderer locale 形如 "ar-EG"、"en-US"。
func NewRenderer(locale string) (*Renderer, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("receipt locale %q: %w", locale, err)
	}
	r := &Renderer{
		tag:     tag,
		printer: message.NewPrinter(tag),
		dir:     direction(tag),
	}
	r.point = decimalPoint(r.printer)
	r.tmpl, err = template.New("receipt").Funcs(template.FuncMap{
		"money": r.money,
		"count": r.count,
	}).Parse(receiptHTML)
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	return r, nil
}

// HTML 写出完整的可打印页面。
func (r *Renderer) HTML(w io.Writer, doc Document) error {
	return r.tmpl.Execute(w, struct {
		Document
		Lang string
		Dir  string
		Date string
		Time string
	}{
		Document: doc,
		Lang:     r.tag.String(),
		Dir:      r.dir,
		Date:     doc.IssuedAt.Format("2006-01-02"),
		Time:     doc.IssuedAt.Format("15:04:05"),
	})
}

// money 整数部分与分分别按整数格式化，不经过 float64，金额不丢精度（整数部分上限 int64）。
func (r *Renderer) money(d decimal.Decimal) string {
	abs := d.Round(2).Abs()
	whole := abs.IntPart()
	cents := abs.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
	s := r.printer.Sprint(number.Decimal(whole)) + r.point +
		r.printer.Sprint(number.Decimal(cents, number.MinIntegerDigits(2)))
	if d.Round(2).IsNegative() {
		return "-" + s
	}
	return s
}

// decimalPoint 取该语言的小数点符号，例如 "." 或 "٫"。
func decimalPoint(p *message.Printer) string {
	runes := []rune(p.Sprint(number.Decimal(1.5, number.Scale(1))))
	if len(runes) < 3 {
		return "."
	}
	return string(runes[1 : len(runes)-1])
}

func (r *Renderer) count(n int) string {
	return r.printer.Sprintf("%d", n)
}

func direction(tag language.Tag) string {
	base, _ := tag.Base()
	switch base.String() {
	case "ar", "he", "fa", "ur":
		return "rtl"
	}
	return "ltr"
}

const receiptHTML = `<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Arial, sans-serif; }
.header { text-align: center; margin-bottom: 20px; }
.invoice-details { margin-bottom: 20px; }
table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: start; }
th { background-color: #f2f2f2; }
.total-row { font-weight: bold; }
.footer { text-align: center; margin-top: 40px; }
</style>
</head>
<body>
<div class="header">
<h1>{{.StoreName}}</h1>
<h2>Sales Invoice</h2>
</div>
<div class="invoice-details">
<p><strong>Invoice:</strong> {{.InvoiceNumber}}</p>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Time:</strong> {{.Time}}</p>
</div>
<table>
<thead>
<tr><th>Product</th><th>Quantity</th><th>Unit price</th><th>Total</th></tr>
</thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.Name}}</td><td>{{count .Quantity}}</td><td>{{money .UnitPrice}}</td><td>{{money .Total}}</td></tr>
{{- end}}
</tbody>
</table>
<p class="total-row">Grand total: {{money .GrandTotal}}</p>
<div class="footer"><p>Thank you for your business</p></div>
</body>
</html>
`
