package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"store_manager/internal/model"

	"github.com/shopspring/decimal"
)

// ProductForm 新增商品表单，字段保持用户输入的原始字符串。
type ProductForm struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Quantity      string `json:"quantity"`
	PurchasePrice string `json:"purchase_price"`
	SellingPrice  string `json:"selling_price"`
	MinQuantity   string `json:"min_quantity"`
}

// FormError 汇总全部不合法字段，便于前端逐项提示。
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// Parse 校验并转换为待写入的商品（未设置 owner）。
func (f ProductForm) Parse() (*model.Product, error) {
	errs := map[string]string{}

	name := strings.TrimSpace(f.Name)
	if name == "" {
		errs["name"] = "required"
	}
	category := strings.TrimSpace(f.Category)
	if !ValidCategory(category) {
		errs["category"] = fmt.Sprintf("must be one of %s", strings.Join(Categories, ", "))
	}

	qty, err := parseCount(f.Quantity)
	if err != nil {
		errs["quantity"] = err.Error()
	}

	minQty := model.DefaultMinQuantity
	if strings.TrimSpace(f.MinQuantity) != "" {
		v, err := parseCount(f.MinQuantity)
		switch {
		case err != nil:
			errs["min_quantity"] = err.Error()
		case v < 1:
			errs["min_quantity"] = "must be at least 1"
		default:
			minQty = v
		}
	}

	purchase, err := parseMoney(f.PurchasePrice)
	if err != nil {
		errs["purchase_price"] = err.Error()
	}
	selling, err := parseMoney(f.SellingPrice)
	if err != nil {
		errs["selling_price"] = err.Error()
	}

	if len(errs) > 0 {
		return nil, &FormError{Fields: errs}
	}
	return &model.Product{
		Name:          name,
		Category:      category,
		Quantity:      qty,
		PurchasePrice: purchase,
		SellingPrice:  selling,
		MinQuantity:   minQty,
	}, nil
}

// Preview 单件预期利润，仅用于展示；价格无法解析时按 0 处理，不参与校验。
func (f ProductForm) Preview() decimal.Decimal {
	purchase, _ := decimal.NewFromString(strings.TrimSpace(f.PurchasePrice))
	selling, _ := decimal.NewFromString(strings.TrimSpace(f.SellingPrice))
	return selling.Sub(purchase).Round(2)
}

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("must be a whole number")
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return d, nil
}
