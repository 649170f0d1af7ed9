package catalog

import (
	"strings"

	"store_manager/internal/model"
)

// Categories 商品分类固定枚举。
var Categories = []string{
	"groceries",
	"beverages",
	"cleaning",
	"household",
	"cosmetics",
	"medicine",
	"clothing",
	"electronics",
	"other",
}

// ValidCategory 判断分类是否在枚举内。
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Filter 在已拉取的快照上做本地过滤：名称或分类包含 term（忽略大小写）。
// term 为空时原样返回。
func Filter(products []model.Product, term string) []model.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return products
	}
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Category), term) {
			out = append(out, p)
		}
	}
	return out
}

// LowStock quantity <= min_quantity 的子集，保持原顺序。
func LowStock(products []model.Product) []model.Product {
	out := make([]model.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}

// Entry 列表展示用：商品 + 低库存标记。
type Entry struct {
	model.Product
	LowStock bool `json:"low_stock"`
}

// Entries 每次调用都按当前快照重新计算低库存标记。
func Entries(products []model.Product) []Entry {
	out := make([]Entry, len(products))
	for i, p := range products {
		out[i] = Entry{Product: p, LowStock: p.LowStock()}
	}
	return out
}
