package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TopProducts 商品排行保留的条数。
const TopProducts = 10

// SaleRow 报表读取的一张销售单。
type SaleRow struct {
	CreatedAt   time.Time       `db:"created_at"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Profit      decimal.Decimal `db:"profit"`
}

// ItemRow 报表读取的一条销售明细。
type ItemRow struct {
	ProductName string          `db:"product_name"`
	Quantity    int             `db:"quantity"`
	TotalPrice  decimal.Decimal `db:"total_price"`
	Profit      decimal.Decimal `db:"profit"`
}

// Bucket 一个时间桶的汇总。
type Bucket struct {
	Key         string          `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Profit      decimal.Decimal `json:"profit"`
	SalesCount  int             `json:"sales_count"`
}

// ProductSales 单个商品的销售汇总。
type ProductSales struct {
	ProductName   string          `json:"product_name"`
	TotalQuantity int             `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
}

// Totals 窗口内的整体指标。
type Totals struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalSales        int             `json:"total_sales"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// GroupSales 按粒度分桶并累加金额、利润、单数；结果按键升序。
func GroupSales(rows []SaleRow, p Period) []Bucket {
	index := make(map[string]int)
	out := make([]Bucket, 0)
	for _, r := range rows {
		key := p.BucketKey(r.CreatedAt)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Key: key, TotalAmount: decimal.Zero, Profit: decimal.Zero})
		}
		out[i].TotalAmount = out[i].TotalAmount.Add(r.TotalAmount)
		out[i].Profit = out[i].Profit.Add(r.Profit)
		out[i].SalesCount++
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out
}

// RankProducts 按商品名汇总，收入降序（同收入按名称），取前 limit 个；limit<=0 不截断。
func RankProducts(items []ItemRow, limit int) []ProductSales {
	index := make(map[string]int)
	out := make([]ProductSales, 0)
	for _, it := range items {
		i, ok := index[it.ProductName]
		if !ok {
			i = len(out)
			index[it.ProductName] = i
			out = append(out, ProductSales{ProductName: it.ProductName, TotalRevenue: decimal.Zero, TotalProfit: decimal.Zero})
		}
		out[i].TotalQuantity += it.Quantity
		out[i].TotalRevenue = out[i].TotalRevenue.Add(it.TotalPrice)
		out[i].TotalProfit = out[i].TotalProfit.Add(it.Profit)
	}
	sort.Slice(out, func(a, b int) bool {
		if c := out[a].TotalRevenue.Cmp(out[b].TotalRevenue); c != 0 {
			return c > 0
		}
		return out[a].ProductName < out[b].ProductName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Summarize 总收入、总利润、单数与客单价（保留两位小数）。
func Summarize(rows []SaleRow) Totals {
	t := Totals{TotalRevenue: decimal.Zero, TotalProfit: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, r := range rows {
		t.TotalRevenue = t.TotalRevenue.Add(r.TotalAmount)
		t.TotalProfit = t.TotalProfit.Add(r.Profit)
	}
	t.TotalSales = len(rows)
	if t.TotalSales > 0 {
		t.AverageOrderValue = t.TotalRevenue.Div(decimal.NewFromInt(int64(t.TotalSales))).Round(2)
	}
	return t
}
