package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"store_manager/internal/model"

	"github.com/shopspring/decimal"
)

// RecentLimit 首页展示的最近销售单数量。
const RecentLimit = 5

// Source 首页的四个独立查询。
type Source interface {
	CountProducts(ctx context.Context, ownerID uint) (int64, error)
	SalesTotalSince(ctx context.Context, ownerID uint, since time.Time) (decimal.Decimal, int64, error)
	LowStockProducts(ctx context.Context, ownerID uint) ([]model.Product, error)
	RecentSales(ctx context.Context, ownerID uint, limit int) ([]model.Sale, error)
}

// Summary 首页汇总。某个查询失败时对应字段为零值，错误记录在 Errors 中。
type Summary struct {
	ProductCount  int64             `json:"product_count"`
	WindowDays    int               `json:"window_days"`
	SalesTotal    decimal.Decimal   `json:"sales_total"`
	SalesCount    int64             `json:"sales_count"`
	LowStock      []model.Product   `json:"low_stock"`
	LowStockCount int               `json:"low_stock_count"`
	RecentSales   []model.Sale      `json:"recent_sales"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// Section names used as keys in Summary.Errors.
const (
	SectionProducts = "products"
	SectionSales    = "sales"
	SectionLowStock = "low_stock"
	SectionRecent   = "recent_sales"
)

type Aggregator struct {
	src    Source
	window time.Duration
}

func NewAggregator(src Source, window time.Duration) *Aggregator {
	return &Aggregator{src: src, window: window}
}

// Load 并发执行四个查询并汇总；单个失败不影响其他部分。
func (a *Aggregator) Load(ctx context.Context, ownerID uint, now time.Time) Summary {
	sum := Summary{
		WindowDays:  int(a.window.Hours() / 24),
		SalesTotal:  decimal.Zero,
		LowStock:    []model.Product{},
		RecentSales: []model.Sale{},
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = map[string]string{}
	)
	fail := func(section string, err error) {
		log.Printf("dashboard %s owner=%d: %v", section, ownerID, err)
		mu.Lock()
		errs[section] = "failed to load"
		mu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		n, err := a.src.CountProducts(ctx, ownerID)
		if err != nil {
			fail(SectionProducts, err)
			return
		}
		mu.Lock()
		sum.ProductCount = n
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		total, count, err := a.src.SalesTotalSince(ctx, ownerID, now.Add(-a.window))
		if err != nil {
			fail(SectionSales, err)
			return
		}
		mu.Lock()
		sum.SalesTotal, sum.SalesCount = total, count
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		list, err := a.src.LowStockProducts(ctx, ownerID)
		if err != nil {
			fail(SectionLowStock, err)
			return
		}
		mu.Lock()
		sum.LowStock, sum.LowStockCount = list, len(list)
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		list, err := a.src.RecentSales(ctx, ownerID, RecentLimit)
		if err != nil {
			fail(SectionRecent, err)
			return
		}
		mu.Lock()
		sum.RecentSales = list
		mu.Unlock()
	}()
	wg.Wait()

	if len(errs) > 0 {
		sum.Errors = errs
	}
	return sum
}
