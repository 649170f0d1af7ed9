package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"store_manager/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s, err := New(db)
	require.NoError(t, err)
	return s
}

func seedProduct(t *testing.T, s *Store, owner uint, name string, qty int, buy, sell string) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:          name,
		Category:      "groceries",
		Quantity:      qty,
		PurchasePrice: dec(buy),
		SellingPrice:  dec(sell),
		MinQuantity:   model.DefaultMinQuantity,
	}
	require.NoError(t, s.CreateProduct(context.Background(), owner, p))
	return p
}

func saleFor(items ...model.SaleItem) *model.Sale {
	total, profit := decimal.Zero, decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
		profit = profit.Add(it.Profit)
	}
	return &model.Sale{TotalAmount: total, Profit: profit, Items: items}
}

func itemFor(p *model.Product, qty int) model.SaleItem {
	q := decimal.NewFromInt(int64(qty))
	return model.SaleItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    qty,
		UnitPrice:   p.SellingPrice,
		TotalPrice:  p.SellingPrice.Mul(q),
		Profit:      p.UnitProfit().Mul(q),
	}
}

func TestProductsAreScopedByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedProduct(t, s, 1, "tea", 3, "1", "2")
	seedProduct(t, s, 1, "apple", 0, "1", "2")
	other := seedProduct(t, s, 2, "coffee", 9, "1", "2")

	all, err := s.ListProducts(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "apple", all[0].Name)

	inStock, err := s.ListProducts(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, inStock, 1)
	assert.Equal(t, "tea", inStock[0].Name)

	_, err = s.GetProduct(ctx, 1, other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, 1, other.ID), ErrNotFound)

	n, err := s.CountProducts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	low, err := s.LowStockProducts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, low, 2)
}

func TestDeleteProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 1, "tea", 3, "1", "2")

	require.NoError(t, s.DeleteProduct(ctx, 1, p.ID))
	list, err := s.ListProducts(ctx, 1, false)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, s.DeleteProduct(ctx, 1, p.ID), ErrNotFound)
}

func TestCommitSale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	juice := seedProduct(t, s, 7, "juice", 10, "20", "30")
	soap := seedProduct(t, s, 7, "soap", 6, "8", "10")

	sale := saleFor(itemFor(juice, 2), itemFor(soap, 3))
	levels, err := s.CommitSale(ctx, 7, sale)
	require.NoError(t, err)

	assert.NotZero(t, sale.ID)
	assert.Equal(t, "INV-000001", sale.InvoiceNumber)
	assert.Equal(t, uint(7), sale.UserID)
	require.Len(t, levels, 2)
	assert.Equal(t, 8, levels[0].Quantity)
	assert.Equal(t, 3, levels[1].Quantity)

	stored, err := s.GetSale(ctx, 7, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	sumT, sumP := decimal.Zero, decimal.Zero
	for _, it := range stored.Items {
		sumT = sumT.Add(it.TotalPrice)
		sumP = sumP.Add(it.Profit)
	}
	assert.True(t, sumT.Equal(stored.TotalAmount), "%s != %s", sumT, stored.TotalAmount)
	assert.True(t, sumP.Equal(stored.Profit))
	assert.True(t, dec("90").Equal(stored.TotalAmount))
	assert.True(t, dec("26").Equal(stored.Profit))

	p, err := s.GetProduct(ctx, 7, juice.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Quantity)

	second := saleFor(itemFor(juice, 1))
	_, err = s.CommitSale(ctx, 7, second)
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", second.InvoiceNumber)

	// 其他店主的计数器独立
	mine := seedProduct(t, s, 8, "bread", 2, "1", "2")
	third := saleFor(itemFor(mine, 1))
	_, err = s.CommitSale(ctx, 8, third)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", third.InvoiceNumber)
}

func TestCommitSaleRollsBackOnInsufficientStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	juice := seedProduct(t, s, 1, "juice", 10, "20", "30")
	soap := seedProduct(t, s, 1, "soap", 2, "8", "10")

	sale := saleFor(itemFor(juice, 2), itemFor(soap, 3))
	_, err := s.CommitSale(ctx, 1, sale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Zero(t, sale.ID)
	assert.Empty(t, sale.InvoiceNumber)

	p, err := s.GetProduct(ctx, 1, juice.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Quantity, "juice decrement must be rolled back")

	recent, err := s.RecentSales(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	var items int64
	require.NoError(t, s.DB().Model(&model.SaleItem{}).Count(&items).Error)
	assert.Zero(t, items)

	// 发票号也随事务回滚，下一张仍从 1 开始
	ok := saleFor(itemFor(juice, 1))
	_, err = s.CommitSale(ctx, 1, ok)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", ok.InvoiceNumber)
}

func TestCommitSaleRejectsOtherOwnersProduct(t *testing.T) {
	s := newTestStore(t)
	p := seedProduct(t, s, 1, "juice", 10, "20", "30")

	_, err := s.CommitSale(context.Background(), 2, saleFor(itemFor(p, 1)))
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCommitSaleEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CommitSale(context.Background(), 1, &model.Sale{})
	assert.ErrorIs(t, err, ErrEmptySale)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 1, "last one", 3, "1", "2")

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CommitSale(ctx, 1, saleFor(itemFor(p, 1)))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	got, err := s.GetProduct(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestDashboardReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 1, "juice", 10, "20", "30")

	for i := 0; i < 3; i++ {
		_, err := s.CommitSale(ctx, 1, saleFor(itemFor(p, 1)))
		require.NoError(t, err)
	}

	total, count, err := s.SalesTotalSince(ctx, 1, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.True(t, dec("90").Equal(total))

	total, count, err = s.SalesTotalSince(ctx, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, total.IsZero())

	recent, err := s.RecentSales(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "INV-000003", recent[0].InvoiceNumber)
}

func TestReportReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tea := seedProduct(t, s, 1, "tea", 10, "1", "2.5")
	rice := seedProduct(t, s, 1, "rice", 10, "3", "4")
	foreign := seedProduct(t, s, 2, "coffee", 10, "1", "2")

	_, err := s.CommitSale(ctx, 1, saleFor(itemFor(tea, 2), itemFor(rice, 1)))
	require.NoError(t, err)
	_, err = s.CommitSale(ctx, 2, saleFor(itemFor(foreign, 1)))
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour)
	sales, err := s.SalesSince(ctx, 1, since)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, dec("9").Equal(sales[0].TotalAmount), sales[0].TotalAmount.String())
	assert.WithinDuration(t, time.Now(), sales[0].CreatedAt, time.Minute)

	items, err := s.ItemsSince(ctx, 1, since)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "tea", items[0].ProductName)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, dec("5").Equal(items[0].TotalPrice))

	none, err := s.SalesSince(ctx, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStockAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alerts := []model.StockAlert{
		{UserID: 1, SaleID: 1, ProductID: 1, ProductName: "tea", Quantity: 2, MinQuantity: 5},
		{UserID: 1, SaleID: 1, ProductID: 2, ProductName: "rice", Quantity: 0, MinQuantity: 5},
	}
	require.NoError(t, s.SaveStockAlerts(ctx, alerts))

	dup := []model.StockAlert{{UserID: 1, SaleID: 1, ProductID: 1, ProductName: "tea", Quantity: 2, MinQuantity: 5}}
	require.NoError(t, s.SaveStockAlerts(ctx, dup))

	list, err := s.ListStockAlerts(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = s.ListStockAlerts(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
