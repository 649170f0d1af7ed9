package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	sales    []SaleRow
	items    []ItemRow
	itemsErr error
}

func (f *fakeSource) SalesSince(_ context.Context, _ uint, _ time.Time) ([]SaleRow, error) {
	return f.sales, nil
}

func (f *fakeSource) ItemsSince(_ context.Context, _ uint, _ time.Time) ([]ItemRow, error) {
	return f.items, f.itemsErr
}

func TestBuilderBuild(t *testing.T) {
	src := &fakeSource{
		sales: []SaleRow{
			saleAt(date(2024, 1, 5), "90", "26"),
			saleAt(date(2024, 2, 1), "10", "2"),
		},
		items: []ItemRow{
			{ProductName: "rice", Quantity: 2, TotalPrice: dec("60"), Profit: dec("20")},
			{ProductName: "soap", Quantity: 3, TotalPrice: dec("30"), Profit: dec("6")},
			{ProductName: "soap", Quantity: 1, TotalPrice: dec("10"), Profit: dec("2")},
		},
	}
	now := date(2024, 2, 10)

	rep, err := NewBuilder(src).Build(context.Background(), 1, Monthly, now)
	require.NoError(t, err)

	assert.Equal(t, Monthly, rep.Period)
	assert.Equal(t, Monthly.Since(now), rep.Since)
	require.Len(t, rep.Buckets, 2)
	require.Len(t, rep.Products, 2)
	assert.Equal(t, "rice", rep.Products[0].ProductName)
	assert.Equal(t, 4, rep.Products[1].TotalQuantity)
	assert.Equal(t, 2, rep.Totals.TotalSales)
}

func TestBuilderFailsWhenAnyReadFails(t *testing.T) {
	src := &fakeSource{itemsErr: errors.New("boom")}
	_, err := NewBuilder(src).Build(context.Background(), 1, Daily, time.Now())
	assert.Error(t, err)
}
