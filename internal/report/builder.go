package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source 报表所需的两类只读查询。
type Source interface {
	SalesSince(ctx context.Context, ownerID uint, since time.Time) ([]SaleRow, error)
	ItemsSince(ctx context.Context, ownerID uint, since time.Time) ([]ItemRow, error)
}

// Report 报表页的完整数据。
type Report struct {
	Period   Period         `json:"period"`
	Since    time.Time      `json:"since"`
	Buckets  []Bucket       `json:"buckets"`
	Products []ProductSales `json:"products"`
	Totals   Totals         `json:"totals"`
}

type Builder struct {
	src Source
}

func NewBuilder(src Source) *Builder {
	return &Builder{src: src}
}

// Build 并发读取销售单与明细，任一失败则整个报表失败（两部分必须来自同一窗口）。
func (b *Builder) Build(ctx context.Context, ownerID uint, p Period, now time.Time) (*Report, error) {
	since := p.Since(now)

	var (
		sales []SaleRow
		items []ItemRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := b.src.SalesSince(gctx, ownerID, since)
		if err != nil {
			return fmt.Errorf("sales since: %w", err)
		}
		sales = rows
		return nil
	})
	g.Go(func() error {
		rows, err := b.src.ItemsSince(gctx, ownerID, since)
		if err != nil {
			return fmt.Errorf("items since: %w", err)
		}
		items = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		Period:   p,
		Since:    since,
		Buckets:  GroupSales(sales, p),
		Products: RankProducts(items, TopProducts),
		Totals:   Summarize(sales),
	}, nil
}
