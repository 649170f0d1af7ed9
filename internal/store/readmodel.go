package store

import (
	"context"
	"fmt"
	"time"

	"store_manager/internal/report"

	sq "github.com/Masterminds/squirrel"
)

// SalesSince 报表用：since 之后的销售单，按时间升序。
func (s *Store) SalesSince(ctx context.Context, ownerID uint, since time.Time) ([]report.SaleRow, error) {
	query, args, err := sq.Select("created_at", "total_amount", "profit").
		From("sales").
		Where(sq.Eq{"user_id": ownerID}).
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sales query: %w", err)
	}
	rows := []report.SaleRow{}
	if err := s.rx.SelectContext(ctx, &rows, s.rx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	return rows, nil
}

// ItemsSince 报表用：since 之后销售单的全部明细。
func (s *Store) ItemsSince(ctx context.Context, ownerID uint, since time.Time) ([]report.ItemRow, error) {
	query, args, err := sq.Select("si.product_name", "si.quantity", "si.total_price", "si.profit").
		From("sale_items si").
		Join("sales s ON s.id = si.sale_id").
		Where(sq.Eq{"s.user_id": ownerID}).
		Where(sq.GtOrEq{"s.created_at": since.UTC()}).
		OrderBy("si.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}
	rows := []report.ItemRow{}
	if err := s.rx.SelectContext(ctx, &rows, s.rx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return rows, nil
}
