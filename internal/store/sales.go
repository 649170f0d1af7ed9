package store

import (
	"context"
	"fmt"
	"time"

	"store_manager/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	invoicePrefix  = "INV-"
	invoicePadding = 6
)

// CommitSale 在一个事务里完成结账的全部写入：
// 1. 生成发票号
// 2. 写 sales
// 3. 写 sale_items
// 4. 逐个商品条件扣减库存（quantity >= 扣减量才更新）
// 任一步失败整体回滚，sale 保持调用前的内容。
func (s *Store) CommitSale(ctx context.Context, ownerID uint, sale *model.Sale) ([]model.StockLevel, error) {
	if len(sale.Items) == 0 {
		return nil, ErrEmptySale
	}

	row := *sale
	row.ID = 0
	row.UserID = ownerID
	row.Items = nil
	items := make([]model.SaleItem, len(sale.Items))
	copy(items, sale.Items)

	var levels []model.StockLevel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		no, err := nextInvoiceNumber(tx, ownerID)
		if err != nil {
			return err
		}
		row.InvoiceNumber = no

		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("create sale: %w", err)
		}

		for i := range items {
			items[i].ID = 0
			items[i].SaleID = row.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create sale items: %w", err)
		}

		levels = make([]model.StockLevel, 0, len(items))
		for _, it := range items {
			res := tx.Model(&model.Product{}).
				Where("id = ? AND user_id = ? AND quantity >= ?", it.ProductID, ownerID, it.Quantity).
				UpdateColumn("quantity", gorm.Expr("quantity - ?", it.Quantity))
			if res.Error != nil {
				return fmt.Errorf("decrement product %d: %w", it.ProductID, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, it.ProductName)
			}

			var p model.Product
			if err := tx.Select("id", "name", "quantity", "min_quantity").First(&p, it.ProductID).Error; err != nil {
				return fmt.Errorf("reload product %d: %w", it.ProductID, err)
			}
			levels = append(levels, model.StockLevel{
				ProductID:   p.ID,
				Name:        p.Name,
				Quantity:    p.Quantity,
				MinQuantity: p.MinQuantity,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	row.Items = items
	*sale = row
	return levels, nil
}

// nextInvoiceNumber 递增店主的发票计数器并格式化，必须在事务内调用。
func nextInvoiceNumber(tx *gorm.DB, ownerID uint) (string, error) {
	seq := model.InvoiceSequence{UserID: ownerID, LastNo: 1}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_no": gorm.Expr("last_no + 1")}),
	}).Create(&seq).Error
	if err != nil {
		return "", fmt.Errorf("bump invoice sequence: %w", err)
	}
	if err := tx.Where("user_id = ?", ownerID).First(&seq).Error; err != nil {
		return "", fmt.Errorf("read invoice sequence: %w", err)
	}
	return fmt.Sprintf("%s%0*d", invoicePrefix, invoicePadding, seq.LastNo), nil
}

// GetSale 读取一张销售单及明细。
func (s *Store) GetSale(ctx context.Context, ownerID, id uint) (*model.Sale, error) {
	var sale model.Sale
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("user_id = ?", ownerID).
		First(&sale, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sale, nil
}

// RecentSales 最近 limit 张销售单（不含明细）。
func (s *Store) RecentSales(ctx context.Context, ownerID uint, limit int) ([]model.Sale, error) {
	var list []model.Sale
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("recent sales: %w", err)
	}
	return list, nil
}

// SalesTotalSince 统计 since 之后的销售总额与单数。
func (s *Store) SalesTotalSince(ctx context.Context, ownerID uint, since time.Time) (decimal.Decimal, int64, error) {
	var amounts []decimal.Decimal
	err := s.db.WithContext(ctx).Model(&model.Sale{}).
		Where("user_id = ? AND created_at >= ?", ownerID, since.UTC()).
		Pluck("total_amount", &amounts).Error
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("sales total: %w", err)
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, int64(len(amounts)), nil
}
