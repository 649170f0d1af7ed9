package store

import (
	"context"
	"fmt"

	"store_manager/internal/model"

	"gorm.io/gorm/clause"
)

// SaveStockAlerts 幂等写入告警：同一 (sale_id, product_id) 只保留一条。
func (s *Store) SaveStockAlerts(ctx context.Context, alerts []model.StockAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&alerts).Error
	if err != nil {
		return fmt.Errorf("save stock alerts: %w", err)
	}
	return nil
}

func (s *Store) ListStockAlerts(ctx context.Context, ownerID uint, limit int) ([]model.StockAlert, error) {
	var list []model.StockAlert
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list stock alerts: %w", err)
	}
	return list, nil
}
