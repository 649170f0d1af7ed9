package store

import (
	"context"
	"fmt"

	"store_manager/internal/model"
)

// ListProducts 查询店主的商品，按名称排序；inStockOnly 只返回有库存的（结账页使用）。
func (s *Store) ListProducts(ctx context.Context, ownerID uint, inStockOnly bool) ([]model.Product, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if inStockOnly {
		q = q.Where("quantity > 0")
	}
	var list []model.Product
	if err := q.Order("name").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return list, nil
}

func (s *Store) GetProduct(ctx context.Context, ownerID, id uint) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CreateProduct 写入一行商品，归属强制为 ownerID。
func (s *Store) CreateProduct(ctx context.Context, ownerID uint, p *model.Product) error {
	p.ID = 0
	p.UserID = ownerID
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// DeleteProduct 软删除；不存在或不属于该店主时返回 ErrNotFound。
func (s *Store) DeleteProduct(ctx context.Context, ownerID, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Product{})
	if res.Error != nil {
		return fmt.Errorf("delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CountProducts(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Where("user_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// LowStockProducts quantity <= min_quantity，库存最少的排前面。
func (s *Store) LowStockProducts(ctx context.Context, ownerID uint) ([]model.Product, error) {
	var list []model.Product
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND quantity <= min_quantity", ownerID).
		Order("quantity").Order("name").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("low stock products: %w", err)
	}
	return list, nil
}
