package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultMinQuantity 新商品未填写最低库存时的默认阈值。
const DefaultMinQuantity = 5

// Product 门店商品：库存、进价、售价与最低库存阈值，按 UserID 归属店主。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID   uint   `gorm:"not null;index" json:"user_id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Category string `gorm:"size:64;not null;index" json:"category"`
	// Quantity 是权威库存，结账时在事务内条件扣减。
	Quantity      int             `gorm:"not null;default:0" json:"quantity"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"purchase_price"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"selling_price"`
	MinQuantity   int             `gorm:"not null;default:5" json:"min_quantity"`
}

func (Product) TableName() string { return "products" }

// LowStock reports quantity <= min_quantity.
func (p Product) LowStock() bool { return p.Quantity <= p.MinQuantity }

// UnitProfit 单件利润 = 售价 - 进价
func (p Product) UnitProfit() decimal.Decimal { return p.SellingPrice.Sub(p.PurchasePrice) }

// StockLevel 结账后某商品的剩余库存快照，用于低库存事件。
type StockLevel struct {
	ProductID   uint   `json:"product_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	MinQuantity int    `json:"min_quantity"`
}
