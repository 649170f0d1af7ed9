package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale 一次结账对应一行，发票号在同一店主下唯一。
type Sale struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID        uint            `gorm:"not null;uniqueIndex:idx_sales_user_invoice" json:"user_id"`
	InvoiceNumber string          `gorm:"size:32;not null;uniqueIndex:idx_sales_user_invoice" json:"invoice_number"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Profit        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"profit"`

	Items []SaleItem `gorm:"foreignKey:SaleID" json:"items,omitempty"`
}

func (Sale) TableName() string { return "sales" }

// SaleItem 销售明细，写入后不再修改。
// ProductName 冗余保存售出时的商品名，商品被删除后历史仍可读。
type SaleItem struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	SaleID      uint            `gorm:"not null;index" json:"sale_id"`
	ProductID   uint            `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"size:128;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	Profit      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"profit"`
}

func (SaleItem) TableName() string { return "sale_items" }

// InvoiceSequence 每个店主一条计数器，结账事务内递增。
type InvoiceSequence struct {
	UserID uint  `gorm:"primarykey;autoIncrement:false"`
	LastNo int64 `gorm:"not null;default:0"`
}

func (InvoiceSequence) TableName() string { return "invoice_sequences" }
