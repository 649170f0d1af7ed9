package model

import "time"

// StockAlert 由销售事件消费者写入：售出后库存降到阈值及以下。
// (sale_id, product_id) 唯一，重复消息直接当作成功。
type StockAlert struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID      uint   `gorm:"not null;index" json:"user_id"`
	SaleID      uint   `gorm:"not null;uniqueIndex:idx_alert_sale_product" json:"sale_id"`
	ProductID   uint   `gorm:"not null;uniqueIndex:idx_alert_sale_product" json:"product_id"`
	ProductName string `gorm:"size:128;not null" json:"product_name"`
	Quantity    int    `gorm:"not null" json:"quantity"`
	MinQuantity int    `gorm:"not null" json:"min_quantity"`
}

func (StockAlert) TableName() string { return "stock_alerts" }
