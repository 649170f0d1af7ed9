package queue

import (
	"fmt"
	"time"

	"store_manager/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemLevel 一个售出商品及售后剩余库存。
type ItemLevel struct {
	ProductID   uint   `json:"product_id"`
	Name        string `json:"name"`
	Sold        int    `json:"sold"`
	Remaining   int    `json:"remaining"`
	MinQuantity int    `json:"min_quantity"`
}

// SaleMessage 是写入 outbox / Kafka 的结账完成事件。
type SaleMessage struct {
	EventID       string          `json:"event_id"`
	SaleID        uint            `json:"sale_id"`
	UserID        uint            `json:"user_id"`
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []ItemLevel     `json:"items"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewSaleMessage 由已提交的销售单与售后库存构造事件。
func NewSaleMessage(sale model.Sale, levels []model.StockLevel, at time.Time) SaleMessage {
	byID := make(map[uint]model.StockLevel, len(levels))
	for _, l := range levels {
		byID[l.ProductID] = l
	}
	msg := SaleMessage{
		EventID:       uuid.New().String(),
		SaleID:        sale.ID,
		UserID:        sale.UserID,
		InvoiceNumber: sale.InvoiceNumber,
		TotalAmount:   sale.TotalAmount,
		Items:         make([]ItemLevel, 0, len(sale.Items)),
		OccurredAt:    at.UTC(),
	}
	for _, it := range sale.Items {
		l := byID[it.ProductID]
		msg.Items = append(msg.Items, ItemLevel{
			ProductID:   it.ProductID,
			Name:        it.ProductName,
			Sold:        it.Quantity,
			Remaining:   l.Quantity,
			MinQuantity: l.MinQuantity,
		})
	}
	return msg
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m SaleMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.SaleID == 0 {
		return fmt.Errorf("sale_id is required")
	}
	if m.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	if len(m.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	for _, it := range m.Items {
		if it.ProductID == 0 {
			return fmt.Errorf("item product_id is required")
		}
		if it.Sold <= 0 {
			return fmt.Errorf("item sold must be > 0")
		}
	}
	return nil
}

// LowStockAlerts 售后库存 <= 阈值的商品生成告警。
func (m SaleMessage) LowStockAlerts() []model.StockAlert {
	var out []model.StockAlert
	for _, it := range m.Items {
		if it.Remaining > it.MinQuantity {
			continue
		}
		out = append(out, model.StockAlert{
			UserID:      m.UserID,
			SaleID:      m.SaleID,
			ProductID:   it.ProductID,
			ProductName: it.Name,
			Quantity:    it.Remaining,
			MinQuantity: it.MinQuantity,
		})
	}
	return out
}
