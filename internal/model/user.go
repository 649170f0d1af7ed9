package model

import "time"

// User 店主账号；ID 即所有业务数据的 owner id。
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string `gorm:"size:191;uniqueIndex;not null" json:"email"`
	FullName     string `gorm:"size:128" json:"full_name"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
}

func (User) TableName() string { return "users" }

// All 返回需要 AutoMigrate 的全部模型。
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Sale{},
		&SaleItem{},
		&InvoiceSequence{},
		&StockAlert{},
	}
}
