package store

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptySale         = errors.New("sale has no items")
)

// Store 是数据服务边界：所有读写都显式带 owner id。
// 写路径走 gorm，报表类只读查询走 sqlx + squirrel。
type Store struct {
	db *gorm.DB
	rx *sqlx.DB
}

func New(db *gorm.DB) (*Store, error) {
	rx, err := newReader(db)
	if err != nil {
		return nil, fmt.Errorf("store reader: %w", err)
	}
	return &Store{db: db, rx: rx}, nil
}

// DB 暴露底层 gorm 句柄，供身份服务与事件消费者共用连接池。
func (s *Store) DB() *gorm.DB { return s.db }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
