package cart

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrProductNotFound   = errors.New("product not available")
	ErrInsufficientStock = errors.New("requested quantity exceeds available stock")
	ErrLineNotFound      = errors.New("product is not in the cart")
	ErrEmptyCart         = errors.New("cart is empty")

	// ErrCheckoutBusy 同一会话已有结账在进行（跨实例由 Redis 锁判定）。
	ErrCheckoutBusy = errors.New("checkout already in progress")
)

// ValidationError 本地校验失败：请求被拒绝，购物车状态不变。
type ValidationError struct {
	ProductID uint
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("product %d: %v", e.ProductID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func reject(productID uint, err error) error {
	return &ValidationError{ProductID: productID, Err: err}
}
