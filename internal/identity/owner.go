package identity

import "context"

// Owner 当前登录身份。ID 用于限定所有数据行的归属。
type Owner struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type ownerContextKey struct{}

// WithOwner 把身份显式挂到 ctx 上，由鉴权中间件调用。
func WithOwner(ctx context.Context, owner Owner) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFrom 取出 ctx 中的身份。
func OwnerFrom(ctx context.Context) (Owner, bool) {
	owner, ok := ctx.Value(ownerContextKey{}).(Owner)
	return owner, ok && owner.ID != 0
}
