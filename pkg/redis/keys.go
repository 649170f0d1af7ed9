package redis

import "fmt"

// SessionKey 会话 hash 的键名。
func SessionKey(token string) string {
	return fmt.Sprintf("store:session:%s", token)
}

// CheckoutLockKey 标记某个会话正在结账，防止重复提交。
func CheckoutLockKey(session string) string {
	return fmt.Sprintf("store:checkout:lock:%s", session)
}

// RateLimitKey 限流计数 key，subject 为 owner id 或客户端 IP。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("store:rate_limit:%s:%s", scope, subject)
}
