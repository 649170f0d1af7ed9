package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"store_manager/internal/cart"
	"store_manager/internal/config"
	"store_manager/internal/dashboard"
	"store_manager/internal/identity"
	"store_manager/internal/queue"
	"store_manager/internal/receipt"
	"store_manager/internal/report"
	"store_manager/internal/store"
	rediskey "store_manager/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code   int               `json:"code"`
	Msg    string            `json:"msg"`
	Data   json.RawMessage   `json:"data"`
	Fields map[string]string `json:"fields"`
}

const testSalesStream = "store:sales:test"

type testServer struct {
	t *testing.T
	r *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithRedis(t, nil)
}

// newTestServerWithRedis 传入 rdb 时启用 Redis 限流、结算锁与 outbox。
func newTestServerWithRedis(t *testing.T, rdb *rd.Client) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "router.db")+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	st, err := store.New(db)
	require.NoError(t, err)
	renderer, err := receipt.NewRenderer("en-US")
	require.NoError(t, err)

	var outbox *queue.Outbox
	if rdb != nil {
		outbox = queue.NewOutbox(rdb, testSalesStream)
	}

	r := gin.New()
	Setup(r, Deps{
		Store:     st,
		Identity:  identity.NewService(db, identity.NewMemorySessions(), time.Hour),
		Carts:     cart.NewRegistry(),
		Dashboard: dashboard.NewAggregator(st, 30*24*time.Hour),
		Reports:   report.NewBuilder(st),
		Receipts:  renderer,
		Redis:     rdb,
		Outbox:    outbox,
		Config: config.AppConfig{
			AuthRateLimit:      100,
			AuthRateWindow:     time.Minute,
			CheckoutRateLimit:  100,
			CheckoutRateWindow: time.Second,
			CheckoutLockTTL:    time.Second,
			ReceiptStoreName:   "Corner Shop",
		},
	})
	return &testServer{t: t, r: r}
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (s *testServer) signUp(email string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": email, "password": "secret1", "full_name": "Shop Owner",
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(s.t, sess.Token)
	return sess.Token
}

func (s *testServer) signIn(email string) string {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/auth/signin", "", gin.H{"email": email, "password": "secret1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &sess))
	return sess.Token
}

func (s *testServer) createProduct(token, name, qty string) uint {
	s.t.Helper()
	w, env := s.do(http.MethodPost, "/api/products", token, gin.H{
		"name":           name,
		"category":       "groceries",
		"quantity":       qty,
		"purchase_price": "1.50",
		"selling_price":  "2.00",
	})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var p struct {
		ID uint `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &p))
	require.NotZero(s.t, p.ID)
	return p.ID
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.signUp("owner@shop.test")

	w, env := s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "owner@shop.test", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, http.StatusConflict, env.Code)

	w, _ = s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "new@shop.test", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"email": "not-an-email", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/auth/signin", "", gin.H{"email": "owner@shop.test", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = s.do(http.MethodGet, "/api/auth/session", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "owner@shop.test")

	w, _ = s.do(http.MethodPost, "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/auth/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("owner@shop.test")

	w, env := s.do(http.MethodPost, "/api/products", token, gin.H{
		"name": " ", "category": "toys", "quantity": "-1", "purchase_price": "x", "selling_price": "1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Fields, "name")
	assert.Contains(t, env.Fields, "category")
	assert.Contains(t, env.Fields, "quantity")
	assert.Contains(t, env.Fields, "purchase_price")

	rice := s.createProduct(token, "Rice", "2")
	s.createProduct(token, "Tea", "40")

	w, env = s.do(http.MethodGet, "/api/products?q=ric", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []struct {
		Name     string `json:"name"`
		LowStock bool   `json:"low_stock"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Rice", entries[0].Name)
	assert.True(t, entries[0].LowStock)

	w, env = s.do(http.MethodGet, "/api/products/low-stock", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Rice")
	assert.NotContains(t, string(env.Data), "Tea")

	w, env = s.do(http.MethodPost, "/api/products/preview", token, gin.H{"purchase_price": "1.25", "selling_price": "2"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "0.75")

	w, env = s.do(http.MethodGet, "/api/products/categories", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "groceries")

	// 其他店主看不到也删不掉
	other := s.signUp("other@shop.test")
	w, env = s.do(http.MethodGet, "/api/products", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var none []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &none))
	assert.Empty(t, none)

	path := "/api/products/" + uintStr(rice)
	w, _ = s.do(http.MethodDelete, path+"?confirm=true", other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(http.MethodDelete, path+"?confirm=true", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodDelete, path+"?confirm=true", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/products/abc?confirm=true", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("owner@shop.test")
	rice := s.createProduct(token, "Rice", "6")

	w, _ := s.do(http.MethodPost, "/api/cart/checkout", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "empty cart")

	w, _ = s.do(http.MethodPost, "/api/cart/lines", token, gin.H{"product_id": rice, "quantity": 7})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/cart/lines", token, gin.H{"product_id": rice, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/cart/lines", token, gin.H{"product_id": rice, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := s.do(http.MethodPut, "/api/cart/lines/"+uintStr(rice), token, gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view struct {
		Lines []struct {
			Quantity int `json:"quantity"`
		} `json:"lines"`
		Total decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)
	assert.True(t, decimal.NewFromInt(6).Equal(view.Total), view.Total.String())

	w, _ = s.do(http.MethodGet, "/api/cart/last-invoice", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodPost, "/api/cart/checkout", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var inv struct {
		Sale struct {
			InvoiceNumber string `json:"invoice_number"`
		} `json:"sale"`
		Levels []struct {
			Quantity int `json:"quantity"`
		} `json:"stock_levels"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, "INV-000001", inv.Sale.InvoiceNumber)
	require.Len(t, inv.Levels, 1)
	assert.Equal(t, 3, inv.Levels[0].Quantity)

	w, env = s.do(http.MethodGet, "/api/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"lines":[]`)

	w, _ = s.do(http.MethodGet, "/api/cart/last-invoice/print", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "INV-000001")
	assert.Contains(t, w.Body.String(), "Corner Shop")

	w, _ = s.do(http.MethodGet, "/api/cart/last-invoice/pdf", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, env = s.do(http.MethodGet, "/api/sales", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sales []struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sales))
	require.Len(t, sales, 1)

	w, _ = s.do(http.MethodGet, "/api/sales/"+uintStr(sales[0].ID)+"/receipt", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rice")

	w, _ = s.do(http.MethodGet, "/api/sales/999/receipt", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodGet, "/api/cart/products", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"quantity":3`)
}

func TestCheckoutWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := newTestServerWithRedis(t, rdb)
	token := s.signUp("owner@shop.test")
	rice := s.createProduct(token, "Rice", "6")

	w, _ := s.do(http.MethodPost, "/api/cart/lines", token, gin.H{"product_id": rice, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx := context.Background()
	held, err := rediskey.AcquireCheckoutLock(ctx, rdb, token, "other-request", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	w, env := s.do(http.MethodPost, "/api/cart/checkout", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, http.StatusConflict, env.Code)

	n, err := rdb.XLen(ctx, testSalesStream).Result()
	require.NoError(t, err)
	assert.Zero(t, n, "rejected checkout must not emit a sale event")

	require.NoError(t, rediskey.ReleaseCheckoutLock(ctx, rdb, token, "other-request"))

	w, _ = s.do(http.MethodPost, "/api/cart/checkout", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries, err := rdb.XRange(ctx, testSalesStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Values["payload"])

	exists, err := rdb.Exists(ctx, rediskey.CheckoutLockKey(token)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists, "lock is released after checkout")
}

func TestCheckoutLastUnitRace(t *testing.T) {
	s := newTestServer(t)
	first := s.signUp("owner@shop.test")
	second := s.signIn("owner@shop.test")
	salt := s.createProduct(first, "Salt", "1")

	for _, token := range []string{first, second} {
		w, _ := s.do(http.MethodPost, "/api/cart/lines", token, gin.H{"product_id": salt, "quantity": 1})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w, _ := s.do(http.MethodPost, "/api/cart/checkout", first, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/api/cart/checkout", second, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// 失败的会话购物车保持不变
	w, env := s.do(http.MethodGet, "/api/cart", second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"quantity":1`)

	w, _ = s.do(http.MethodDelete, "/api/cart/lines/"+uintStr(salt), second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, env = s.do(http.MethodGet, "/api/cart", second, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"lines":[]`)
}

func TestInsightEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("owner@shop.test")
	tea := s.createProduct(token, "Tea", "10")

	w, _ := s.do(http.MethodPost, "/api/cart/lines", token, gin.H{"product_id": tea, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(http.MethodPost, "/api/cart/checkout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum struct {
		ProductCount int64  `json:"product_count"`
		SalesCount   int64  `json:"sales_count"`
		SalesTotal   decimal.Decimal `json:"sales_total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, int64(1), sum.ProductCount)
	assert.Equal(t, int64(1), sum.SalesCount)
	assert.True(t, decimal.NewFromInt(4).Equal(sum.SalesTotal), sum.SalesTotal.String())

	w, env = s.do(http.MethodGet, "/api/reports?period=weekly", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep struct {
		Period   string            `json:"period"`
		Buckets  []json.RawMessage `json:"buckets"`
		Products []struct {
			ProductName string `json:"product_name"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "weekly", rep.Period)
	assert.Len(t, rep.Buckets, 1)
	require.Len(t, rep.Products, 1)
	assert.Equal(t, "Tea", rep.Products[0].ProductName)

	w, _ = s.do(http.MethodGet, "/api/reports?period=hourly", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(http.MethodGet, "/api/alerts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var alerts []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	assert.Empty(t, alerts)
}

func uintStr(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
