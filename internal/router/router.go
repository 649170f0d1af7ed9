package router

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"store_manager/internal/cart"
	"store_manager/internal/catalog"
	"store_manager/internal/config"
	"store_manager/internal/dashboard"
	"store_manager/internal/identity"
	"store_manager/internal/middleware"
	"store_manager/internal/queue"
	"store_manager/internal/receipt"
	"store_manager/internal/report"
	"store_manager/internal/store"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// Deps HTTP 层依赖。Redis / Outbox / PDF 可为 nil：对应功能降级或返回 503。
type Deps struct {
	Store     *store.Store
	Identity  *identity.Service
	Carts     *cart.Registry
	Dashboard *dashboard.Aggregator
	Reports   *report.Builder
	Receipts  *receipt.Renderer
	PDF       *receipt.PDFPrinter
	Redis     *rd.Client
	Outbox    *queue.Outbox
	Config    config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	cfg := d.Config
	authLimit := func(scope string) gin.HandlerFunc {
		return middleware.RedisRateLimit(d.Redis, scope, cfg.AuthRateLimit, cfg.AuthRateWindow)
	}

	// Auth
	r.POST("/api/auth/signup", authLimit("signup"), signUp(d.Identity))
	r.POST("/api/auth/signin", authLimit("signin"), signIn(d.Identity))

	api := r.Group("/api", middleware.RequireSession(d.Identity))
	api.POST("/auth/signout", signOut(d.Identity, d.Carts))
	api.GET("/auth/session", currentSession())

	// Products
	api.GET("/products", listProducts(d.Store))
	api.GET("/products/low-stock", lowStockProducts(d.Store))
	api.GET("/products/categories", listCategories())
	api.POST("/products/preview", previewProduct())
	api.POST("/products", createProduct(d.Store))
	api.DELETE("/products/:id", deleteProduct(d.Store))

	// Cart
	api.GET("/cart", getCart(d.Store, d.Carts))
	api.GET("/cart/products", cartProducts(d.Store, d.Carts))
	api.POST("/cart/refresh", refreshCart(d.Store, d.Carts))
	api.POST("/cart/lines", addLine(d.Store, d.Carts))
	api.PUT("/cart/lines/:product_id", setLine(d.Store, d.Carts))
	api.DELETE("/cart/lines/:product_id", removeLine(d.Carts))
	api.POST("/cart/checkout",
		middleware.RedisRateLimit(d.Redis, "checkout", cfg.CheckoutRateLimit, cfg.CheckoutRateWindow),
		checkout(d.Store, d.Carts, d.Redis, d.Outbox, cfg))
	api.GET("/cart/last-invoice", lastInvoice(d.Carts))
	api.GET("/cart/last-invoice/print", printLastInvoice(d.Carts, d.Receipts, cfg.ReceiptStoreName))
	api.GET("/cart/last-invoice/pdf", pdfLastInvoice(d.Carts, d.Receipts, d.PDF, cfg.ReceiptStoreName))

	// Sales & insights
	api.GET("/sales", listSales(d.Store))
	api.GET("/sales/:id/receipt", saleReceipt(d.Store, d.Receipts, cfg.ReceiptStoreName))
	api.GET("/dashboard", getDashboard(d.Dashboard))
	api.GET("/reports", getReport(d.Reports))
	api.GET("/alerts", listAlerts(d.Store))
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": status, "msg": msg})
}

// writeError 把领域错误映射为 HTTP 状态码；未知错误只记日志，不把细节返回给调用方。
func writeError(c *gin.Context, err error) {
	var (
		validation *cart.ValidationError
		form       *catalog.FormError
	)
	switch {
	case errors.As(err, &form):
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": form.Error(), "fields": form.Fields})
	case errors.As(err, &validation),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, identity.ErrInvalidSignUp),
		errors.Is(err, report.ErrUnknownPeriod):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrNoSession):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, cart.ErrCheckoutBusy),
		errors.Is(err, identity.ErrEmailTaken):
		fail(c, http.StatusConflict, err.Error())
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

// currentOwner RequireSession 之后必然存在；缺失说明路由注册有误。
func currentOwner(c *gin.Context) (identity.Owner, bool) {
	owner, found := identity.OwnerFrom(c.Request.Context())
	if !found {
		fail(c, http.StatusUnauthorized, identity.ErrNoSession.Error())
	}
	return owner, found
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
