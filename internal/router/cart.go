package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"store_manager/internal/cart"
	"store_manager/internal/config"
	"store_manager/internal/middleware"
	"store_manager/internal/queue"
	"store_manager/internal/receipt"
	"store_manager/internal/store"
	rediskey "store_manager/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

var errNoInvoice = errors.New("no completed sale in this session")

func cartView(crt *cart.Cart) gin.H {
	total, profit := crt.Totals()
	return gin.H{
		"lines":  crt.Lines(),
		"total":  total,
		"profit": profit,
	}
}

// sessionCart 取当前会话的购物车；首次使用时拉取库存快照。
func sessionCart(c *gin.Context, st *store.Store, carts *cart.Registry, ownerID uint) (*cart.Cart, error) {
	crt := carts.Get(middleware.SessionToken(c))
	if crt.Loaded() {
		return crt, nil
	}
	if err := loadSnapshot(c.Request.Context(), st, crt, ownerID); err != nil {
		return nil, err
	}
	return crt, nil
}

func loadSnapshot(ctx context.Context, st *store.Store, crt *cart.Cart, ownerID uint) error {
	list, err := st.ListProducts(ctx, ownerID, true)
	if err != nil {
		return fmt.Errorf("load stock snapshot: %w", err)
	}
	crt.SetProducts(list)
	return nil
}

func getCart(st *store.Store, carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		crt, err := sessionCart(c, st, carts, owner.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, cartView(crt))
	}
}

// cartProducts 可加购的商品（库存 > 0），即购物车校验所用的快照。
func cartProducts(st *store.Store, carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		crt, err := sessionCart(c, st, carts, owner.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, crt.Products())
	}
}

func refreshCart(st *store.Store, carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		crt := carts.Get(middleware.SessionToken(c))
		if err := loadSnapshot(c.Request.Context(), st, crt, owner.ID); err != nil {
			writeError(c, err)
			return
		}
		ok(c, crt.Products())
	}
}

func addLine(st *store.Store, carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		var req struct {
			ProductID uint `json:"product_id" binding:"required,min=1"`
			Quantity  int  `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		crt, err := sessionCart(c, st, carts, owner.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := crt.AddLine(req.ProductID, req.Quantity); err != nil {
			writeError(c, err)
			return
		}
		ok(c, cartView(crt))
	}
}

// setLine quantity <= 0 等同于移除该行。
func setLine(st *store.Store, carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		id, valid := paramID(c, "product_id")
		if !valid {
			return
		}
		var req struct {
			Quantity *int `json:"quantity" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		crt, err := sessionCart(c, st, carts, owner.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := crt.SetLineQuantity(id, *req.Quantity); err != nil {
			writeError(c, err)
			return
		}
		ok(c, cartView(crt))
	}
}

func removeLine(carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "product_id")
		if !valid {
			return
		}
		crt := carts.Get(middleware.SessionToken(c))
		crt.RemoveLine(id)
		ok(c, cartView(crt))
	}
}

// checkout 结账入口。
// 关键流程：
// 1. Redis SET NX 会话锁，防止跨实例重复提交
// 2. 单事务提交销售单 + 条件扣减库存（失败整体回滚，购物车保留）
// 3. 事件写入 outbox，失败只记日志
func checkout(st *store.Store, carts *cart.Registry, rdb *rd.Client, outbox *queue.Outbox, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		ctx := c.Request.Context()
		token := middleware.SessionToken(c)

		if rdb != nil {
			lockID := uuid.New().String()
			acquired, err := rediskey.AcquireCheckoutLock(ctx, rdb, token, lockID, cfg.CheckoutLockTTL)
			switch {
			case err != nil:
				// Redis 不可用时退化为进程内购物车锁
				log.Printf("acquire checkout lock: %v", err)
			case !acquired:
				writeError(c, cart.ErrCheckoutBusy)
				return
			default:
				defer func() {
					if err := rediskey.ReleaseCheckoutLock(context.WithoutCancel(ctx), rdb, token, lockID); err != nil {
						log.Printf("release checkout lock: %v", err)
					}
				}()
			}
		}

		crt, err := sessionCart(c, st, carts, owner.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		inv, err := crt.Checkout(ctx, owner.ID, st)
		if err != nil {
			writeError(c, err)
			return
		}

		if outbox != nil {
			msg := queue.NewSaleMessage(inv.Sale, inv.Levels, inv.IssuedAt)
			if _, err := outbox.Append(ctx, msg); err != nil {
				log.Printf("append sale event %s: %v", inv.Sale.InvoiceNumber, err)
			}
		}

		ok(c, inv)
	}
}

func lastInvoice(carts *cart.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv := carts.Get(middleware.SessionToken(c)).LastInvoice()
		if inv == nil {
			fail(c, http.StatusNotFound, errNoInvoice.Error())
			return
		}
		ok(c, inv)
	}
}

func printLastInvoice(carts *cart.Registry, r *receipt.Renderer, storeName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv := carts.Get(middleware.SessionToken(c)).LastInvoice()
		if inv == nil {
			fail(c, http.StatusNotFound, errNoInvoice.Error())
			return
		}
		writeReceipt(c, r, receipt.FromSale(storeName, inv.Sale, inv.IssuedAt))
	}
}

func pdfLastInvoice(carts *cart.Registry, r *receipt.Renderer, pdf *receipt.PDFPrinter, storeName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pdf == nil {
			fail(c, http.StatusServiceUnavailable, "pdf export is not configured")
			return
		}
		inv := carts.Get(middleware.SessionToken(c)).LastInvoice()
		if inv == nil {
			fail(c, http.StatusNotFound, errNoInvoice.Error())
			return
		}
		var buf bytes.Buffer
		if err := r.HTML(&buf, receipt.FromSale(storeName, inv.Sale, inv.IssuedAt)); err != nil {
			writeError(c, err)
			return
		}
		b, err := pdf.PDF(c.Request.Context(), buf.String())
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", inv.Sale.InvoiceNumber+".pdf"))
		c.Data(http.StatusOK, "application/pdf", b)
	}
}

func writeReceipt(c *gin.Context, r *receipt.Renderer, doc receipt.Document) {
	var buf bytes.Buffer
	if err := r.HTML(&buf, doc); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
