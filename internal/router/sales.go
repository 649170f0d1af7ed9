package router

import (
	"time"

	"store_manager/internal/dashboard"
	"store_manager/internal/receipt"
	"store_manager/internal/report"
	"store_manager/internal/store"

	"github.com/gin-gonic/gin"
)

func listSales(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		list, err := st.RecentSales(c.Request.Context(), owner.ID, queryLimit(c, 50, 200))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, list)
	}
}

// saleReceipt 任意历史销售单的 HTML 小票。
func saleReceipt(st *store.Store, r *receipt.Renderer, storeName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		sale, err := st.GetSale(c.Request.Context(), owner.ID, id)
		if err != nil {
			writeError(c, err)
			return
		}
		writeReceipt(c, r, receipt.FromSale(storeName, *sale, sale.CreatedAt))
	}
}

// getDashboard 始终返回 200；失败的部分记录在 errors 字段。
func getDashboard(agg *dashboard.Aggregator) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		ok(c, agg.Load(c.Request.Context(), owner.ID, time.Now()))
	}
}

func getReport(b *report.Builder) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		p, err := report.ParsePeriod(c.Query("period"))
		if err != nil {
			writeError(c, err)
			return
		}
		rep, err := b.Build(c.Request.Context(), owner.ID, p, time.Now())
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, rep)
	}
}

func listAlerts(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		list, err := st.ListStockAlerts(c.Request.Context(), owner.ID, queryLimit(c, 50, 200))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, list)
	}
}
