package router

import (
	"net/http"
	"strconv"

	"store_manager/internal/catalog"
	"store_manager/internal/store"

	"github.com/gin-gonic/gin"
)

// listProducts 店主全部商品，?q= 按名称或分类过滤，附带低库存标记。
func listProducts(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		list, err := st.ListProducts(c.Request.Context(), owner.ID, false)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, catalog.Entries(catalog.Filter(list, c.Query("q"))))
	}
}

func lowStockProducts(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		list, err := st.LowStockProducts(c.Request.Context(), owner.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, list)
	}
}

func listCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok(c, catalog.Categories)
	}
}

// previewProduct 表单填写过程中的单件利润预览，不做校验。
func previewProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		var form catalog.ProductForm
		if err := c.ShouldBindJSON(&form); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		ok(c, gin.H{"unit_profit": form.Preview()})
	}
}

func createProduct(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		var form catalog.ProductForm
		if err := c.ShouldBindJSON(&form); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		p, err := form.Parse()
		if err != nil {
			writeError(c, err)
			return
		}
		if err := st.CreateProduct(c.Request.Context(), owner.ID, p); err != nil {
			writeError(c, err)
			return
		}
		ok(c, p)
	}
}

// deleteProduct 必须带 ?confirm=true，否则返回 409 且不做任何修改。
func deleteProduct(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, found := currentOwner(c)
		if !found {
			return
		}
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		if confirmed, _ := strconv.ParseBool(c.Query("confirm")); !confirmed {
			fail(c, http.StatusConflict, "deletion requires confirm=true")
			return
		}
		if err := st.DeleteProduct(c.Request.Context(), owner.ID, id); err != nil {
			writeError(c, err)
			return
		}
		ok(c, gin.H{"deleted": id})
	}
}
