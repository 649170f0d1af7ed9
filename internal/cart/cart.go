package cart

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"store_manager/internal/model"

	"github.com/shopspring/decimal"
)

// Line 购物车中的一行：商品快照 + 数量，金额与利润按商品当前价格计算。
type Line struct {
	Product  model.Product   `json:"product"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
	Profit   decimal.Decimal `json:"profit"`
}

func newLine(p model.Product, qty int) Line {
	q := decimal.NewFromInt(int64(qty))
	return Line{
		Product:  p,
		Quantity: qty,
		Total:    p.SellingPrice.Mul(q),
		Profit:   p.UnitProfit().Mul(q),
	}
}

// Invoice 最近一次完成的结账，用于小票打印。
type Invoice struct {
	Sale     model.Sale         `json:"sale"`
	Lines    []Line             `json:"lines"`
	Levels   []model.StockLevel `json:"stock_levels"`
	IssuedAt time.Time          `json:"issued_at"`
}

// Ledger 结账依赖的数据服务。CommitSale 必须原子：失败时不留下任何写入。
type Ledger interface {
	CommitSale(ctx context.Context, ownerID uint, sale *model.Sale) ([]model.StockLevel, error)
	ListProducts(ctx context.Context, ownerID uint, inStockOnly bool) ([]model.Product, error)
}

// Cart 单个结账会话的购物车。行按加入顺序排列，同一商品只占一行。
type Cart struct {
	mu       sync.Mutex
	products map[uint]model.Product
	order    []uint
	lines    []Line
	last     *Invoice
	loaded   bool
	now      func() time.Time
}

func New() *Cart {
	return &Cart{products: make(map[uint]model.Product), now: time.Now}
}

// SetProducts 替换库存快照，后续加购按该快照校验上限。
func (c *Cart) SetProducts(list []model.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setProductsLocked(list)
}

func (c *Cart) setProductsLocked(list []model.Product) {
	c.products = make(map[uint]model.Product, len(list))
	c.order = make([]uint, 0, len(list))
	for _, p := range list {
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	c.loaded = true
}

// Loaded 是否已拉取过库存快照。
func (c *Cart) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Products 当前库存快照，保持拉取时的顺序。
func (c *Cart) Products() []model.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// AddLine 加购；已在车内的商品累加数量。合并后的数量不能超过库存。
func (c *Cart) AddLine(productID uint, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qty < 1 {
		return reject(productID, ErrInvalidQuantity)
	}
	p, ok := c.products[productID]
	if !ok {
		return reject(productID, ErrProductNotFound)
	}

	i := c.indexLocked(productID)
	want := qty
	if i >= 0 {
		want += c.lines[i].Quantity
	}
	if want > p.Quantity {
		return reject(productID, ErrInsufficientStock)
	}

	if i >= 0 {
		c.lines[i] = newLine(p, want)
		return nil
	}
	c.lines = append(c.lines, newLine(p, want))
	return nil
}

// SetLineQuantity 直接设置某行数量；qty <= 0 等同于移除。
func (c *Cart) SetLineQuantity(productID uint, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qty <= 0 {
		c.removeLocked(productID)
		return nil
	}
	i := c.indexLocked(productID)
	if i < 0 {
		return reject(productID, ErrLineNotFound)
	}
	p, ok := c.products[productID]
	if !ok {
		return reject(productID, ErrProductNotFound)
	}
	if qty > p.Quantity {
		return reject(productID, ErrInsufficientStock)
	}
	c.lines[i] = newLine(p, qty)
	return nil
}

// RemoveLine 幂等：行不存在时什么也不做。
func (c *Cart) RemoveLine(productID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(productID)
}

// Lines 返回当前行的副本。
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Totals 合计金额与利润。
func (c *Cart) Totals() (total, profit decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totals(c.lines)
}

// LastInvoice 最近一次成功结账；没有时返回 nil。
func (c *Cart) LastInvoice() *Invoice {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	inv := *c.last
	return &inv
}

// Checkout 把当前行提交为一张销售单。
// 成功：记录 last invoice、清空购物车、重新拉取库存快照（拉取失败只记日志）。
// 失败：购物车保持原样，可直接重试。
func (c *Cart) Checkout(ctx context.Context, ownerID uint, ledger Ledger) (*Invoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return nil, ErrEmptyCart
	}

	total, profit := totals(c.lines)
	sale := &model.Sale{
		TotalAmount: total,
		Profit:      profit,
		Items:       make([]model.SaleItem, 0, len(c.lines)),
	}
	for _, l := range c.lines {
		sale.Items = append(sale.Items, model.SaleItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			UnitPrice:   l.Product.SellingPrice,
			TotalPrice:  l.Total,
			Profit:      l.Profit,
		})
	}

	levels, err := ledger.CommitSale(ctx, ownerID, sale)
	if err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}

	snapshot := make([]Line, len(c.lines))
	copy(snapshot, c.lines)
	c.last = &Invoice{
		Sale:     *sale,
		Lines:    snapshot,
		Levels:   levels,
		IssuedAt: c.now(),
	}
	c.lines = nil

	products, err := ledger.ListProducts(ctx, ownerID, true)
	if err != nil {
		log.Printf("cart refresh products after sale %s: %v", sale.InvoiceNumber, err)
	} else {
		c.setProductsLocked(products)
	}

	inv := *c.last
	return &inv, nil
}

func (c *Cart) indexLocked(productID uint) int {
	for i, l := range c.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeLocked(productID uint) {
	if i := c.indexLocked(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

func totals(lines []Line) (decimal.Decimal, decimal.Decimal) {
	total, profit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
		profit = profit.Add(l.Profit)
	}
	return total, profit
}
