package domain

import (
	"sync"

	catalog "github.com/dmehra2102/Cartified/internal/catalog/domain"
	"github.com/shopspring/decimal"
)

type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered set of line items, one per product id. Quantities are
// always >= 1.
type Cart struct {
	mu    sync.Mutex
	items []Item
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) indexOf(id int) int {
	for i := range c.items {
		if c.items[i].Product.ID == id {
			return i
		}
	}
	return -1
}

// Add appends the product or increments the existing line.
func (c *Cart) Add(p catalog.Product) {
	c.AddQuantity(p, 1)
}

// AddQuantity adds n units of p, merging into an existing line. n < 1 is ignored.
func (c *Cart) AddQuantity(p catalog.Product, n int) bool {
	if n < 1 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(p.ID); i >= 0 {
		c.items[i].Quantity += n
		return true
	}
	c.items = append(c.items, Item{Product: p, Quantity: n})
	return true
}

func (c *Cart) Remove(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// SetQuantity ignores n < 1 and unknown ids. It reports whether the line changed.
func (c *Cart) SetQuantity(id, n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 1 {
		return false
	}
	i := c.indexOf(id)
	if i < 0 || c.items[i].Quantity == n {
		return false
	}
	c.items[i].Quantity = n
	return true
}

func (c *Cart) Increment(id int) bool {
	return c.step(id, 1)
}

// Decrement is a no-op for a line already at quantity 1.
func (c *Cart) Decrement(id int) bool {
	return c.step(id, -1)
}

func (c *Cart) step(id, delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	n := c.items[i].Quantity + delta
	if n < 1 {
		return false
	}
	c.items[i].Quantity = n
	return true
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Total() decimal.Decimal {
	return Total(c.Items())
}

func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
