package ecommerce

import (
	"fmt"
	"strings"
	"sync"
)

// Product is a catalog entry.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    float64
	Stock    int
	Summary  string
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
}

// Order is a customer order.
type Order struct {
	ID       string
	Status   string
	Items    []OrderItem
	Total    float64
	Created  string
	Delivery string
}

// Store holds the product catalog and order book in memory.
type Store struct {
	mtx      sync.RWMutex
	products []Product
	orders   map[string]Order
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{orders: make(map[string]Order)}
}

// NewDemoStore returns a store seeded with a small catalog and a few orders,
// enough to exercise every query path without a backing database.
func NewDemoStore() *Store {
	s := NewStore()
	s.AddProducts(
		Product{ID: "P001", Name: "智能手机 Pro", Category: "手机", Price: 4999, Stock: 50, Summary: "6.7寸屏幕，256GB存储"},
		Product{ID: "P002", Name: "轻薄笔记本电脑", Category: "电脑", Price: 6999, Stock: 30, Summary: "14寸，16GB内存，512GB固态"},
		Product{ID: "P003", Name: "无线降噪耳机", Category: "耳机", Price: 1299, Stock: 100, Summary: "主动降噪，30小时续航"},
		Product{ID: "P004", Name: "入门平板电脑", Category: "平板", Price: 2599, Stock: 45, Summary: "11寸屏幕，128GB存储"},
		Product{ID: "P005", Name: "基础款手机", Category: "手机", Price: 1599, Stock: 80, Summary: "6.1寸屏幕，128GB存储"},
	)
	s.PutOrder(Order{
		ID: "OD20260812001", Status: "已发货", Total: 4999, Created: "2026-08-12", Delivery: "2026-08-25",
		Items: []OrderItem{{ProductID: "P001", Name: "智能手机 Pro", Quantity: 1, Price: 4999}},
	})
	s.PutOrder(Order{
		ID: "OD20260815002", Status: "待付款", Total: 1299, Created: "2026-08-15",
		Items: []OrderItem{{ProductID: "P003", Name: "无线降噪耳机", Quantity: 1, Price: 1299}},
	})
	return s
}

// AddProducts appends products to the catalog.
func (s *Store) AddProducts(products ...Product) {
	s.mtx.Lock()
	s.products = append(s.products, products...)
	s.mtx.Unlock()
}

// PutOrder inserts or replaces an order.
func (s *Store) PutOrder(order Order) {
	s.mtx.Lock()
	s.orders[order.ID] = order
	s.mtx.Unlock()
}

// Order looks up an order by ID.
func (s *Store) Order(id string) (Order, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	order, ok := s.orders[id]
	return order, ok
}

// Search returns products matching the keyword and price window. A zero
// maxPrice means no upper bound.
func (s *Store) Search(keyword string, minPrice, maxPrice float64) []Product {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var out []Product
	for _, p := range s.products {
		if keyword != "" &&
			!strings.Contains(p.Name, keyword) &&
			!strings.Contains(p.Category, keyword) &&
			!strings.Contains(p.Summary, keyword) {
			continue
		}
		if p.Price < minPrice {
			continue
		}
		if maxPrice > 0 && p.Price > maxPrice {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FormatProducts renders a product list for chat display.
func FormatProducts(products []Product) string {
	if len(products) == 0 {
		return "抱歉，没有找到符合条件的商品。"
	}
	var b strings.Builder
	b.WriteString("为您找到以下商品：")
	for _, p := range products {
		fmt.Fprintf(&b, "\n🛒 %s（%s）：¥%.0f，库存 %d 件\n   %s", p.Name, p.Category, p.Price, p.Stock, p.Summary)
	}
	return b.String()
}

// FormatOrder renders an order summary for chat display.
func FormatOrder(order Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 订单 %s\n状态：%s", order.ID, order.Status)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "\n- %s × %d：¥%.0f", item.Name, item.Quantity, item.Price)
	}
	fmt.Fprintf(&b, "\n合计：¥%.0f", order.Total)
	if order.Delivery != "" {
		fmt.Fprintf(&b, "\n预计送达：%s", order.Delivery)
	}
	return b.String()
}
