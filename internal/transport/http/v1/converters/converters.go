package converters

import (
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// OrderItem is the JSON view of orderitem.OrderItem. Money is a string with
// two fractional digits.
type OrderItem struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Subtotal    string `json:"subtotal"`
}

// Order is the JSON view of order.Order.
type Order struct {
	ID               int64       `json:"id"`
	CustomerName     string      `json:"customerName"`
	CustomerEmail    string      `json:"customerEmail"`
	CustomerPhone    string      `json:"customerPhone,omitempty"`
	DeliveryAddress  string      `json:"deliveryAddress"`
	Status           string      `json:"status"`
	TotalPrice       string      `json:"totalPrice"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	LastTransitionAt time.Time   `json:"lastTransitionAt"`
	OrderItems       []OrderItem `json:"orderItems"`
}

// HistoryEntry is the JSON view of history.Entry.
type HistoryEntry struct {
	Seq            int64     `json:"seq"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Product is the JSON view of product.Product.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Price       string    `json:"price"`
	Stock       int64     `json:"stock"`
	ExpiryDate  string    `json:"expiryDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BulkResult is the outcome of one order of a bulk request.
type BulkResult struct {
	Index int    `json:"index"`
	Order *Order `json:"order,omitempty"`
	Error string `json:"error,omitempty"`
}

// Error is the body of every error response.
type Error struct {
	Error string `json:"error"`
}

// OrderItemFromModel converts an orderitem.OrderItem to its JSON view.
func OrderItemFromModel(item orderitem.OrderItem) OrderItem {
	return OrderItem{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.StringFixed(2),
		Subtotal:    item.Subtotal().StringFixed(2),
	}
}

// OrderFromModel converts an order.Order to its JSON view.
func OrderFromModel(o order.Order) Order {
	items := make([]OrderItem, len(o.OrderItems))
	for i, item := range o.OrderItems {
		items[i] = OrderItemFromModel(item)
	}

	return Order{
		ID:               o.ID,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		DeliveryAddress:  o.DeliveryAddress,
		Status:           o.Status.String(),
		TotalPrice:       o.TotalPrice.StringFixed(2),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		LastTransitionAt: o.LastTransitionAt,
		OrderItems:       items,
	}
}

// OrdersFromModel converts a slice of orders.
func OrdersFromModel(orders []order.Order) []Order {
	result := make([]Order, len(orders))
	for i, o := range orders {
		result[i] = OrderFromModel(o)
	}

	return result
}

// HistoryFromModel converts history entries.
func HistoryFromModel(entries []history.Entry) []HistoryEntry {
	result := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		result[i] = HistoryEntry{
			Seq:            e.Seq,
			PreviousStatus: e.PreviousStatus.String(),
			NewStatus:      e.NewStatus.String(),
			CreatedAt:      e.CreatedAt,
		}
	}

	return result
}

// ProductFromModel converts a product.Product to its JSON view.
func ProductFromModel(p product.Product) Product {
	view := Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.ExpiryDate != nil {
		view.ExpiryDate = p.ExpiryDate.Format(time.DateOnly)
	}

	return view
}

// ProductsFromModel converts a slice of products.
func ProductsFromModel(products []product.Product) []Product {
	result := make([]Product, len(products))
	for i, p := range products {
		result[i] = ProductFromModel(p)
	}

	return result
}
