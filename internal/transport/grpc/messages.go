package grpctransport

import "github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"

type OrderItemInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
}

type OrderInput struct {
	CustomerName    string           `json:"customerName"`
	CustomerEmail   string           `json:"customerEmail"`
	CustomerPhone   string           `json:"customerPhone,omitempty"`
	DeliveryAddress string           `json:"deliveryAddress"`
	OrderItems      []OrderItemInput `json:"orderItems"`
}

type CreateOrdersRequest struct {
	Orders []OrderInput `json:"orders"`
}

// CreateOrderResult carries either the created order or the gRPC code and
// message of its failure.
type CreateOrderResult struct {
	Order *converters.Order `json:"order,omitempty"`
	Code  string            `json:"code,omitempty"`
	Error string            `json:"error,omitempty"`
}

type CreateOrdersResponse struct {
	Results []CreateOrderResult `json:"results"`
}

type GetOrderRequest struct {
	ID int64 `json:"id"`
}

type GetOrderResponse struct {
	Order converters.Order `json:"order"`
}

type ListOrdersRequest struct {
	Ids      []int64  `json:"ids,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	Search   string   `json:"search,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

type ListOrdersResponse struct {
	Orders []converters.Order `json:"orders"`
}

type ListHistoryRequest struct {
	OrderID int64 `json:"orderId"`
}

type ListHistoryResponse struct {
	Entries []converters.HistoryEntry `json:"entries"`
}
