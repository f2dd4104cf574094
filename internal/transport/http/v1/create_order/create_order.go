package createorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/respond"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	BatchInsert(ctx context.Context, orders []order.Order) []ordersvc.BatchResult
}

// itemInCreateOrderRequest represents an item in a create order request.
type itemInCreateOrderRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int64 `json:"quantity"  validate:"gte=1"`
}

// OrderRequest represents one order in a create order request.
type OrderRequest struct {
	CustomerName    string                     `json:"customerName"    validate:"required,max=200"`
	CustomerEmail   string                     `json:"customerEmail"   validate:"required,email"`
	CustomerPhone   string                     `json:"customerPhone"   validate:"max=32"`
	DeliveryAddress string                     `json:"deliveryAddress" validate:"required"`
	OrderItems      []itemInCreateOrderRequest `json:"orderItems"      validate:"required,min=1,dive"`
}

// toModel converts OrderRequest to order.Order.
func (r *OrderRequest) toModel() order.Order {
	items := make([]orderitem.OrderItem, len(r.OrderItems))
	for i, item := range r.OrderItems {
		items[i] = orderitem.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	return order.Order{
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		DeliveryAddress: r.DeliveryAddress,
		OrderItems:      items,
	}
}

// BulkRequest represents a bulk create request.
type BulkRequest struct {
	Orders []OrderRequest `json:"orders" validate:"required,min=1"`
}

// CreateOrder handles POST /api/orders.
//
//	@Summary	Create an order
//	@Tags		orders
//	@Accept		json
//	@Produce	json
//	@Param		order	body		OrderRequest	true	"Order"
//	@Success	201		{object}	converters.Order
//	@Failure	400		{object}	converters.Error
//	@Failure	503		{object}	converters.Error
//	@Router		/api/orders [post]
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := OrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for create order", "error", err)
		respond.BadRequest(w, "invalid JSON body")

		return
	}

	if err := validate.Struct(&req); err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	created, err := service.CreateOrder(r.Context(), req.toModel())
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusCreated, converters.OrderFromModel(created))
}

// BulkCreate handles POST /api/orders/bulk. Orders are created independently;
// if any of them fails the response is 400 and lists every outcome.
//
//	@Summary	Create many orders
//	@Tags		orders
//	@Accept		json
//	@Produce	json
//	@Param		orders	body		BulkRequest	true	"Orders"
//	@Success	201		{array}		converters.BulkResult
//	@Failure	400		{array}		converters.BulkResult
//	@Router		/api/orders/bulk [post]
func BulkCreate(w http.ResponseWriter, r *http.Request, service service) {
	req := BulkRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for bulk create", "error", err)
		respond.BadRequest(w, "invalid JSON body")

		return
	}

	if err := validate.Struct(&req); err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	results := make([]converters.BulkResult, len(req.Orders))
	orders := make([]order.Order, 0, len(req.Orders))
	valid := make([]int, 0, len(req.Orders))
	for i := range req.Orders {
		results[i].Index = i
		if err := validate.Struct(&req.Orders[i]); err != nil {
			results[i].Error = err.Error()

			continue
		}
		orders = append(orders, req.Orders[i].toModel())
		valid = append(valid, i)
	}

	code := http.StatusCreated
	if len(valid) < len(req.Orders) {
		code = http.StatusBadRequest
	}

	for j, res := range service.BatchInsert(r.Context(), orders) {
		i := valid[j]
		if res.Err != nil {
			results[i].Error = res.Err.Error()
			if c := respond.StatusCode(res.Err); c > code {
				code = c
			}

			continue
		}
		created := converters.OrderFromModel(res.Order)
		results[i].Order = &created
	}

	respond.JSON(w, code, results)
}
