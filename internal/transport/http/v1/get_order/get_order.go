package getorder

import (
	"context"
	"net/http"
	"strconv"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/respond"
	"github.com/go-chi/chi/v5"
)

// service is an interface for the service layer.
type service interface {
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	GetHistory(ctx context.Context, orderID int64) ([]history.Entry, error)
	DeleteOrder(ctx context.Context, id int64) error
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.BadRequest(w, "invalid order id")

		return 0, false
	}

	return id, true
}

// GetOrder handles GET /api/orders/{id}.
//
//	@Summary	Get an order
//	@Tags		orders
//	@Produce	json
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	converters.Order
//	@Failure	404	{object}	converters.Error
//	@Router		/api/orders/{id} [get]
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := service.GetOrder(r.Context(), id)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.OrderFromModel(o))
}

// DeleteOrder handles DELETE /api/orders/{id}.
//
//	@Summary	Delete an order
//	@Tags		orders
//	@Param		id	path	int	true	"Order id"
//	@Success	204
//	@Failure	404	{object}	converters.Error
//	@Router		/api/orders/{id} [delete]
func DeleteOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if err := service.DeleteOrder(r.Context(), id); err != nil {
		respond.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory handles GET /api/orders/{id}/history.
//
//	@Summary	Get the status history of an order
//	@Tags		orders
//	@Produce	json
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{array}		converters.HistoryEntry
//	@Failure	404	{object}	converters.Error
//	@Router		/api/orders/{id}/history [get]
func GetHistory(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	entries, err := service.GetHistory(r.Context(), id)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.HistoryFromModel(entries))
}
