package listorders

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// service is an interface for the service layer.
type service interface {
	GetOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
	ListDelayed(ctx context.Context, limit, offset int) ([]order.Order, error)
}

// parseIntSlice parses comma-separated string to slice of int64.
func parseIntSlice(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		val, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		result = append(result, val)
	}

	return result, nil
}

func parseStatuses(s string) ([]status.Status, error) {
	if s == "" {
		return nil, nil
	}

	var result []status.Status
	for _, part := range strings.Split(s, ",") {
		st, err := status.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}

	return result, nil
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	query := r.URL.Query()

	limit = defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", limitStr)
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", offsetStr)
		}
	}

	return limit, offset, nil
}

// ListOrders handles GET /api/orders.
//
//	@Summary	List orders
//	@Tags		orders
//	@Produce	json
//	@Param		search	query		string	false	"Substring of status, customer name or email"
//	@Param		status	query		string	false	"Comma separated statuses"
//	@Param		ids		query		string	false	"Comma separated ids"
//	@Param		limit	query		int		false	"Page size"
//	@Param		offset	query		int		false	"Page offset"
//	@Success	200		{array}		converters.Order
//	@Failure	400		{object}	converters.Error
//	@Router		/api/orders [get]
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	query := r.URL.Query()

	ids, err := parseIntSlice(query.Get("ids"))
	if err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	statuses, err := parseStatuses(query.Get("status"))
	if err != nil {
		respond.Error(w, err)

		return
	}

	limit, offset, err := parsePage(r)
	if err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	orders, err := service.GetOrders(r.Context(), order.QueryOrdersModel{
		Ids:      ids,
		Statuses: statuses,
		Search:   strings.TrimSpace(query.Get("search")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.OrdersFromModel(orders))
}

// ListDelayed handles GET /api/orders/delayed.
//
//	@Summary	List delayed orders
//	@Tags		orders
//	@Produce	json
//	@Param		limit	query	int	false	"Page size"
//	@Param		offset	query	int	false	"Page offset"
//	@Success	200		{array}	converters.Order
//	@Router		/api/orders/delayed [get]
func ListDelayed(w http.ResponseWriter, r *http.Request, service service) {
	limit, offset, err := parsePage(r)
	if err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	orders, err := service.ListDelayed(r.Context(), limit, offset)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.OrdersFromModel(orders))
}
