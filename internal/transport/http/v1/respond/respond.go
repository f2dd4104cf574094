// Package respond writes JSON responses and maps service errors to HTTP
// status codes.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
)

// JSON writes body with the given status code.
func JSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error writing response", "error", err)
	}
}

// Error writes err as a JSON error body with the matching status code.
func Error(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", code, "error", err)
	}

	JSON(w, code, converters.Error{Error: err.Error()})
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, converters.Error{Error: msg})
}

// StatusCode maps a service error to an HTTP status code. Validation is
// checked first: an unknown product during intake is a bad request, not a 404.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ordersvc.ErrValidation),
		errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, status.ErrUnknownStatus):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrStatusConflict),
		errors.Is(err, status.ErrIllegalTransition),
		errors.Is(err, product.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, ordersvc.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
