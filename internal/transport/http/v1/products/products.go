package products

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/respond"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// service is an interface for the service layer.
type service interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProducts(ctx context.Context, filter product.QueryProductsModel) ([]product.Product, error)
	GetProduct(ctx context.Context, id int64) (product.Product, error)
	UpdateProduct(ctx context.Context, id int64, upd product.Update) (product.Product, error)
	RestockProduct(ctx context.Context, id int64, quantity int64) (product.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// CreateProductRequest represents a create product request. Price is a
// decimal string such as "19.99".
type CreateProductRequest struct {
	Name        string `json:"name"        validate:"required,max=200"`
	Description string `json:"description"`
	Category    string `json:"category"    validate:"max=100"`
	Price       string `json:"price"       validate:"required,numeric"`
	Stock       int64  `json:"stock"       validate:"gte=0"`
	ExpiryDate  string `json:"expiryDate"  validate:"omitempty,datetime=2006-01-02"`
}

// UpdateProductRequest changes only the fields that are present. An empty
// expiryDate clears it.
type UpdateProductRequest struct {
	Name        *string `json:"name"        validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Category    *string `json:"category"    validate:"omitempty,max=100"`
	Price       *string `json:"price"       validate:"omitempty,numeric"`
	Stock       *int64  `json:"stock"       validate:"omitempty,gte=0"`
	ExpiryDate  *string `json:"expiryDate"`
}

// RestockRequest adds Quantity units to a product.
type RestockRequest struct {
	Quantity int64 `json:"quantity" validate:"required,gte=1"`
}

// CreateProduct handles POST /api/products.
//
//	@Summary	Create a product
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		product	body		CreateProductRequest	true	"Product"
//	@Success	201		{object}	converters.Product
//	@Failure	400		{object}	converters.Error
//	@Router		/api/products [post]
func CreateProduct(w http.ResponseWriter, r *http.Request, service service) {
	req := CreateProductRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for create product", "error", err)
		respond.BadRequest(w, "invalid JSON body")

		return
	}

	if err := validate.Struct(&req); err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		respond.BadRequest(w, "invalid price")

		return
	}

	var expiry *time.Time
	if req.ExpiryDate != "" {
		d, err := time.Parse(time.DateOnly, req.ExpiryDate)
		if err != nil {
			respond.BadRequest(w, "invalid expiry date")

			return
		}
		expiry = &d
	}

	created, err := service.CreateProduct(r.Context(), product.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       price,
		Stock:       req.Stock,
		ExpiryDate:  expiry,
	})
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusCreated, converters.ProductFromModel(created))
}

// ListProducts handles GET /api/products.
//
//	@Summary	List products
//	@Tags		products
//	@Produce	json
//	@Param		category	query	string	false	"Category"
//	@Param		limit		query	int		false	"Page size"
//	@Param		offset		query	int		false	"Page offset"
//	@Success	200			{array}	converters.Product
//	@Router		/api/products [get]
func ListProducts(w http.ResponseWriter, r *http.Request, service service) {
	query := r.URL.Query()
	filter := product.QueryProductsModel{Category: query.Get("category")}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	products, err := service.GetProducts(r.Context(), filter)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.ProductsFromModel(products))
}

// GetProduct handles GET /api/products/{id}.
//
//	@Summary	Get a product
//	@Tags		products
//	@Produce	json
//	@Param		id	path		int	true	"Product id"
//	@Success	200	{object}	converters.Product
//	@Failure	404	{object}	converters.Error
//	@Router		/api/products/{id} [get]
func GetProduct(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	p, err := service.GetProduct(r.Context(), id)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.ProductFromModel(p))
}

// UpdateProduct handles PATCH /api/products/{id}.
//
//	@Summary	Update a product
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int						true	"Product id"
//	@Param		product	body		UpdateProductRequest	true	"Changed fields"
//	@Success	200		{object}	converters.Product
//	@Failure	400		{object}	converters.Error
//	@Failure	404		{object}	converters.Error
//	@Router		/api/products/{id} [patch]
func UpdateProduct(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	req := UpdateProductRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Error decoding request body for update product", "error", err)
		respond.BadRequest(w, "invalid JSON body")

		return
	}

	if err := validate.Struct(&req); err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	upd := product.Update{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			respond.BadRequest(w, "invalid price")

			return
		}
		upd.Price = &price
	}
	if req.ExpiryDate != nil {
		if *req.ExpiryDate == "" {
			upd.ClearExpiry = true
		} else {
			d, err := time.Parse(time.DateOnly, *req.ExpiryDate)
			if err != nil {
				respond.BadRequest(w, "invalid expiry date")

				return
			}
			upd.ExpiryDate = &d
		}
	}

	updated, err := service.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.ProductFromModel(updated))
}

// RestockProduct handles POST /api/products/{id}/restock.
//
//	@Summary	Add stock to a product
//	@Tags		products
//	@Accept		json
//	@Produce	json
//	@Param		id		path		int				true	"Product id"
//	@Param		restock	body		RestockRequest	true	"Units to add"
//	@Success	200		{object}	converters.Product
//	@Failure	400		{object}	converters.Error
//	@Failure	404		{object}	converters.Error
//	@Router		/api/products/{id}/restock [post]
func RestockProduct(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	req := RestockRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid JSON body")

		return
	}

	if err := validate.Struct(&req); err != nil {
		respond.BadRequest(w, err.Error())

		return
	}

	restocked, err := service.RestockProduct(r.Context(), id, req.Quantity)
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, converters.ProductFromModel(restocked))
}

// DeleteProduct handles DELETE /api/products/{id}.
//
//	@Summary	Delete a product no order references
//	@Tags		products
//	@Param		id	path	int	true	"Product id"
//	@Success	204
//	@Failure	404	{object}	converters.Error
//	@Failure	409	{object}	converters.Error
//	@Router		/api/products/{id} [delete]
func DeleteProduct(w http.ResponseWriter, r *http.Request, service service) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := service.DeleteProduct(r.Context(), id); err != nil {
		respond.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.BadRequest(w, "invalid product id")

		return 0, false
	}

	return id, true
}
