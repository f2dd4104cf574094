package grpctransport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	orderstatus "github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/v1/converters"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "fulfillment.v1.OrderService"

// OrderServiceServer is the server API of fulfillment.v1.OrderService.
type OrderServiceServer interface {
	CreateOrders(ctx context.Context, req *CreateOrdersRequest) (*CreateOrdersResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	ListHistory(ctx context.Context, req *ListHistoryRequest) (*ListHistoryResponse, error)
}

// OrderServer implements the gRPC OrderService.
type OrderServer struct {
	service service
}

// NewOrderServer creates a new OrderServer.
func NewOrderServer(service service) *OrderServer {
	return &OrderServer{
		service: service,
	}
}

// CreateOrders creates every order independently and reports each outcome.
func (s *OrderServer) CreateOrders(ctx context.Context, req *CreateOrdersRequest) (*CreateOrdersResponse, error) {
	slog.Info("Received CreateOrders gRPC request", "orders_count", len(req.Orders))

	if len(req.Orders) == 0 {
		return nil, status.Error(codes.InvalidArgument, "no orders")
	}

	orders := make([]order.Order, len(req.Orders))
	for i, in := range req.Orders {
		items := make([]orderitem.OrderItem, len(in.OrderItems))
		for j, item := range in.OrderItems {
			items[j] = orderitem.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		orders[i] = order.Order{
			CustomerName:    in.CustomerName,
			CustomerEmail:   in.CustomerEmail,
			CustomerPhone:   in.CustomerPhone,
			DeliveryAddress: in.DeliveryAddress,
			OrderItems:      items,
		}
	}

	results := s.service.BatchInsert(ctx, orders)

	resp := &CreateOrdersResponse{Results: make([]CreateOrderResult, len(results))}
	created := 0
	for i, res := range results {
		if res.Err != nil {
			resp.Results[i] = CreateOrderResult{
				Code:  toCode(res.Err).String(),
				Error: res.Err.Error(),
			}

			continue
		}
		o := converters.OrderFromModel(res.Order)
		resp.Results[i] = CreateOrderResult{Order: &o}
		created++
	}

	slog.Info("CreateOrders completed", "created", created, "failed", len(results)-created)

	return resp, nil
}

// GetOrder returns one order with its items.
func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	o, err := s.service.GetOrder(ctx, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &GetOrderResponse{Order: converters.OrderFromModel(o)}, nil
}

// ListOrders lists orders matching the request filter.
func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	filter := order.QueryOrdersModel{
		Ids:    req.Ids,
		Search: req.Search,
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	for _, raw := range req.Statuses {
		st, err := orderstatus.Parse(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	orders, err := s.service.GetOrders(ctx, filter)
	if err != nil {
		return nil, toStatus(err)
	}

	return &ListOrdersResponse{Orders: converters.OrdersFromModel(orders)}, nil
}

// ListHistory returns the status history of an order.
func (s *OrderServer) ListHistory(ctx context.Context, req *ListHistoryRequest) (*ListHistoryResponse, error) {
	entries, err := s.service.GetHistory(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &ListHistoryResponse{Entries: converters.HistoryFromModel(entries)}, nil
}

func toCode(err error) codes.Code {
	switch {
	case errors.Is(err, ordersvc.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, product.ErrInsufficientStock), errors.Is(err, product.ErrInUse):
		return codes.FailedPrecondition
	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ordersvc.ErrTransient):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	code := toCode(err)
	if code == codes.Internal {
		slog.Error("gRPC request failed", "error", err)
	}

	return status.Error(code, err.Error())
}

// RegisterOrderServiceServer registers srv on s.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	method string,
	call func(srv OrderServiceServer, ctx context.Context, req *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateOrders",
			Handler:    unaryHandler("CreateOrders", OrderServiceServer.CreateOrders),
		},
		{
			MethodName: "GetOrder",
			Handler:    unaryHandler("GetOrder", OrderServiceServer.GetOrder),
		},
		{
			MethodName: "ListOrders",
			Handler:    unaryHandler("ListOrders", OrderServiceServer.ListOrders),
		},
		{
			MethodName: "ListHistory",
			Handler:    unaryHandler("ListHistory", OrderServiceServer.ListHistory),
		},
	},
	Metadata: "fulfillment/v1/order_service",
}
