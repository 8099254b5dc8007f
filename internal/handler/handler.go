// Package handler provides the API Gateway proxy handlers of the omikuji
// backend. Every handler returns a shaped envelope and never a Go error.
package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/omikuji-api/internal/config"
	"github.com/vyrodovalexey/omikuji-api/internal/model"
	"github.com/vyrodovalexey/omikuji-api/internal/omikuji"
	"github.com/vyrodovalexey/omikuji-api/internal/store"
)

// Function names, as selected by APP_HANDLER.
const (
	FuncCreateCategory = "create_category"
	FuncListCategory   = "list_category"
	FuncDeleteCategory = "delete_category"
	FuncOmikuji        = "omikuji"
)

// Routes served by Route.
const (
	ResourceCategory = "/category"
	ResourceOmikuji  = "/omikuji/{category}"
)

var responsesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "handler_responses_total",
		Help: "Total number of shaped responses by function and status",
	},
	[]string{"function", "status"},
)

// Func is an API Gateway proxy handler as accepted by lambda.Start.
type Func func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// TablesLoader resolves the table names at invocation start.
type TablesLoader func(needItems bool) (config.Tables, error)

// serviceFunc runs one operation and returns the success message.
type serviceFunc func(ctx context.Context, svc *omikuji.Service, req events.APIGatewayProxyRequest) (any, error)

// Handler serves the omikuji operations over a shared store handle.
type Handler struct {
	store       store.Store
	logger      *zap.Logger
	loadTables  TablesLoader
	serviceOpts []omikuji.Option
}

// Option configures a Handler.
type Option func(*Handler)

// WithTablesLoader replaces the environment-backed table loader.
func WithTablesLoader(fn TablesLoader) Option {
	return func(h *Handler) {
		h.loadTables = fn
	}
}

// WithServiceOptions passes opts to every per-invocation service.
func WithServiceOptions(opts ...omikuji.Option) Option {
	return func(h *Handler) {
		h.serviceOpts = append(h.serviceOpts, opts...)
	}
}

// New creates a new Handler.
func New(s store.Store, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		store:      s,
		logger:     logger,
		loadTables: config.LoadTables,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateCategory handles POST /category.
func (h *Handler) CreateCategory(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.invoke(ctx, FuncCreateCategory, true, req, createCategory)
}

// ListCategories handles GET /category.
func (h *Handler) ListCategories(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.invoke(ctx, FuncListCategory, false, req, listCategories)
}

// DeleteCategory handles DELETE /category.
func (h *Handler) DeleteCategory(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.invoke(ctx, FuncDeleteCategory, true, req, deleteCategory)
}

// Draw handles GET /omikuji/{category}.
func (h *Handler) Draw(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.invoke(ctx, FuncOmikuji, true, req, draw)
}

// Lookup returns the handler registered under a function name.
func (h *Handler) Lookup(name string) (Func, bool) {
	switch name {
	case FuncCreateCategory:
		return h.CreateCategory, true
	case FuncListCategory:
		return h.ListCategories, true
	case FuncDeleteCategory:
		return h.DeleteCategory, true
	case FuncOmikuji:
		return h.Draw, true
	default:
		return nil, false
	}
}

// Route dispatches req by method and resource, for a single function
// serving every route.
func (h *Handler) Route(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch {
	case req.Resource == ResourceCategory && req.HTTPMethod == http.MethodPost:
		return h.CreateCategory(ctx, req)
	case req.Resource == ResourceCategory && req.HTTPMethod == http.MethodGet:
		return h.ListCategories(ctx, req)
	case req.Resource == ResourceCategory && req.HTTPMethod == http.MethodDelete:
		return h.DeleteCategory(ctx, req)
	case req.Resource == ResourceOmikuji && req.HTTPMethod == http.MethodGet:
		return h.Draw(ctx, req)
	}

	return h.invoke(ctx, "route", false, req,
		func(context.Context, *omikuji.Service, events.APIGatewayProxyRequest) (any, error) {
			return nil, model.NewClientError(req.HTTPMethod+" "+req.Resource, "unsupported route")
		})
}

// invoke runs fn with a correlated logger and turns its outcome into an
// envelope. Panics are recovered into the contact-operator response.
func (h *Handler) invoke(
	ctx context.Context,
	name string,
	needItems bool,
	req events.APIGatewayProxyRequest,
	fn serviceFunc,
) (resp events.APIGatewayProxyResponse, err error) {
	correlationID := req.RequestContext.RequestID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With(
		zap.String("function", name),
		zap.String("correlation_id", correlationID),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic recovered",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp, err = mustShape(http.StatusInternalServerError, MessageUnknownError), nil
		}
		responsesTotal.WithLabelValues(name, strconv.Itoa(resp.StatusCode)).Inc()
	}()

	message, err := h.run(ctx, needItems, req, fn)
	if err != nil {
		return failure(logger, err), nil
	}

	resp, err = Shape(http.StatusOK, message)
	if err != nil {
		return failure(logger, err), nil
	}

	logger.Debug("request handled")
	return resp, nil
}

func (h *Handler) run(
	ctx context.Context,
	needItems bool,
	req events.APIGatewayProxyRequest,
	fn serviceFunc,
) (any, error) {
	tables, err := h.loadTables(needItems)
	if err != nil {
		return nil, err
	}

	return fn(ctx, omikuji.NewService(h.store, tables, h.serviceOpts...), req)
}

// failure logs err at the severity of its class and shapes the response.
func failure(logger *zap.Logger, err error) events.APIGatewayProxyResponse {
	var se *model.ServerError
	if errors.As(err, &se) {
		logger.Error("server error",
			zap.String("input", se.Input),
			zap.Error(err),
		)
		return mustShape(http.StatusInternalServerError, MessageServerError)
	}

	var ce *model.ClientError
	if errors.As(err, &ce) {
		logger.Warn("client error",
			zap.String("input", ce.Input),
			zap.Error(err),
		)
		return mustShape(http.StatusBadRequest, clientMessagePrefix+ce.Message)
	}

	logger.Error("unexpected error", zap.Error(err))
	return mustShape(http.StatusInternalServerError, MessageUnknownError)
}

func createCategory(ctx context.Context, svc *omikuji.Service, req events.APIGatewayProxyRequest) (any, error) {
	in, err := ParseCreateCategory(req)
	if err != nil {
		return nil, err
	}
	if err := svc.CreateCategory(ctx, in.Category, in.Items); err != nil {
		return nil, err
	}
	return MessageSuccess, nil
}

func listCategories(ctx context.Context, svc *omikuji.Service, _ events.APIGatewayProxyRequest) (any, error) {
	return svc.ListCategories(ctx)
}

func deleteCategory(ctx context.Context, svc *omikuji.Service, req events.APIGatewayProxyRequest) (any, error) {
	in, err := ParseDeleteCategory(req)
	if err != nil {
		return nil, err
	}
	if err := svc.DeleteCategory(ctx, in.Category); err != nil {
		return nil, err
	}
	return MessageSuccess, nil
}

func draw(ctx context.Context, svc *omikuji.Service, req events.APIGatewayProxyRequest) (any, error) {
	in, err := ParseDraw(req)
	if err != nil {
		return nil, err
	}
	return svc.Draw(ctx, in.Category)
}
