package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/omikuji-api/internal/config"
	"github.com/vyrodovalexey/omikuji-api/internal/model"
	"github.com/vyrodovalexey/omikuji-api/internal/omikuji"
	"github.com/vyrodovalexey/omikuji-api/internal/store"
)

var testTables = config.Tables{Category: "category", Item: "item"}

func staticTables(bool) (config.Tables, error) {
	return testTables, nil
}

func newTestStore() *store.MemoryStore {
	s := store.NewMemoryStore()
	s.CreateTable(testTables.Category, model.AttrCategory, "")
	s.CreateTable(testTables.Item, model.AttrCategory, model.AttrItemID)
	return s
}

func newTestHandler(s store.Store, opts ...Option) (*Handler, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithTablesLoader(staticTables)}, opts...)
	return New(s, zap.New(core), opts...), logs
}

func bodyRequest(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		Body:           body,
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "req-1"},
	}
}

func drawRequest(category string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"category": category},
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "req-1"},
	}
}

func decodeMessage(t *testing.T, resp events.APIGatewayProxyResponse) any {
	t.Helper()

	var body Body
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return body.Message
}

func TestHandler_Scenario(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h, _ := newTestHandler(newTestStore())
	create := `{"category":"A","items":[{"name":"x"},{"name":"y"}]}`

	// Act & Assert
	resp, err := h.CreateCategory(ctx, bodyRequest(create))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"success"}`, resp.Body)

	resp, err = h.ListCategories(ctx, events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":["A"]}`, resp.Body)

	resp, err = h.Draw(ctx, drawRequest("A"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, []any{
		map[string]any{"name": "x"},
		map[string]any{"name": "y"},
	}, decodeMessage(t, resp))

	resp, err = h.DeleteCategory(ctx, bodyRequest(`{"category":"A"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"success"}`, resp.Body)

	resp, err = h.ListCategories(ctx, events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":[]}`, resp.Body)

	resp, err = h.Draw(ctx, drawRequest("A"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"message":"client error. category is empty: A"}`, resp.Body)
}

func TestHandler_ResponseEnvelope(t *testing.T) {
	h, _ := newTestHandler(newTestStore())

	resp, err := h.ListCategories(context.Background(), events.APIGatewayProxyRequest{})

	require.NoError(t, err)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, map[string]string{
		"Content-Type":                     "application/json",
		"Access-Control-Allow-Origin":      "*",
		"Access-Control-Allow-Methods":     "GET, POST, DELETE",
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Allow-Headers":     "origin, x-requested-with",
	}, resp.Headers)
}

func TestHandler_DrawCoercesDecimals(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h, _ := newTestHandler(newTestStore())
	create := `{"category":"A","items":[{"name":"daikichi","rank":1,"score":2.5,"tags":[3]}]}`
	_, err := h.CreateCategory(ctx, bodyRequest(create))
	require.NoError(t, err)

	// Act
	resp, err := h.Draw(ctx, drawRequest("A"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `{"message":{"name":"daikichi","rank":1,"score":2,"tags":[3]}}`, resp.Body)
}

func TestHandler_InvalidParameter(t *testing.T) {
	tests := []struct {
		name string
		call func(*Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
		req  events.APIGatewayProxyRequest
		raw  string
	}{
		{
			name: "create without category",
			call: func(h *Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
				return h.CreateCategory
			},
			req: bodyRequest(`{"items":[{"name":"secret-x"}]}`),
			raw: `{"items":[{"name":"secret-x"}]}`,
		},
		{
			name: "delete without category",
			call: func(h *Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
				return h.DeleteCategory
			},
			req: bodyRequest(`{"name":"secret-y"}`),
			raw: `{"name":"secret-y"}`,
		},
		{
			name: "draw without path parameter",
			call: func(h *Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
				return h.Draw
			},
			req: events.APIGatewayProxyRequest{},
			raw: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newTestStore()
			h, logs := newTestHandler(s)

			// Act
			resp, err := tt.call(h)(context.Background(), tt.req)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.JSONEq(t, `{"message":"client error. Invalid parameter."}`, resp.Body)
			assert.Zero(t, s.Writes())

			entries := logs.FilterMessage("client error").All()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
			assert.Equal(t, tt.raw, entries[0].ContextMap()["input"])
		})
	}
}

func TestHandler_ServerErrorHidesDetail(t *testing.T) {
	// Arrange
	h, logs := newTestHandler(newTestStore(), WithTablesLoader(func(bool) (config.Tables, error) {
		return config.Tables{}, model.NewServerError(`{"ITEM_TABLE_NAME":""}`, "Required environment variables are not set.")
	}))

	// Act
	resp, err := h.Draw(context.Background(), drawRequest("A"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"internal server error. Please access again after some time."}`, resp.Body)
	assert.NotContains(t, resp.Body, "ITEM_TABLE_NAME")

	entries := logs.FilterMessage("server error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}

func TestHandler_StoreInternalError(t *testing.T) {
	s := newTestStore()
	s.FailWith(store.OpScan, store.CodeInternalServer, "boom")
	h, _ := newTestHandler(s)

	resp, err := h.ListCategories(context.Background(), events.APIGatewayProxyRequest{})

	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"internal server error. Please access again after some time."}`, resp.Body)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) ScanItems(context.Context, string, string) ([]any, error) {
	return nil, errors.New("connection reset")
}

func TestHandler_UnexpectedError(t *testing.T) {
	// Arrange
	h, logs := newTestHandler(brokenStore{Store: newTestStore()})

	// Act
	resp, err := h.ListCategories(context.Background(), events.APIGatewayProxyRequest{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"internal server error. Please contact the operator."}`, resp.Body)
	assert.Equal(t, 1, logs.FilterMessage("unexpected error").Len())
}

func TestHandler_RecoversPanic(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h, logs := newTestHandler(newTestStore(), WithServiceOptions(omikuji.WithIntN(func(int) int {
		panic("random source exploded")
	})))
	_, err := h.CreateCategory(ctx, bodyRequest(`{"category":"A","items":[{"name":"x"}]}`))
	require.NoError(t, err)

	// Act
	resp, err := h.Draw(ctx, drawRequest("A"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"internal server error. Please contact the operator."}`, resp.Body)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestHandler_CorrelationID(t *testing.T) {
	t.Run("from request context", func(t *testing.T) {
		h, logs := newTestHandler(newTestStore())

		_, err := h.Draw(context.Background(), drawRequest("missing"))

		require.NoError(t, err)
		entries := logs.All()
		require.NotEmpty(t, entries)
		for _, e := range entries {
			assert.Equal(t, "req-1", e.ContextMap()["correlation_id"])
			assert.Equal(t, FuncOmikuji, e.ContextMap()["function"])
		}
	})

	t.Run("generated when absent", func(t *testing.T) {
		h, logs := newTestHandler(newTestStore())

		_, err := h.Draw(context.Background(), events.APIGatewayProxyRequest{
			PathParameters: map[string]string{"category": "missing"},
		})

		require.NoError(t, err)
		entries := logs.All()
		require.NotEmpty(t, entries)
		assert.NotEmpty(t, entries[0].ContextMap()["correlation_id"])
	})
}

func TestHandler_Lookup(t *testing.T) {
	h, _ := newTestHandler(newTestStore())

	for _, name := range []string{FuncCreateCategory, FuncListCategory, FuncDeleteCategory, FuncOmikuji} {
		fn, ok := h.Lookup(name)
		assert.True(t, ok, name)
		assert.NotNil(t, fn, name)
	}

	_, ok := h.Lookup("unknown")
	assert.False(t, ok)
}

func TestHandler_Route(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h, _ := newTestHandler(newTestStore())

	// Act
	create, err := h.Route(ctx, events.APIGatewayProxyRequest{
		Resource:   ResourceCategory,
		HTTPMethod: http.MethodPost,
		Body:       `{"category":"A","items":[{"name":"x"}]}`,
	})
	require.NoError(t, err)
	list, err := h.Route(ctx, events.APIGatewayProxyRequest{Resource: ResourceCategory, HTTPMethod: http.MethodGet})
	require.NoError(t, err)
	drawn, err := h.Route(ctx, events.APIGatewayProxyRequest{
		Resource:       ResourceOmikuji,
		HTTPMethod:     http.MethodGet,
		PathParameters: map[string]string{"category": "A"},
	})
	require.NoError(t, err)
	deleted, err := h.Route(ctx, events.APIGatewayProxyRequest{
		Resource:   ResourceCategory,
		HTTPMethod: http.MethodDelete,
		Body:       `{"category":"A"}`,
	})
	require.NoError(t, err)
	unknown, err := h.Route(ctx, events.APIGatewayProxyRequest{Resource: "/nope", HTTPMethod: http.MethodPut})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, http.StatusOK, create.StatusCode)
	assert.JSONEq(t, `{"message":["A"]}`, list.Body)
	assert.JSONEq(t, `{"message":{"name":"x"}}`, drawn.Body)
	assert.Equal(t, http.StatusOK, deleted.StatusCode)
	assert.Equal(t, http.StatusBadRequest, unknown.StatusCode)
	assert.JSONEq(t, `{"message":"client error. unsupported route"}`, unknown.Body)
}

func TestHandler_CreateCategoryRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty items", `{"category":"A","items":[]}`, "client error. items is empty"},
		{"reserved attribute", `{"category":"A","items":[{"item_id":1}]}`, "client error. item attribute is reserved: item_id"},
		{"items not objects", `{"category":"A","items":[1,2]}`, "client error. Invalid parameter."},
		{"category not a string", `{"category":7,"items":[{}]}`, "client error. Invalid parameter."},
		{"not json", `category=A`, "client error. Invalid parameter."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(newTestStore())

			resp, err := h.CreateCategory(context.Background(), bodyRequest(tt.body))

			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, decodeMessage(t, resp))
		})
	}
}
