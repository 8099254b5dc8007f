package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/omikuji-api/internal/handler"
	"github.com/vyrodovalexey/omikuji-api/internal/middleware"
)

// maxBodyBytes mirrors the API Gateway payload limit.
const maxBodyBytes = 10 << 20

// localStage is reported as the API Gateway stage of local requests.
const localStage = "local"

// Gateway adapts fn to net/http the way API Gateway proxies a request to a
// Lambda function.
func Gateway(fn handler.Func, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := ProxyRequest(r)
		if err != nil {
			logger.Warn("failed to read request body",
				zap.String("request_id", middleware.RequestIDFrom(r)),
				zap.Error(err),
			)
			resp, _ := handler.Shape(http.StatusBadRequest, "client error. Invalid parameter.")
			writeProxyResponse(w, resp, logger)
			return
		}

		resp, err := fn(r.Context(), req)
		if err != nil {
			logger.Error("handler returned an error", zap.Error(err))
			resp, _ = handler.Shape(http.StatusInternalServerError, handler.MessageUnknownError)
		}

		writeProxyResponse(w, resp, logger)
	})
}

// ProxyRequest converts r into an API Gateway proxy event.
func ProxyRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}

	resource := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			resource = tmpl
		}
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ",")
	}

	query := make(map[string]string, len(r.URL.Query()))
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[len(values)-1]
		}
	}

	var pathParams map[string]string
	if vars := mux.Vars(r); len(vars) > 0 {
		pathParams = vars
	}

	return events.APIGatewayProxyRequest{
		Resource:                        resource,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               r.Header,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: r.URL.Query(),
		PathParameters:                  pathParams,
		Body:                            string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:    middleware.RequestIDFrom(r),
			Stage:        localStage,
			ResourcePath: resource,
			HTTPMethod:   r.Method,
			Path:         r.URL.Path,
		},
	}, nil
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse, logger *zap.Logger) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	for name, values := range resp.MultiValueHeaders {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			logger.Error("failed to decode response body", zap.Error(err))
		} else {
			body = decoded
		}
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug("failed to write response", zap.Error(err))
	}
}
