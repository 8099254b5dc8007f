package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/aws/aws-lambda-go/events"

	"github.com/vyrodovalexey/omikuji-api/internal/model"
)

// Response messages that never echo caller input.
const (
	MessageSuccess       = "success"
	MessageServerError   = "internal server error. Please access again after some time."
	MessageUnknownError  = "internal server error. Please contact the operator."
	clientMessagePrefix  = "client error. "
	invalidParameterText = "Invalid parameter."
)

// responseHeaders is the fixed header set of every response.
var responseHeaders = map[string]string{
	"Content-Type":                     "application/json",
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Methods":     "GET, POST, DELETE",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Allow-Headers":     "origin, x-requested-with",
}

// Body is the JSON envelope of every response.
type Body struct {
	Message any `json:"message"`
}

// Shape builds the proxy response for status and message. Decimal numbers in
// message are coerced to integers before encoding.
func Shape(status int, message any) (events.APIGatewayProxyResponse, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Body{Message: CoerceNumbers(message)}); err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("encode response: %w", err)
	}

	headers := make(map[string]string, len(responseHeaders))
	for k, v := range responseHeaders {
		headers[k] = v
	}

	return events.APIGatewayProxyResponse{
		StatusCode:      status,
		Headers:         headers,
		Body:            string(bytes.TrimRight(buf.Bytes(), "\n")),
		IsBase64Encoded: false,
	}, nil
}

// mustShape shapes a plain string message, which cannot fail to encode.
func mustShape(status int, message string) events.APIGatewayProxyResponse {
	resp, _ := Shape(status, message)
	return resp
}

// decimal is implemented by json.Number and attributevalue.Number.
type decimal interface {
	Int64() (int64, error)
	String() string
}

// CoerceNumbers walks v and replaces every decimal value with a plain
// integer. Fractions are truncated toward zero; values beyond int64 become
// *big.Int so no digits are lost.
func CoerceNumbers(v any) any {
	switch val := v.(type) {
	case decimal:
		return coerceDecimal(val)
	case model.Record:
		return CoerceNumbers(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CoerceNumbers(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CoerceNumbers(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CoerceNumbers(item)
		}
		return out
	default:
		return v
	}
}

func coerceDecimal(d decimal) any {
	if i, err := d.Int64(); err == nil {
		return i
	}

	f, _, err := big.ParseFloat(d.String(), 10, 256, big.ToZero)
	if err != nil {
		return d.String()
	}
	i, _ := f.Int(nil)
	if i.IsInt64() {
		return i.Int64()
	}
	return i
}
