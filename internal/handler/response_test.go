package handler

import (
	"encoding/json"
	"math/big"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/omikuji-api/internal/model"
)

func TestCoerceNumbers(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"json number", json.Number("7"), int64(7)},
		{"attribute value number", attributevalue.Number("42"), int64(42)},
		{"fraction truncated", json.Number("2.9"), int64(2)},
		{"negative fraction truncated", json.Number("-2.9"), int64(-2)},
		{"exponent", json.Number("1e3"), int64(1000)},
		{"beyond int64", json.Number("123456789012345678901234567890"), huge},
		{"string untouched", "x", "x"},
		{"nil untouched", nil, nil},
		{
			name: "nested",
			in: map[string]any{
				"a": []any{json.Number("1"), map[string]any{"b": json.Number("2.5")}},
			},
			want: map[string]any{
				"a": []any{int64(1), map[string]any{"b": int64(2)}},
			},
		},
		{
			name: "record",
			in:   model.Record{"item_id": json.Number("3")},
			want: map[string]any{"item_id": int64(3)},
		},
		{
			name: "payload list",
			in:   []map[string]any{{"n": json.Number("4")}},
			want: []any{map[string]any{"n": int64(4)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoerceNumbers(tt.in))
		})
	}
}

func TestShape(t *testing.T) {
	resp, err := Shape(http.StatusOK, map[string]any{"html": "<b>&</b>", "n": json.Number("1.0")})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"message":{"html":"<b>&</b>","n":1}}`, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.False(t, resp.IsBase64Encoded)
}

func TestShape_HeadersAreCopied(t *testing.T) {
	resp, err := Shape(http.StatusOK, "x")
	require.NoError(t, err)

	resp.Headers["Content-Type"] = "text/plain"

	again, err := Shape(http.StatusOK, "x")
	require.NoError(t, err)
	assert.Equal(t, "application/json", again.Headers["Content-Type"])
}

func TestShape_EncodeFailure(t *testing.T) {
	_, err := Shape(http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Error(t, err)
}
