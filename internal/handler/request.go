package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/vyrodovalexey/omikuji-api/internal/model"
)

// Request field names.
const (
	fieldCategory = "category"
	fieldItems    = "items"
)

// CreateCategoryRequest is the body of POST /category.
type CreateCategoryRequest struct {
	Category string
	Items    []map[string]any
}

// DeleteCategoryRequest is the body of DELETE /category.
type DeleteCategoryRequest struct {
	Category string
}

// DrawRequest holds the path parameters of GET /omikuji/{category}.
type DrawRequest struct {
	Category string
}

var errMissingField = errors.New("missing required field")

// ParseCreateCategory extracts the create contract from the request body.
func ParseCreateCategory(req events.APIGatewayProxyRequest) (CreateCategoryRequest, error) {
	body, err := requestBody(req)
	if err != nil {
		return CreateCategoryRequest{}, invalidParameter(req.Body, err)
	}

	fields, err := decodeFields(body, fieldCategory, fieldItems)
	if err != nil {
		return CreateCategoryRequest{}, invalidParameter(body, err)
	}

	var out CreateCategoryRequest
	if err := decodeCategory(fields[fieldCategory], &out.Category); err != nil {
		return CreateCategoryRequest{}, invalidParameter(body, err)
	}
	if err := decodeNumbers(fields[fieldItems], &out.Items); err != nil {
		return CreateCategoryRequest{}, invalidParameter(body, fmt.Errorf("items: %w", err))
	}
	for i, item := range out.Items {
		if item == nil {
			return CreateCategoryRequest{}, invalidParameter(body, fmt.Errorf("items[%d] is not an object", i))
		}
	}

	return out, nil
}

// ParseDeleteCategory extracts the delete contract from the request body.
func ParseDeleteCategory(req events.APIGatewayProxyRequest) (DeleteCategoryRequest, error) {
	body, err := requestBody(req)
	if err != nil {
		return DeleteCategoryRequest{}, invalidParameter(req.Body, err)
	}

	fields, err := decodeFields(body, fieldCategory)
	if err != nil {
		return DeleteCategoryRequest{}, invalidParameter(body, err)
	}

	var out DeleteCategoryRequest
	if err := decodeCategory(fields[fieldCategory], &out.Category); err != nil {
		return DeleteCategoryRequest{}, invalidParameter(body, err)
	}

	return out, nil
}

// ParseDraw extracts the draw contract from the path parameters.
func ParseDraw(req events.APIGatewayProxyRequest) (DrawRequest, error) {
	category := req.PathParameters[fieldCategory]
	if category == "" {
		raw, _ := json.Marshal(req.PathParameters)
		return DrawRequest{}, invalidParameter(string(raw), fmt.Errorf("%w: %s", errMissingField, fieldCategory))
	}

	return DrawRequest{Category: category}, nil
}

// requestBody returns the body text, decoding base64 when flagged.
func requestBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}

	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", fmt.Errorf("decode base64 body: %w", err)
	}
	return string(raw), nil
}

// decodeFields decodes a JSON object and checks every name is present.
func decodeFields(body string, names ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if fields == nil {
		return nil, errors.New("body is not an object")
	}

	for _, name := range names {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("%w: %s", errMissingField, name)
		}
	}

	return fields, nil
}

func decodeCategory(raw json.RawMessage, out *string) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	if *out == "" {
		return errors.New("category is empty")
	}
	return nil
}

// decodeNumbers unmarshals raw keeping numbers as json.Number.
func decodeNumbers(raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(out)
}

func invalidParameter(input string, cause error) *model.ClientError {
	return &model.ClientError{Input: input, Message: invalidParameterText, Err: cause}
}
