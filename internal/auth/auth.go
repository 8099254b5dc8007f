// Package auth authenticates operators allowed to create and delete
// categories on the local server.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/omikuji-api/internal/config"
)

// Method names an authentication scheme.
type Method string

// Supported schemes.
const (
	MethodNone   Method = "none"
	MethodBasic  Method = "basic"
	MethodAPIKey Method = "apikey"
	MethodMulti  Method = "multi"
)

// Operator is an authenticated caller.
type Operator struct {
	Method Method
	Name   string
}

// Authenticator validates a request and returns the operator behind it.
type Authenticator interface {
	Authenticate(r *http.Request) (*Operator, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type contextKey string

const operatorKey contextKey = "operator"

// FromContext returns the operator stored in ctx.
func FromContext(ctx context.Context) (*Operator, bool) {
	op, ok := ctx.Value(operatorKey).(*Operator)
	return op, ok
}

// WithOperator stores op in ctx.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// New builds the authenticator selected by cfg.AuthMode. It returns nil for
// mode none.
func New(cfg *config.Config) (Authenticator, error) {
	switch Method(cfg.AuthMode) {
	case MethodNone, "":
		return nil, nil
	case MethodBasic:
		return NewBasicAuthenticator(cfg.BasicAuthUsers)
	case MethodAPIKey:
		return NewAPIKeyAuthenticator(cfg.APIKeys)
	case MethodMulti:
		var chain []Authenticator
		if cfg.APIKeys != "" {
			a, err := NewAPIKeyAuthenticator(cfg.APIKeys)
			if err != nil {
				return nil, err
			}
			chain = append(chain, a)
		}
		if cfg.BasicAuthUsers != "" {
			a, err := NewBasicAuthenticator(cfg.BasicAuthUsers)
			if err != nil {
				return nil, err
			}
			chain = append(chain, a)
		}
		return NewMultiAuthenticator(chain...), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// parsePairs parses "a:b,c:d" into a map. Only the first colon of an entry
// separates the pair.
func parsePairs(scheme, raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: config must not be empty", scheme)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%s auth: invalid entry format, expected name:secret", scheme)
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s auth: entry parts must not be empty", scheme)
		}

		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", scheme)
	}

	return pairs, nil
}
