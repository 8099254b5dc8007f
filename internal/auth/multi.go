package auth

import (
	"errors"
	"net/http"
)

// MultiAuthenticator accepts the first scheme the request carries
// credentials for. Invalid credentials stop the chain.
type MultiAuthenticator struct {
	chain []Authenticator
}

// NewMultiAuthenticator creates a MultiAuthenticator trying chain in order.
func NewMultiAuthenticator(chain ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{chain: chain}
}

// Authenticate runs the chain.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*Operator, error) {
	for _, next := range a.chain {
		op, err := next.Authenticate(r)
		if err == nil {
			return op, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
	}

	return nil, ErrUnauthenticated
}

// Method returns MethodMulti.
func (a *MultiAuthenticator) Method() Method {
	return MethodMulti
}
