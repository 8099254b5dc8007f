package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the operator API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator matches the X-API-Key header against configured keys.
type APIKeyAuthenticator struct {
	keys map[string]string // key -> operator name
}

// NewAPIKeyAuthenticator parses "key1:operator1,key2:operator2".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	keys, err := parsePairs(string(MethodAPIKey), keysConfig)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate compares the presented key with every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Operator, error) {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	var match string
	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			match = name
		}
	}
	if match == "" {
		return nil, ErrInvalidAPIKey
	}

	return &Operator{Method: MethodAPIKey, Name: match}, nil
}

// Method returns MethodAPIKey.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
