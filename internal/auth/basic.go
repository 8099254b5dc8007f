package auth

import (
	"net/http"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// unknownUserHash is compared against when the user does not exist so both
// failure paths cost one bcrypt comparison.
var unknownUserHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("unknown-operator"), bcrypt.DefaultCost)
	return hash
})

// BasicAuthenticator checks HTTP Basic credentials against bcrypt hashes.
type BasicAuthenticator struct {
	users map[string]string // operator -> bcrypt hash
}

// NewBasicAuthenticator parses "operator1:hash1,operator2:hash2".
func NewBasicAuthenticator(usersConfig string) (*BasicAuthenticator, error) {
	users, err := parsePairs(string(MethodBasic), usersConfig)
	if err != nil {
		return nil, err
	}
	return &BasicAuthenticator{users: users}, nil
}

// Authenticate verifies the Basic credentials of r. Unknown users and wrong
// passwords return the same error.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*Operator, error) {
	name, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	hash, exists := a.users[name]
	if !exists {
		_ = bcrypt.CompareHashAndPassword(unknownUserHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Operator{Method: MethodBasic, Name: name}, nil
}

// Method returns MethodBasic.
func (a *BasicAuthenticator) Method() Method {
	return MethodBasic
}
