package socket

import (
	"context"
	"errors"

	"github.com/xraph/bulkhead"
	"github.com/xraph/bulkhead/id"
)

// ErrUnauthorized indicates handshake authentication failure.
var ErrUnauthorized = errors.New("socket: unauthorized")

// Identity is the authenticated caller behind a connection, bound to
// the organization the whole connection will operate in.
type Identity struct {
	Actor bulkhead.Actor `json:"actor"`
	OrgID id.OrgID       `json:"org_id"`
}

// Authenticator validates a handshake token and returns the identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// StaticTokenAuthenticator validates tokens against a static map.
// Useful for tests and single-node deployments.
type StaticTokenAuthenticator struct {
	tokens map[string]*Identity
}

// TokenEntry maps a token to an identity.
type TokenEntry struct {
	Token    string
	Identity Identity
}

// NewStaticTokenAuthenticator creates a static token authenticator.
func NewStaticTokenAuthenticator(entries ...TokenEntry) *StaticTokenAuthenticator {
	tokens := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		ident := e.Identity
		tokens[e.Token] = &ident
	}
	return &StaticTokenAuthenticator{tokens: tokens}
}

func (a *StaticTokenAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	ident, ok := a.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return ident, nil
}

// CompositeAuthenticator tries multiple authenticators in order; the
// first success wins.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator chains multiple authenticators.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

func (c *CompositeAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	for _, auth := range c.authenticators {
		ident, err := auth.Authenticate(ctx, token)
		if err == nil {
			return ident, nil
		}
	}
	return nil, ErrUnauthorized
}
