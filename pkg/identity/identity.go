// Package identity resolves the current user for a call. The persona
// catalog and call history are both scoped by user id.
package identity

import "context"

// User identifies the person placing calls.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Provider resolves the user for an incoming request.
type Provider interface {
	CurrentUser(ctx context.Context) (User, error)
}

// StaticProvider always returns the same user. It stands in for a real
// auth integration in local and test setups.
type StaticProvider struct {
	user User
}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider(user User) *StaticProvider {
	return &StaticProvider{user: user}
}

// NewGuestProvider returns a provider for an anonymous local user.
func NewGuestProvider() *StaticProvider {
	return &StaticProvider{user: User{
		ID:   "guest",
		Name: "Guest",
	}}
}

func (p *StaticProvider) CurrentUser(ctx context.Context) (User, error) {
	return p.user, nil
}
