package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/session"
)

// Login screen messages.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgLoginServerError   = "Server error. Please try again."
)

// Authenticator exchanges credentials for a session token.
type Authenticator interface {
	Login(ctx context.Context, userID, pin string) (string, api.Result)
}

// TokenStore persists the session token. *session.Store satisfies it.
type TokenStore interface {
	Token() (string, error)
	Save(token string) error
	Clear() error
}

// Auth drives the login screen and owns the session lifecycle.
type Auth struct {
	client Authenticator
	store  TokenStore
	logger Logger
	now    func() time.Time

	err string
}

// NewAuth wires an authenticator to a token store.
func NewAuth(client Authenticator, store TokenStore, logger Logger) *Auth {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Auth{client: client, store: store, logger: logger, now: time.Now}
}

// LoggedIn reports whether a usable token is stored. Tokens whose JWT expiry
// has passed count as logged out.
func (a *Auth) LoggedIn() bool {
	token, err := a.store.Token()
	if err != nil {
		return false
	}
	if exp, ok := session.ExpiresAt(token); ok && !exp.After(a.now()) {
		a.logger.Printf("auth: stored session expired at %s", exp.Format(time.RFC3339))
		return false
	}
	return true
}

// Error returns the message shown under the login form.
func (a *Auth) Error() string {
	return a.err
}

// Login clears the previous error and returns the request Fetch.
func (a *Auth) Login(userID, pin string) Fetch {
	a.err = ""
	client := a.client
	userID = strings.TrimSpace(userID)
	return func(ctx context.Context) Event {
		token, res := client.Login(ctx, userID, pin)
		return LoginCompleted{UserID: userID, Token: token, Result: res}
	}
}

// Apply handles a LoginCompleted event and reports whether the user is now
// signed in. Failures set Error and never store a token.
func (a *Auth) Apply(e LoginCompleted) bool {
	switch {
	case e.Result.Transport:
		a.err = MsgLoginServerError
	case !e.Result.OK:
		a.err = e.Result.Error
		if a.err == "" {
			a.err = MsgInvalidCredentials
		}
	default:
		if err := a.store.Save(e.Token); err != nil {
			a.logger.Printf("auth: save session: %v", err)
			a.err = MsgLoginServerError
			return false
		}
		a.err = ""
		a.logger.Printf("auth: %s signed in", e.UserID)
		return true
	}
	a.logger.Printf("auth: login for %s failed: %s", e.UserID, a.err)
	return false
}

// Logout removes the stored token.
func (a *Auth) Logout() error {
	a.err = ""
	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}
