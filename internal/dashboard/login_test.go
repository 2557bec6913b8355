package dashboard

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/smartstock/internal/api"
	"github.com/kingrea/smartstock/internal/session"
)

type fakeAuthenticator struct {
	token string
	res   api.Result
	got   [2]string
}

func (f *fakeAuthenticator) Login(_ context.Context, userID, pin string) (string, api.Result) {
	f.got = [2]string{userID, pin}
	return f.token, f.res
}

func newAuth(t *testing.T, client Authenticator) (*Auth, *session.Store) {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	return NewAuth(client, store, nil), store
}

func TestLoginSuccessStoresToken(t *testing.T) {
	client := &fakeAuthenticator{token: "tok-1", res: api.Result{OK: true}}
	auth, store := newAuth(t, client)
	require.False(t, auth.LoggedIn())

	ev := auth.Login(" clerk ", "1234")(context.Background())
	require.True(t, auth.Apply(ev.(LoginCompleted)))
	require.Equal(t, [2]string{"clerk", "1234"}, client.got)
	token, err := store.Token()
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
	require.True(t, auth.LoggedIn())
	require.Empty(t, auth.Error())

	require.NoError(t, auth.Logout())
	require.False(t, store.HasToken())
	require.False(t, auth.LoggedIn())
}

func TestLoginFailureMessages(t *testing.T) {
	cases := map[string]struct {
		res  api.Result
		want string
	}{
		"server message":    {api.Result{Error: "Wrong PIN"}, "Wrong PIN"},
		"no server message": {api.Result{}, MsgInvalidCredentials},
		"transport":         {api.Result{Error: api.TransportFailure, Transport: true}, MsgLoginServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			auth, store := newAuth(t, &fakeAuthenticator{res: tc.res})
			ev := auth.Login("clerk", "0000")(context.Background())
			require.False(t, auth.Apply(ev.(LoginCompleted)))
			require.Equal(t, tc.want, auth.Error())
			require.False(t, store.HasToken(), "failed login must not store a token")
		})
	}
}

func TestLoginClearsPreviousError(t *testing.T) {
	auth, _ := newAuth(t, &fakeAuthenticator{res: api.Result{Error: "Wrong PIN"}})
	auth.Apply(auth.Login("a", "b")(context.Background()).(LoginCompleted))
	require.NotEmpty(t, auth.Error())
	auth.Login("a", "b")
	require.Empty(t, auth.Error())
}

func TestExpiredJWTCountsAsLoggedOut(t *testing.T) {
	auth, store := newAuth(t, &fakeAuthenticator{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	auth.now = func() time.Time { return now }

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, store.Save(signed))
	require.False(t, auth.LoggedIn())

	require.NoError(t, store.Save("opaque"))
	require.True(t, auth.LoggedIn(), "opaque tokens never expire client-side")
}
