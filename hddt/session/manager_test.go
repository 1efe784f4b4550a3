package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxaxion/go-hddt-crawler/hddt"
	"github.com/taxaxion/go-hddt-crawler/hddt/api"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="160" height="50" viewBox="0 0 160 50">
<path d="M10 40 L30 10 L50 40 Z" fill="#333"/>
</svg>`

type fakeDecoder struct {
	text string
}

func (d fakeDecoder) Decode(ctx context.Context, image []byte) (string, error) {
	return d.text, nil
}

// fakePortal serves the captcha and login endpoints with scriptable login
// outcomes, counting login submissions.
type fakePortal struct {
	logins  int64
	respond func(n int64, w http.ResponseWriter)
}

func (p *fakePortal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(hddt.CaptchaPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "ck-1", "content": testSVG})
	})
	mux.HandleFunc(hddt.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CKey   string `json:"ckey"`
			CValue string `json:"cvalue"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ck-1", req.CKey)
		assert.NotEmpty(t, req.CValue)

		n := atomic.AddInt64(&p.logins, 1)
		w.Header().Set("Content-Type", "application/json")
		p.respond(n, w)
	})
	return mux
}

func grantToken(token string) func(int64, http.ResponseWriter) {
	return func(_ int64, w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func rejectWith(status int, message string) func(int64, http.ResponseWriter) {
	return func(_ int64, w http.ResponseWriter) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
	}
}

func newTestManager(t *testing.T, portal *fakePortal) *Manager {
	srv := httptest.NewServer(portal.handler(t))
	t.Cleanup(srv.Close)

	creds := Credentials{TaxCode: "0100109106", Username: "user", Password: "pass"}
	return NewManagerWithBaseURL(srv.URL, creds, NewMemoryStore(), fakeDecoder{text: "ABC123"})
}

func TestCheckTokenLogsInOnceAndCaches(t *testing.T) {
	portal := &fakePortal{respond: grantToken("bearer-1")}
	mgr := newTestManager(t, portal)

	require.NoError(t, mgr.CheckToken(context.Background()))
	assert.Equal(t, "bearer-1", mgr.Token())

	// second check must hit the cache, not the portal
	require.NoError(t, mgr.CheckToken(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt64(&portal.logins))
}

func TestCheckTokenAfterInvalidate(t *testing.T) {
	portal := &fakePortal{respond: grantToken("bearer-1")}
	mgr := newTestManager(t, portal)

	require.NoError(t, mgr.CheckToken(context.Background()))
	mgr.Invalidate()
	assert.Empty(t, mgr.Token())

	require.NoError(t, mgr.CheckToken(context.Background()))
	assert.EqualValues(t, 2, atomic.LoadInt64(&portal.logins))
}

func TestLoginRetriesCaptchaMismatch(t *testing.T) {
	portal := &fakePortal{}
	portal.respond = func(n int64, w http.ResponseWriter) {
		if n < 3 {
			rejectWith(http.StatusBadRequest, "Mã captcha không đúng")(n, w)
			return
		}
		grantToken("bearer-2")(n, w)
	}
	mgr := newTestManager(t, portal)

	token, err := mgr.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bearer-2", token)
	assert.EqualValues(t, 3, atomic.LoadInt64(&portal.logins))
}

func TestLoginExhaustsCaptchaAttempts(t *testing.T) {
	portal := &fakePortal{respond: rejectWith(http.StatusBadRequest, "Mã captcha không đúng")}
	mgr := newTestManager(t, portal)

	_, err := mgr.Login(context.Background())
	require.Error(t, err)

	var captchaErr *api.CaptchaError
	assert.ErrorAs(t, err, &captchaErr)
	assert.EqualValues(t, api.DefaultAttempts, atomic.LoadInt64(&portal.logins))
}

func TestLoginBadCredentialsNeverRetried(t *testing.T) {
	portal := &fakePortal{respond: rejectWith(http.StatusUnauthorized, "Tên đăng nhập hoặc mật khẩu không đúng")}
	mgr := newTestManager(t, portal)

	_, err := mgr.Login(context.Background())
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)
	assert.EqualValues(t, 1, atomic.LoadInt64(&portal.logins))
}

func TestLoginEmptyTokenIsAnError(t *testing.T) {
	portal := &fakePortal{respond: grantToken("")}
	mgr := newTestManager(t, portal)

	_, err := mgr.Login(context.Background())
	var parse *api.ParseError
	assert.ErrorAs(t, err, &parse)
}

func TestLoginCancelledContext(t *testing.T) {
	portal := &fakePortal{respond: grantToken("bearer")}
	mgr := newTestManager(t, portal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mgr.Login(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, atomic.LoadInt64(&portal.logins))
}

func TestFingerprintHeaders(t *testing.T) {
	h := Fingerprint()
	assert.NotEmpty(t, h["User-Agent"])
	assert.NotEmpty(t, h["sec-ch-ua-platform"])
	assert.Equal(t, "?0", h["sec-ch-ua-mobile"])
}
