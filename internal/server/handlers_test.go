package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"trustreg/internal/registry"
	"trustreg/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	unittestUser = "unittest_user"
	unittestName = "unittest_name"
	serviceKey   = "test-service-key"
)

var logger *slog.Logger

func TestMain(m *testing.M) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, opts))

	os.Exit(m.Run())
}

type fixture struct {
	srv   *httptest.Server
	reg   registry.Registry
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	value registry.UpdateMessage
}

func newFixture(t *testing.T, reg registry.Registry) *fixture {
	t.Helper()
	pub, priv, err := shared.GenKeypair()
	require.NoError(t, err)

	require.NoError(t, reg.AddID(unittestUser, pub))
	value := registry.NewSignedMessage(priv, unittestUser, "unittest_value")
	require.NoError(t, reg.UpdateName(unittestName, value))

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(reg, logger)
	go hub.Run(ctx)

	api := &API{
		Registry:   reg,
		Hub:        hub,
		ServiceKey: serviceKey,
		Logger:     logger,
	}
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &fixture{srv: srv, reg: reg, priv: priv, pub: pub, value: value}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (f *fixture) send(t *testing.T, method, path string, v any, header map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	switch b := v.(type) {
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}

	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (f *fixture) getMessage(t *testing.T, name string) registry.UpdateMessage {
	t.Helper()
	resp, body := f.get(t, "/name/"+name)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var msg registry.UpdateMessage
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var er shared.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er), string(body))
	return er.Code
}

func TestHello(t *testing.T) {
	f := newFixture(t, registry.NewServerData())
	resp, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	// unmatched requests fall through to the greeting
	resp, body = f.get(t, "/nope")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(body))
	resp, body = f.send(t, http.MethodDelete, "/name/"+unittestName, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(body))
	assert.True(t, f.value.Equal(f.getMessage(t, unittestName)))
}

func TestGetID(t *testing.T) {
	f := newFixture(t, registry.NewServerData())

	resp, body := f.get(t, "/id/"+unittestUser)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, shared.EncodeKey(f.pub), string(body))

	resp, _ = f.get(t, "/id/nobody")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetName(t *testing.T) {
	f := newFixture(t, registry.NewServerData())

	resp, body := f.get(t, "/name/test_no_name")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, shared.CodeNotFound, errorCode(t, body))

	got := f.getMessage(t, unittestName)
	assert.True(t, f.value.Equal(got))
}

func TestPostName(t *testing.T) {
	for name, open := range map[string]func(t *testing.T) registry.Registry{
		"memory": func(t *testing.T) registry.Registry { return registry.NewServerData() },
		"sqlite": func(t *testing.T) registry.Registry {
			s, err := registry.OpenSQLite()
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, open(t))
			const path = "/name/test_post_name"

			resp, _ := f.get(t, path)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)

			data := registry.NewSignedMessage(f.priv, unittestUser, "foo!")
			resp, body := f.send(t, http.MethodPost, path, data, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			assert.Equal(t, "ok", string(body))
			assert.True(t, data.Equal(f.getMessage(t, "test_post_name")))

			bad := registry.UpdateMessage{
				User:        unittestUser,
				UTC:         time.Now().UTC(),
				Signature:   "",
				NewContents: "aieeee!",
			}
			resp, body = f.send(t, http.MethodPost, path, bad, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, shared.CodeInvalidSignature, errorCode(t, body))

			assert.True(t, data.Equal(f.getMessage(t, "test_post_name")))
		})
	}
}

func TestPostNameRejections(t *testing.T) {
	f := newFixture(t, registry.NewServerData())
	_, otherPriv, err := shared.GenKeypair()
	require.NoError(t, err)

	malformed := registry.NewSignedMessage(f.priv, unittestUser, "x")
	malformed.Signature = "%%%"

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown user", registry.NewSignedMessage(otherPriv, "stranger", "x"), http.StatusForbidden, shared.CodeUnknownUser},
		{"wrong key", registry.NewSignedMessage(otherPriv, unittestUser, "x"), http.StatusForbidden, shared.CodeInvalidSignature},
		{"malformed", malformed, http.StatusForbidden, shared.CodeMalformedSignature},
		{"bad json", []byte(`{"user":`), http.StatusBadRequest, shared.CodeBadJSON},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := f.send(t, http.MethodPost, "/name/"+unittestName, c.body, nil)
			assert.Equal(t, c.status, resp.StatusCode, string(body))
			assert.Equal(t, c.code, errorCode(t, body))
			assert.True(t, f.value.Equal(f.getMessage(t, unittestName)))
		})
	}
}

func TestOversizedBody(t *testing.T) {
	f := newFixture(t, registry.NewServerData())

	// validly signed, but larger than the body limit
	big := registry.NewSignedMessage(f.priv, unittestUser, strings.Repeat("x", maxBodyBytes))
	resp, body := f.send(t, http.MethodPost, "/name/"+unittestName, big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, shared.CodeTooLarge, errorCode(t, body))
	assert.True(t, f.value.Equal(f.getMessage(t, unittestName)))

	resp, body = f.send(t, http.MethodPut, "/admin/name/"+unittestName, big, map[string]string{"X-Service-Key": serviceKey})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, shared.CodeTooLarge, errorCode(t, body))
	assert.True(t, f.value.Equal(f.getMessage(t, unittestName)))
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t, registry.NewServerData())
	pub, priv, err := shared.GenKeypair()
	require.NoError(t, err)
	reg := shared.RegisterIDRequest{PublicKey: shared.EncodeKey(pub)}

	resp, _ := f.send(t, http.MethodPost, "/admin/id/carol", reg, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = f.send(t, http.MethodPost, "/admin/id/carol", reg, map[string]string{"X-Service-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	key, err := f.reg.GetIDKey("carol")
	require.NoError(t, err)
	assert.Nil(t, key)

	auth := map[string]string{"X-Service-Key": serviceKey}
	resp, _ = f.send(t, http.MethodPost, "/admin/id/carol", reg, auth)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.send(t, http.MethodPost, "/admin/id/dave", shared.RegisterIDRequest{PublicKey: "AAAA"}, auth)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	msg := registry.NewSignedMessage(priv, "carol", "hi")
	resp, body := f.send(t, http.MethodPost, "/name/greeting", msg, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	seed := registry.UpdateMessage{User: "operator", UTC: time.Now().UTC(), NewContents: "default"}
	resp, _ = f.send(t, http.MethodPut, "/admin/name/home", seed, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = f.send(t, http.MethodPut, "/admin/name/home", seed, auth)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, seed.Equal(f.getMessage(t, "home")))
}

func TestAdminRoutesAbsentWithoutServiceKey(t *testing.T) {
	reg := registry.NewServerData()
	api := &API{Registry: reg, Logger: logger}
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	pub, _, err := shared.GenKeypair()
	require.NoError(t, err)
	body, _ := json.Marshal(shared.RegisterIDRequest{PublicKey: shared.EncodeKey(pub)})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/admin/id/carol", bytes.NewReader(body))
	req.Header.Set("X-Service-Key", "")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusNoContent, resp.StatusCode)

	key, err := reg.GetIDKey("carol")
	require.NoError(t, err)
	assert.Nil(t, key)

	// no hub, no watch route
	resp, err = http.Get(srv.URL + "/watch/anything")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestWatch(t *testing.T) {
	f := newFixture(t, registry.NewServerData())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/watch/" + unittestName
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var evt WatchEvent
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	assert.Equal(t, unittestName, evt.Name)
	assert.True(t, f.value.Equal(evt.Message))

	// a rejected update is not published
	_, otherPriv, err := shared.GenKeypair()
	require.NoError(t, err)
	resp, _ := f.send(t, http.MethodPost, "/name/"+unittestName, registry.NewSignedMessage(otherPriv, unittestUser, "forged"), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// updates to other names are not delivered here
	resp, _ = f.send(t, http.MethodPost, "/name/elsewhere", registry.NewSignedMessage(f.priv, unittestUser, "other"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	next := registry.NewSignedMessage(f.priv, unittestUser, "v2")
	resp, _ = f.send(t, http.MethodPost, "/name/"+unittestName, next, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	assert.Equal(t, unittestName, evt.Name)
	assert.True(t, next.Equal(evt.Message), "got %+v", evt.Message)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/hello.txt", []byte("static hello"), 0600))

	api := &API{Registry: registry.NewServerData(), StaticDir: dir, Logger: logger}
	srv := httptest.NewServer(api.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/static/hello.txt")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "static hello", string(body))
}
