package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chunga-ict/vpnctl/kernel/config"
	"github.com/chunga-ict/vpnctl/kernel/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captured struct {
	events []*handler.Event
}

func testRegistry(c *captured) *handler.Registry {
	r := handler.NewRegistry()
	for _, name := range []string{handler.NameStatus, handler.NameStart, handler.NameRegister} {
		r.Register(name, handler.HandlerFunc(func(_ context.Context, event *handler.Event) *handler.Response {
			c.events = append(c.events, event)
			body, _ := event.DecodedBody()
			return handler.OK(handler.Payload{"method": event.Method(), "body": body})
		}))
	}
	return r
}

func TestServer_DispatchesOperation(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(New(testRegistry(c), config.ServeConfig{}).Routes())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/register", strings.NewReader(`{"publicKey":"x"}`))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "vpnctl-test")
	req.Header.Set("X-Request-Id", "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "POST", body["method"])
	assert.Equal(t, `{"publicKey":"x"}`, body["body"])

	require.Len(t, c.events, 1)
	meta := c.events[0].Meta()
	assert.Equal(t, "127.0.0.1", *meta.SourceIp)
	assert.Equal(t, "vpnctl-test", *meta.UserAgent)
	assert.Equal(t, "req-42", *meta.RequestId)
}

func TestServer_PreflightSkipsSideEffects(t *testing.T) {
	c := &captured{}
	srv := httptest.NewServer(New(testRegistry(c), config.ServeConfig{}).Routes())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/start", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OPTIONS,GET,POST", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Empty(t, c.events)
}

func TestServer_UnknownPath(t *testing.T) {
	srv := httptest.NewServer(New(testRegistry(&captured{}), config.ServeConfig{}).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/reboot")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Healthz(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	srv := httptest.NewServer(New(testRegistry(&captured{}), config.ServeConfig{AdminUser: "admin", AdminPasswordHash: string(hash)}).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	c := &captured{}
	srv := httptest.NewServer(New(testRegistry(c), config.ServeConfig{AdminUser: "admin", AdminPasswordHash: string(hash)}).Routes())
	defer srv.Close()

	for _, tc := range []struct {
		user, password string
		set            bool
		expected       int
	}{
		{set: false, expected: http.StatusUnauthorized},
		{user: "admin", password: "wrong", set: true, expected: http.StatusUnauthorized},
		{user: "root", password: "s3cret", set: true, expected: http.StatusUnauthorized},
		{user: "admin", password: "s3cret", set: true, expected: http.StatusOK},
	} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
		require.NoError(t, err)
		if tc.set {
			req.SetBasicAuth(tc.user, tc.password)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		assert.Equal(t, tc.expected, resp.StatusCode, "%+v", tc)
		if tc.expected == http.StatusUnauthorized {
			assert.Equal(t, `Basic realm="VPN Admin"`, resp.Header.Get("WWW-Authenticate"))
			assert.Equal(t, "Authentication required", string(body))
		}
	}
	assert.Len(t, c.events, 1)
}

func TestBasicAuth_DisabledWithoutHash(t *testing.T) {
	auth := NewBasicAuth("admin", "")
	assert.False(t, auth.Enabled())
	assert.True(t, auth.Check(httptest.NewRequest(http.MethodGet, "/status", nil)))
}
