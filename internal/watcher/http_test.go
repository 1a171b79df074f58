package watcher_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/podping-watcher/internal/podping"
	"github.com/your-org/podping-watcher/internal/watcher"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	f := newFixture(t)
	h := watcher.NewHTTPHandler(f.svc, zap.NewNop(), 4096)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHTTP_Health(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_Accounts(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/accounts")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Accounts []string `json:"accounts"`
		Count    int      `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"podping", "podping.aaa"}, out.Accounts)
	assert.Equal(t, 2, out.Count)
}

func TestHTTP_Decode(t *testing.T) {
	srv := newServer(t)

	resp, out := post(t, srv, "/api/v1/decode", v1Record)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.0", out["version"])
	assert.Equal(t, "update", out["reason"])
	assert.Equal(t, "podcast", out["medium"])
	assert.Equal(t, "t1", out["transaction_id"])
	assert.Len(t, out["urls"], 2)
}

func TestHTTP_DecodeRejected(t *testing.T) {
	srv := newServer(t)

	resp, out := post(t, srv, "/api/v1/decode", untrustedRecord)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(podping.RejectUnauthorized), out["reason"])
}

func TestHTTP_DecodeBadRecord(t *testing.T) {
	srv := newServer(t)

	resp, out := post(t, srv, "/api/v1/decode", notCustomJSONTuple)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid operation record", out["error"])
}

func TestHTTP_DecodePayload(t *testing.T) {
	srv := newServer(t)

	resp, out := post(t, srv, "/api/v1/decode/payload", `{"version":"0.3","reason":"feed_update","urls":["https://a","ftp://b"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"https://a"}, out["urls"])

	resp, out = post(t, srv, "/api/v1/decode/payload", `{"version":"1.0","reason":"bogus","medium":"podcast","iris":["https://a"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, string(podping.RejectMalformed), out["reason"])
}

func TestHTTP_BodyTooLarge(t *testing.T) {
	srv := newServer(t)

	resp, _ := post(t, srv, "/api/v1/decode", `{"id":"podping","json":"`+strings.Repeat("x", 5000)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
