package jsonrpc

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

type rawResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Result  interface{}  `json:"result"`
	Error   *ObjectError `json:"error"`
}

func call(t *testing.T, srv *Server, body string) *rawResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	var resp rawResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, "2.0", resp.JSONRPC)

	return &resp
}

func newTestServer() *Server {
	return NewServer(newTestEndpoint(newTestStore()), hclog.NewNullLogger())
}

func TestServer_Dispatch(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	resp := call(t, srv, `{"jsonrpc":"2.0","id":1,"method":"bridge_params"}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, float64(1), resp.ID)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, result, "ibcElyDenom")

	resp = call(t, srv, `{"jsonrpc":"2.0","id":"a","method":"bridge_batches","params":["Nonce == 2"]}`)
	require.Nil(t, resp.Error)

	batches, ok := resp.Result.([]interface{})
	require.True(t, ok)
	require.Len(t, batches, 1)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":2,"method":"bridge_balance","params":["`+alice.String()+`","stake"]}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, "250", resp.Result)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":3,"method":"bridge_lastRevertedNonce","params":[]}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, float64(0), resp.Result)

	resp = call(t, srv, `{"jsonrpc":"2.0","id":4,"method":"bridge_lastExternalHeight","params":[]}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, float64(1042), resp.Result)
}

func TestServer_Errors(t *testing.T) {
	t.Parallel()

	srv := newTestServer()

	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "parse error", body: `{"jsonrpc":`, code: parseErrorCode},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"bridge_params"}`, code: invalidRequestCode},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`, code: methodNotFoundCode},
		{name: "missing param", body: `{"jsonrpc":"2.0","id":1,"method":"bridge_revertedVoucher"}`, code: invalidParamsCode},
		{name: "too many params", body: `{"jsonrpc":"2.0","id":1,"method":"bridge_params","params":[1]}`, code: invalidParamsCode},
		{name: "bad param type", body: `{"jsonrpc":"2.0","id":1,"method":"bridge_revertedVoucher","params":["x"]}`, code: invalidParamsCode},
		{name: "not found", body: `{"jsonrpc":"2.0","id":1,"method":"bridge_revertedVoucher","params":[9]}`, code: bridgeErrorCode},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			resp := call(t, srv, c.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, c.code, resp.Error.Code)
			assert.Nil(t, resp.Result)
		})
	}
}

func TestServer_ResultCodeInErrorData(t *testing.T) {
	t.Parallel()

	resp := call(t, newTestServer(), `{"jsonrpc":"2.0","id":1,"method":"bridge_contractByDenom","params":["unknown"]}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, float64(types.ResultCode(types.ErrMappingNotFound)), resp.Error.Data)
}

func TestServer_RejectsGet(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	newTestServer().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
