package jsonrpc

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/bridge"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
)

func TestClient_Call(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer())
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)

	var params bridge.ParamsResponse
	require.NoError(t, client.Call(context.Background(), "bridge_params", &params))
	require.NotEmpty(t, params.IbcElyDenom)

	var batches []*types.OutgoingBatch
	require.NoError(t, client.Call(context.Background(), "bridge_batches", &batches, "Nonce == 3"))
	require.Len(t, batches, 1)
	require.Equal(t, tokenA, batches[0].TokenContract)

	var balance string
	require.NoError(t, client.Call(context.Background(), "bridge_balance", &balance, alice, "stake"))
	require.Equal(t, "250", balance)
}

func TestClient_CallError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newTestServer())
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL)

	err := client.Call(context.Background(), "bridge_revertedVoucher", nil, 5)

	var objErr *ObjectError
	require.True(t, errors.As(err, &objErr))
	require.Equal(t, bridgeErrorCode, objErr.Code)

	err = client.Call(context.Background(), "bridge_unknown", nil)
	require.True(t, errors.As(err, &objErr))
	require.Equal(t, methodNotFoundCode, objErr.Code)
}
