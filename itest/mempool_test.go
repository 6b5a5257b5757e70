//go:build integration

package itest

import (
	"errors"

	"github.com/lightningnetwork/corerpc"
	"github.com/lightningnetwork/corerpc/rpcerr"
	"github.com/stretchr/testify/require"
)

var errNoPrevious = errors.New("block has no previous block")

// testMempool sends a wallet transaction and finds it in the mempool.
func testMempool(h *harness) {
	// Coinbase outputs need 100 confirmations before they can be spent.
	addr, err := corerpc.Call[string](h.ctx, h.client, "getnewaddress")
	h.skipIfRPCError(err, "wallet")
	require.NoError(h, err)

	_, err = corerpc.Call[[]string](
		h.ctx, h.client, "generatetoaddress", 101, addr,
	)
	require.NoError(h, err)

	txidStr, err := corerpc.Call[string](
		h.ctx, h.client, "sendtoaddress", addr, 1,
	)
	require.NoError(h, err)

	txids, err := h.client.GetRawMempool(h.ctx)
	require.NoError(h, err)

	var found bool
	for i := range txids {
		if txids[i].String() != txidStr {
			continue
		}
		found = true

		tx, err := h.client.GetRawTransaction(h.ctx, &txids[i])
		require.NoError(h, err)
		require.Equal(h, txids[i], tx.TxHash())
	}
	require.True(h, found, "sent transaction not in mempool")
}

// testUnknownMethod checks errors of the node are surfaced with their code.
func testUnknownMethod(h *harness) {
	_, err := corerpc.Call[any](h.ctx, h.client, "nosuchmethod")
	require.Error(h, err)

	rpcErr, ok := rpcerr.AsRPCError(err)
	require.True(h, ok)
	require.EqualValues(h, -32601, rpcErr.Code)
	require.Equal(h, rpcerr.KindJSONRPC, rpcerr.KindOf(err))
}
