//go:build integration

package itest

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/corerpc"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/stretchr/testify/require"
)

// testChainTip checks the tip queries agree with each other.
func testChainTip(h *harness) {
	best, err := h.client.GetBestBlockHash(h.ctx)
	require.NoError(h, err)

	count, err := h.client.GetBlockCount(h.ctx)
	require.NoError(h, err)

	hash, err := h.client.GetBlockHash(h.ctx, count)
	require.NoError(h, err)
	require.Equal(h, best, hash)

	header, err := h.client.GetBlockHeaderVerbose(h.ctx, best)
	require.NoError(h, err)
	require.Equal(h, count, header.Height)
	require.True(h, header.NextBlockHash.IsNone())
}

// mineBlock mines a block to a fresh wallet address and returns its hash.
func mineBlock(h *harness) *chainhash.Hash {
	addr, err := corerpc.Call[string](h.ctx, h.client, "getnewaddress")
	h.skipIfRPCError(err, "wallet")
	require.NoError(h, err)

	hashes, err := corerpc.Call[[]string](
		h.ctx, h.client, "generatetoaddress", 1, addr,
	)
	require.NoError(h, err)
	require.Len(h, hashes, 1)

	hash, err := chainhash.NewHashFromStr(hashes[0])
	require.NoError(h, err)

	return hash
}

// testMineAndQuery mines a block and checks every representation of it.
func testMineAndQuery(h *harness) {
	hash := mineBlock(h)

	block, err := h.client.GetBlock(h.ctx, hash)
	require.NoError(h, err)
	require.Equal(h, *hash, block.BlockHash())

	header, err := h.client.GetBlockHeader(h.ctx, hash)
	require.NoError(h, err)
	require.Equal(h, block.Header, *header)

	verbose, err := h.client.GetBlockVerbose(h.ctx, hash)
	require.NoError(h, err)
	require.Equal(h, *hash, verbose.Hash)
	require.EqualValues(h, len(block.Transactions), verbose.NTx)
	require.Len(h, verbose.Tx, len(block.Transactions))
	require.Equal(h, block.Transactions[0].TxHash(), verbose.Tx[0])
	require.Equal(h, block.Header, verbose.WireHeader())
	require.EqualValues(
		h, blockchain.GetBlockWeight(btcutil.NewBlock(block)),
		verbose.Weight,
	)
	require.Equal(
		h, h.client.Version() >= protocol.V30,
		verbose.CoinbaseTx.IsSome(),
	)
	require.Equal(
		h, blockchain.CompactToBig(block.Header.Bits), verbose.Target,
	)

	count, err := h.client.GetBlockCount(h.ctx)
	require.NoError(h, err)
	require.Equal(h, count, verbose.Height)
}

// testBlockFilter checks the filter of a mined block chains onto the filter
// of its parent.
func testBlockFilter(h *harness) {
	hash := mineBlock(h)

	filter, err := h.client.GetBlockFilter(h.ctx, hash)
	h.skipIfRPCError(err, "blockfilterindex")
	require.NoError(h, err)
	require.Equal(h, *hash, filter.BlockHash)
	require.NotZero(h, filter.N())

	header, err := h.client.GetBlockHeaderVerbose(h.ctx, hash)
	require.NoError(h, err)

	prevHash, err := header.PreviousBlockHash.UnwrapOrErr(
		errNoPrevious,
	)
	require.NoError(h, err)

	prev, err := h.client.GetBlockFilter(h.ctx, &prevHash)
	require.NoError(h, err)

	ok, err := filter.VerifyHeader(prev.Header)
	require.NoError(h, err)
	require.True(h, ok)
}
