package model

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// TestWireHeader asserts that the verbose genesis header rebuilds into the
// consensus header with the genesis hash.
func TestWireHeader(t *testing.T) {
	t.Parallel()

	params := chaincfg.RegressionNetParams
	genesis := params.GenesisBlock.Header

	verbose := &BlockHeaderVerbose{
		Hash:       *params.GenesisHash,
		Version:    genesis.Version,
		MerkleRoot: genesis.MerkleRoot,
		Time:       genesis.Timestamp,
		MedianTime: genesis.Timestamp,
		Nonce:      genesis.Nonce,
		Bits:       genesis.Bits,
		Target:     blockchain.CompactToBig(genesis.Bits),
		ChainWork:  big.NewInt(2),
		NTx:        1,
	}

	header := verbose.WireHeader()
	require.Equal(t, *params.GenesisHash, header.BlockHash())
	require.Equal(t, chainhash.Hash{}, header.PrevBlock)

	verbose.PreviousBlockHash = fn.Some(*params.GenesisHash)
	require.Equal(t, *params.GenesisHash, verbose.WireHeader().PrevBlock)
}

// TestBlockFilter builds the basic filter of the regtest genesis block and
// checks matching and header verification.
func TestBlockFilter(t *testing.T) {
	t.Parallel()

	params := chaincfg.RegressionNetParams
	genesis := params.GenesisBlock

	gcsFilter, err := builder.BuildBasicFilter(genesis, nil)
	require.NoError(t, err)

	header, err := builder.MakeHeaderForFilter(gcsFilter, chainhash.Hash{})
	require.NoError(t, err)

	filter := &BlockFilter{
		BlockHash: *params.GenesisHash,
		Filter:    gcsFilter,
		Header:    header,
	}
	require.EqualValues(t, 1, filter.N())

	raw, err := filter.Bytes()
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	pkScript := genesis.Transactions[0].TxOut[0].PkScript
	match, err := filter.Match(pkScript)
	require.NoError(t, err)
	require.True(t, match)

	match, err = filter.MatchAny([][]byte{{0x6a, 0x01}, pkScript})
	require.NoError(t, err)
	require.True(t, match)

	match, err = filter.MatchAny(nil)
	require.NoError(t, err)
	require.False(t, match)

	// The same filter keyed by another block hash does not match.
	other := *filter
	other.BlockHash = chainhash.DoubleHashH([]byte("other"))
	match, err = other.Match(pkScript)
	require.NoError(t, err)
	require.False(t, match)

	ok, err := filter.VerifyHeader(chainhash.Hash{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = filter.VerifyHeader(chainhash.Hash{0x01})
	require.NoError(t, err)
	require.False(t, ok)
}
