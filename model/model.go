// Package model holds the version independent results of the verbose RPC
// calls. Values are produced by the protocol package and carry no reference
// back to the client that fetched them.
package model

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BlockHeaderVerbose is the decoded result of a verbose getblockheader call.
type BlockHeaderVerbose struct {
	// Hash is the hash of the block.
	Hash chainhash.Hash

	// Confirmations is the number of confirmations, or -1 if the block is
	// not on the main chain.
	Confirmations int64

	// Height is the height of the block.
	Height uint32

	// Version is the block version.
	Version int32

	// MerkleRoot is the merkle root of the block's transactions.
	MerkleRoot chainhash.Hash

	// Time is the block timestamp.
	Time time.Time

	// MedianTime is the median time past of the block.
	MedianTime time.Time

	// Nonce is the proof of work nonce.
	Nonce uint32

	// Bits is the compact encoding of Target.
	Bits uint32

	// Target is the proof of work target. Nodes that do not report it
	// have it derived from Bits.
	Target *big.Int

	// Difficulty is the difficulty as reported by the node.
	Difficulty float64

	// ChainWork is the expected number of hashes required to produce the
	// chain up to and including this block.
	ChainWork *big.Int

	// NTx is the number of transactions in the block.
	NTx uint32

	// PreviousBlockHash is the hash of the parent, absent for genesis.
	PreviousBlockHash fn.Option[chainhash.Hash]

	// NextBlockHash is the hash of the next block on the main chain,
	// absent for the tip.
	NextBlockHash fn.Option[chainhash.Hash]
}

// WireHeader rebuilds the consensus header described by the verbose result.
func (h *BlockHeaderVerbose) WireHeader() *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    h.Version,
		PrevBlock:  h.PreviousBlockHash.UnwrapOr(chainhash.Hash{}),
		MerkleRoot: h.MerkleRoot,
		Timestamp:  h.Time,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
}

// CoinbaseTx summarises the coinbase transaction of a block.
type CoinbaseTx struct {
	// Version is the transaction version.
	Version int32

	// LockTime is the transaction lock time.
	LockTime uint32

	// Sequence is the sequence number of the coinbase input.
	Sequence uint32

	// Coinbase is the script of the coinbase input.
	Coinbase []byte

	// Witness is the witness of the coinbase input, if any.
	Witness fn.Option[[]byte]
}

// BlockVerboseOne is the decoded result of getblock with verbosity 1.
type BlockVerboseOne struct {
	BlockHeaderVerbose

	// StrippedSize is the block size excluding witness data.
	StrippedSize uint32

	// Size is the serialized block size.
	Size uint32

	// Weight is the block weight as defined in BIP 141.
	Weight uint64

	// Tx lists the ids of the block's transactions in block order.
	Tx []chainhash.Hash

	// CoinbaseTx is only reported by nodes that include it in verbose
	// blocks.
	CoinbaseTx fn.Option[CoinbaseTx]
}
