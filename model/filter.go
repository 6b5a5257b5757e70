package model

import (
	"github.com/btcsuite/btcd/btcutil/gcs"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// BlockFilter is a decoded BIP 158 basic filter together with its filter
// header.
type BlockFilter struct {
	// BlockHash is the hash of the block the filter commits to. The
	// filter's SipHash key is derived from it.
	BlockHash chainhash.Hash

	// Filter is the Golomb-coded set.
	Filter *gcs.Filter

	// Header is the filter header.
	Header chainhash.Hash
}

// N returns the number of elements in the filter.
func (f *BlockFilter) N() uint32 {
	return f.Filter.N()
}

// Bytes returns the serialized filter, prefixed with its element count.
func (f *BlockFilter) Bytes() ([]byte, error) {
	return f.Filter.NBytes()
}

// Match reports whether data is probably a member of the filter.
func (f *BlockFilter) Match(data []byte) (bool, error) {
	key := builder.DeriveKey(&f.BlockHash)

	return f.Filter.Match(key, data)
}

// MatchAny reports whether any of data is probably a member of the filter.
func (f *BlockFilter) MatchAny(data [][]byte) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}

	key := builder.DeriveKey(&f.BlockHash)

	return f.Filter.MatchAny(key, data)
}

// VerifyHeader checks that Header commits to the filter on top of prevHeader.
func (f *BlockFilter) VerifyHeader(prevHeader chainhash.Hash) (bool, error) {
	header, err := builder.MakeHeaderForFilter(f.Filter, prevHeader)
	if err != nil {
		return false, err
	}

	return header == f.Header, nil
}
