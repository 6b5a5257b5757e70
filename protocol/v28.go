package protocol

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/corerpc/model"
)

// HeaderV28 is the verbose getblockheader result of bitcoind 28.
type HeaderV28 struct {
	headerFields
}

// UnmarshalJSON decodes data and rejects unknown or missing fields.
func (h *HeaderV28) UnmarshalJSON(data []byte) error {
	type raw HeaderV28
	return decodeStrict(data, (*raw)(h), headerKeys...)
}

// ToModel converts the header. The target is derived from bits.
func (h *HeaderV28) ToModel() (*model.BlockHeaderVerbose, error) {
	header, err := h.headerFields.toModel()
	if err != nil {
		return nil, newBlockHeaderVerboseError(err)
	}

	return header, nil
}

// BlockV28 is the getblock verbosity 1 result of bitcoind 28.
type BlockV28 struct {
	headerFields
	blockFields
}

// UnmarshalJSON decodes data and rejects unknown or missing fields.
func (b *BlockV28) UnmarshalJSON(data []byte) error {
	type raw BlockV28
	return decodeStrict(data, (*raw)(b), blockV28Keys...)
}

// ToModel converts the block. The target is derived from bits.
func (b *BlockV28) ToModel() (*model.BlockVerboseOne, error) {
	header, err := b.headerFields.toModel()
	if err != nil {
		return nil, newBlockVerboseOneError(err)
	}

	block, err := b.blockFields.toModel(header)
	if err != nil {
		return nil, newBlockVerboseOneError(err)
	}

	return block, nil
}

// BlockFilter is the getblockfilter result. Its shape is the same in every
// supported version.
type BlockFilter struct {
	filterFields
}

// UnmarshalJSON decodes data and rejects unknown or missing fields.
func (f *BlockFilter) UnmarshalJSON(data []byte) error {
	type raw BlockFilter
	return decodeStrict(data, (*raw)(f), filterKeys...)
}

// ToModel decodes the filter of the block with the given hash.
func (f *BlockFilter) ToModel(
	blockHash chainhash.Hash) (*model.BlockFilter, error) {

	filter, err := f.filterFields.toModel(blockHash)
	if err != nil {
		return nil, newBlockFilterError(err)
	}

	return filter, nil
}

// modelerV28 produces bitcoind 28 shapes.
type modelerV28 struct{}

func (modelerV28) Version() Version {
	return V28
}

func (modelerV28) NewBlockHeaderVerbose() HeaderShape {
	return &HeaderV28{}
}

func (modelerV28) NewBlockVerboseOne() BlockShape {
	return &BlockV28{}
}

func (modelerV28) NewBlockFilter() FilterShape {
	return &BlockFilter{}
}
