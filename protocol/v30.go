package protocol

import (
	"github.com/lightningnetwork/corerpc/model"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// BlockV30 is the getblock verbosity 1 result of bitcoind 30. It extends the
// bitcoind 29 result with a coinbase transaction summary.
type BlockV30 struct {
	headerFields
	blockFields

	Target     string          `json:"target"`
	CoinbaseTx *coinbaseFields `json:"coinbase_tx"`
}

// UnmarshalJSON decodes data and rejects unknown or missing fields.
func (b *BlockV30) UnmarshalJSON(data []byte) error {
	type raw BlockV30
	return decodeStrict(data, (*raw)(b), blockV30Keys...)
}

// ToModel converts the block. The reported target must match bits and the
// coinbase summary must be present.
func (b *BlockV30) ToModel() (*model.BlockVerboseOne, error) {
	header, err := b.headerFields.toModel()
	if err != nil {
		return nil, newBlockVerboseOneError(err)
	}

	if err := checkTarget(header, b.Target); err != nil {
		return nil, newBlockVerboseOneError(err)
	}

	block, err := b.blockFields.toModel(header)
	if err != nil {
		return nil, newBlockVerboseOneError(err)
	}

	if b.CoinbaseTx == nil {
		return nil, newBlockVerboseOneError(
			newFieldError("coinbase_tx", ErrMissingField),
		)
	}

	coinbase, err := b.CoinbaseTx.toModel()
	if err != nil {
		return nil, newBlockVerboseOneError(err)
	}
	block.CoinbaseTx = fn.Some(coinbase)

	return block, nil
}

// modelerV30 produces bitcoind 30 shapes. Headers and filters are unchanged
// since bitcoind 29.
type modelerV30 struct{}

func (modelerV30) Version() Version {
	return V30
}

func (modelerV30) NewBlockHeaderVerbose() HeaderShape {
	return &HeaderV29{}
}

func (modelerV30) NewBlockVerboseOne() BlockShape {
	return &BlockV30{}
}

func (modelerV30) NewBlockFilter() FilterShape {
	return &BlockFilter{}
}
