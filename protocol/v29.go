package protocol

import (
	"github.com/lightningnetwork/corerpc/model"
)

// HeaderV29 is the verbose getblockheader result of bitcoind 29 and later.
type HeaderV29 struct {
	headerFields

	Target string `json:"target"`
}

// UnmarshalJSON decodes data and rejects unknown or missing fields.
func (h *HeaderV29) UnmarshalJSON(data []byte) error {
	type raw HeaderV29
	return decodeStrict(data, (*raw)(h), headerV29Keys...)
}

// ToModel converts the header. The reported target must match bits.
func (h *HeaderV29) ToModel() (*model.BlockHeaderVerbose, error) {
	header, err := h.headerFields.toModel()
	if err != nil {
		return nil, newBlockHeaderVerboseError(err)
	}

	if err := checkTarget(header, h.Target); err != nil {
		return nil, newBlockHeaderVerboseError(err)
	}

	return header, nil
}

// BlockV29 is the getblock verbosity 1 result of bitcoind 29.
type BlockV29 struct {
	headerFields
	blockFields

	Target string `json:"target"`
}

// UnmarshalJSON decodes data and rejects unknown or missing fields.
func (b *BlockV29) UnmarshalJSON(data []byte) error {
	type raw BlockV29
	return decodeStrict(data, (*raw)(b), blockV29Keys...)
}

// ToModel converts the block. The reported target must match bits.
func (b *BlockV29) ToModel() (*model.BlockVerboseOne, error) {
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

	return block, nil
}

// modelerV29 produces bitcoind 29 shapes.
type modelerV29 struct{}

func (modelerV29) Version() Version {
	return V29
}

func (modelerV29) NewBlockHeaderVerbose() HeaderShape {
	return &HeaderV29{}
}

func (modelerV29) NewBlockVerboseOne() BlockShape {
	return &BlockV29{}
}

func (modelerV29) NewBlockFilter() FilterShape {
	return &BlockFilter{}
}
