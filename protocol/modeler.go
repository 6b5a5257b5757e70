package protocol

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/corerpc/model"
)

// HeaderShape is a raw verbose getblockheader result.
type HeaderShape interface {
	// ToModel converts the raw result. Failures are returned as
	// *BlockHeaderVerboseError.
	ToModel() (*model.BlockHeaderVerbose, error)
}

// BlockShape is a raw getblock result with verbosity 1.
type BlockShape interface {
	// ToModel converts the raw result. Failures are returned as
	// *BlockVerboseOneError.
	ToModel() (*model.BlockVerboseOne, error)
}

// FilterShape is a raw getblockfilter result.
type FilterShape interface {
	// ToModel converts the raw result of the filter for blockHash.
	// Failures are returned as *BlockFilterError.
	ToModel(blockHash chainhash.Hash) (*model.BlockFilter, error)
}

// Modeler hands out empty raw shapes of one version. The shapes are pointers
// meant to be filled by json.Unmarshal. Unknown fields are rejected during
// decoding, so a result of another version fails there.
type Modeler interface {
	// Version returns the version whose shapes are produced.
	Version() Version

	// NewBlockHeaderVerbose returns an empty verbose header shape.
	NewBlockHeaderVerbose() HeaderShape

	// NewBlockVerboseOne returns an empty verbose block shape.
	NewBlockVerboseOne() BlockShape

	// NewBlockFilter returns an empty block filter shape.
	NewBlockFilter() FilterShape
}

// ForVersion returns the modeler of v.
func ForVersion(v Version) (Modeler, error) {
	switch v {
	case V28:
		return modelerV28{}, nil

	case V29:
		return modelerV29{}, nil

	case V30:
		return modelerV30{}, nil

	default:
		return nil, fmt.Errorf("unsupported protocol version %v", v)
	}
}
