package protocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"slices"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil/gcs"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/corerpc/model"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// headerKeys must be present in every verbose header and block.
	headerKeys = []string{
		"hash", "confirmations", "height", "version", "versionHex",
		"merkleroot", "time", "mediantime", "nonce", "bits",
		"difficulty", "chainwork", "nTx",
	}

	// blockKeys must be present in every verbose block.
	blockKeys = []string{"strippedsize", "size", "weight", "tx"}

	coinbaseKeys = []string{"version", "locktime", "sequence", "coinbase"}

	filterKeys = []string{"filter", "header"}

	headerV29Keys = slices.Concat(headerKeys, []string{"target"})

	blockV28Keys = slices.Concat(headerKeys, blockKeys)

	blockV29Keys = slices.Concat(blockV28Keys, []string{"target"})

	blockV30Keys = slices.Concat(blockV29Keys, []string{"coinbase_tx"})
)

var jsonNull = []byte("null")

// decodeStrict decodes data into v. It rejects a null document, fields v does
// not declare, and required keys that are absent or null.
func decodeStrict(data []byte, v any, required ...string) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		return ErrNullResult
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}

	if len(required) == 0 {
		return nil
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return err
	}

	for _, key := range required {
		value, ok := present[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), jsonNull) {
			return fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}

	return nil
}

// headerFields are the fields shared by verbose headers and verbose blocks of
// every supported version.
type headerFields struct {
	Hash              string  `json:"hash"`
	Confirmations     int64   `json:"confirmations"`
	Height            int64   `json:"height"`
	Version           int32   `json:"version"`
	VersionHex        string  `json:"versionHex"`
	MerkleRoot        string  `json:"merkleroot"`
	Time              int64   `json:"time"`
	MedianTime        int64   `json:"mediantime"`
	Nonce             uint32  `json:"nonce"`
	Bits              string  `json:"bits"`
	Difficulty        float64 `json:"difficulty"`
	ChainWork         string  `json:"chainwork"`
	NTx               int64   `json:"nTx"`
	PreviousBlockHash string  `json:"previousblockhash,omitempty"`
	NextBlockHash     string  `json:"nextblockhash,omitempty"`
}

// blockFields are the fields only verbose blocks carry.
type blockFields struct {
	StrippedSize int64    `json:"strippedsize"`
	Size         int64    `json:"size"`
	Weight       int64    `json:"weight"`
	Tx           []string `json:"tx"`
}

// coinbaseFields is the coinbase transaction summary of a verbose block.
type coinbaseFields struct {
	Version  int32  `json:"version"`
	LockTime uint32 `json:"locktime"`
	Sequence uint32 `json:"sequence"`
	Coinbase string `json:"coinbase"`
	Witness  string `json:"witness,omitempty"`
}

// UnmarshalJSON decodes data and requires every non-witness field.
func (c *coinbaseFields) UnmarshalJSON(data []byte) error {
	type raw coinbaseFields
	return decodeStrict(data, (*raw)(c), coinbaseKeys...)
}

// filterFields is the result of getblockfilter.
type filterFields struct {
	Filter string `json:"filter"`
	Header string `json:"header"`
}

func newFieldError(field string, err error) error {
	return &fieldError{field: field, err: err}
}

// parseHash parses a hash in display order. Short strings are rejected
// rather than zero padded.
func parseHash(field, s string) (chainhash.Hash, error) {
	if s == "" {
		return chainhash.Hash{}, newFieldError(field, ErrMissingField)
	}

	if len(s) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, newFieldError(field, fmt.Errorf(
			"%w: got %d", ErrHashLength, len(s),
		))
	}

	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, newFieldError(field, err)
	}

	return *hash, nil
}

// parseOptionalHash parses a hash that may be absent.
func parseOptionalHash(field, s string) (fn.Option[chainhash.Hash], error) {
	if s == "" {
		return fn.None[chainhash.Hash](), nil
	}

	hash, err := parseHash(field, s)
	if err != nil {
		return fn.None[chainhash.Hash](), err
	}

	return fn.Some(hash), nil
}

// parseBig parses a non-empty hex encoded unsigned integer.
func parseBig(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, newFieldError(field, ErrMissingField)
	}

	n, ok := new(big.Int).SetString(s, 16)
	if !ok || n.Sign() < 0 {
		return nil, newFieldError(field, fmt.Errorf("invalid hex "+
			"number %q", s))
	}

	return n, nil
}

// toUint32 narrows a reported count to uint32.
func toUint32(field string, n int64) (uint32, error) {
	if n < 0 || n > math.MaxUint32 {
		return 0, newFieldError(field, fmt.Errorf("%w: %d",
			ErrOutOfRange, n))
	}

	return uint32(n), nil
}

// toModel performs the checks shared by every version. The target is derived
// from bits here; versions that report it verify it with checkTarget.
func (h *headerFields) toModel() (*model.BlockHeaderVerbose, error) {
	hash, err := parseHash("hash", h.Hash)
	if err != nil {
		return nil, err
	}

	merkleRoot, err := parseHash("merkleroot", h.MerkleRoot)
	if err != nil {
		return nil, err
	}

	prev, err := parseOptionalHash("previousblockhash", h.PreviousBlockHash)
	if err != nil {
		return nil, err
	}

	next, err := parseOptionalHash("nextblockhash", h.NextBlockHash)
	if err != nil {
		return nil, err
	}

	height, err := toUint32("height", h.Height)
	if err != nil {
		return nil, err
	}

	nTx, err := toUint32("nTx", h.NTx)
	if err != nil {
		return nil, err
	}

	if h.VersionHex == "" {
		return nil, newFieldError("versionHex", ErrMissingField)
	}
	if h.VersionHex != fmt.Sprintf("%08x", uint32(h.Version)) {
		return nil, newFieldError("versionHex", fmt.Errorf(
			"%w: %s != %d", ErrVersionHexMismatch, h.VersionHex,
			h.Version,
		))
	}

	if h.Bits == "" {
		return nil, newFieldError("bits", ErrMissingField)
	}
	bits, err := strconv.ParseUint(h.Bits, 16, 32)
	if err != nil {
		return nil, newFieldError("bits", err)
	}

	chainWork, err := parseBig("chainwork", h.ChainWork)
	if err != nil {
		return nil, err
	}

	return &model.BlockHeaderVerbose{
		Hash:              hash,
		Confirmations:     h.Confirmations,
		Height:            height,
		Version:           h.Version,
		MerkleRoot:        merkleRoot,
		Time:              time.Unix(h.Time, 0),
		MedianTime:        time.Unix(h.MedianTime, 0),
		Nonce:             h.Nonce,
		Bits:              uint32(bits),
		Target:            blockchain.CompactToBig(uint32(bits)),
		Difficulty:        h.Difficulty,
		ChainWork:         chainWork,
		NTx:               nTx,
		PreviousBlockHash: prev,
		NextBlockHash:     next,
	}, nil
}

// checkTarget asserts that a reported target is the expansion of bits.
func checkTarget(header *model.BlockHeaderVerbose, target string) error {
	reported, err := parseBig("target", target)
	if err != nil {
		return err
	}

	if reported.Cmp(header.Target) != 0 {
		return newFieldError("target", fmt.Errorf("%w: target %064x, "+
			"bits %08x", ErrTargetMismatch, reported, header.Bits))
	}

	return nil
}

// toModel converts the block specific fields on top of header.
func (b *blockFields) toModel(
	header *model.BlockHeaderVerbose) (*model.BlockVerboseOne, error) {

	strippedSize, err := toUint32("strippedsize", b.StrippedSize)
	if err != nil {
		return nil, err
	}

	size, err := toUint32("size", b.Size)
	if err != nil {
		return nil, err
	}

	if b.Weight < 0 {
		return nil, newFieldError("weight", fmt.Errorf("%w: %d",
			ErrOutOfRange, b.Weight))
	}

	if b.Tx == nil {
		return nil, newFieldError("tx", ErrMissingField)
	}

	if int64(len(b.Tx)) != int64(header.NTx) {
		return nil, newFieldError("nTx", fmt.Errorf("%w: nTx %d, "+
			"%d txids", ErrTxCountMismatch, header.NTx, len(b.Tx)))
	}

	txids := make([]chainhash.Hash, 0, len(b.Tx))
	for i, tx := range b.Tx {
		txid, err := parseHash(fmt.Sprintf("tx[%d]", i), tx)
		if err != nil {
			return nil, err
		}

		txids = append(txids, txid)
	}

	return &model.BlockVerboseOne{
		BlockHeaderVerbose: *header,
		StrippedSize:       strippedSize,
		Size:               size,
		Weight:             uint64(b.Weight),
		Tx:                 txids,
	}, nil
}

// toModel converts the coinbase summary.
func (c *coinbaseFields) toModel() (model.CoinbaseTx, error) {
	coinbase, err := hex.DecodeString(c.Coinbase)
	if err != nil {
		return model.CoinbaseTx{}, newFieldError(
			"coinbase_tx.coinbase", err,
		)
	}

	witness := fn.None[[]byte]()
	if c.Witness != "" {
		w, err := hex.DecodeString(c.Witness)
		if err != nil {
			return model.CoinbaseTx{}, newFieldError(
				"coinbase_tx.witness", err,
			)
		}

		witness = fn.Some(w)
	}

	return model.CoinbaseTx{
		Version:  c.Version,
		LockTime: c.LockTime,
		Sequence: c.Sequence,
		Coinbase: coinbase,
		Witness:  witness,
	}, nil
}

// toModel decodes the filter with the BIP 158 basic filter parameters.
func (f *filterFields) toModel(
	blockHash chainhash.Hash) (*model.BlockFilter, error) {

	if f.Filter == "" {
		return nil, newFieldError("filter", ErrMissingField)
	}

	raw, err := hex.DecodeString(f.Filter)
	if err != nil {
		return nil, newFieldError("filter", err)
	}

	filter, err := gcs.FromNBytes(builder.DefaultP, builder.DefaultM, raw)
	if err != nil {
		return nil, newFieldError("filter", err)
	}

	header, err := parseHash("header", f.Header)
	if err != nil {
		return nil, err
	}

	return &model.BlockFilter{
		BlockHash: blockHash,
		Filter:    filter,
		Header:    header,
	}, nil
}
