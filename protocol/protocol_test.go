package protocol

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/corerpc/model"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	genesisHash = "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a" +
		"11466e2206"
	genesisMerkle = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127" +
		"b7afdeda33b"
	regtestTarget = "7fffff000000000000000000000000000000000000000000000" +
		"0000000000000"
	nextHash = "3c1fd9b1e3ed3b59ae6ed8e6ea0e4bda37bf07d4e6bc7fdb5c73f4e" +
		"1d1a4b3a1"
)

// genesisHeader returns the fields of the regtest genesis header as bitcoind
// 28 reports them.
func genesisHeader() map[string]any {
	return map[string]any{
		"hash":          genesisHash,
		"confirmations": 2,
		"height":        0,
		"version":       1,
		"versionHex":    "00000001",
		"merkleroot":    genesisMerkle,
		"time":          1296688602,
		"mediantime":    1296688602,
		"nonce":         2,
		"bits":          "207fffff",
		"difficulty":    4.656542373906925e-10,
		"chainwork": "0000000000000000000000000000000000000000000000" +
			"000000000000000002",
		"nTx":           1,
		"nextblockhash": nextHash,
	}
}

// genesisBlock returns the regtest genesis block in the given version.
func genesisBlock(v Version) map[string]any {
	block := genesisHeader()
	block["strippedsize"] = 285
	block["size"] = 285
	block["weight"] = 1140
	block["tx"] = []string{genesisMerkle}

	if v >= V29 {
		block["target"] = regtestTarget
	}
	if v >= V30 {
		block["coinbase_tx"] = map[string]any{
			"version":  1,
			"locktime": 0,
			"sequence": 4294967295,
			"coinbase": "04ffff001d0104",
		}
	}

	return block
}

func withTarget(m map[string]any) map[string]any {
	m["target"] = regtestTarget
	return m
}

func mustJSON(t require.TestingT, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)

	return b
}

// TestParseVersion covers the accepted spellings.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		version Version
		err     bool
	}{
		{in: "28", version: V28},
		{in: "v29", version: V29},
		{in: "V30", version: V30},
		{in: "29.0", version: V29},
		{in: " 30.1 ", version: V30},
		{in: "27", err: true},
		{in: "31", err: true},
		{in: "", err: true},
		{in: "latest", err: true},
	}

	for _, test := range tests {
		v, err := ParseVersion(test.in)
		if test.err {
			require.Error(t, err, test.in)
			continue
		}

		require.NoError(t, err, test.in)
		require.Equal(t, test.version, v)
		require.Equal(t, fmt.Sprintf("v%d", test.version), v.String())
	}
}

// TestFromNodeVersion maps getnetworkinfo versions to tags.
func TestFromNodeVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		node    uint32
		version Version
		err     bool
	}{
		{node: 280000, version: V28},
		{node: 280200, version: V28},
		{node: 290100, version: V29},
		{node: 300000, version: V30},
		{node: 310000, version: Latest},
		{node: 270100, err: true},
		{node: 0, err: true},
	}

	for _, test := range tests {
		v, err := FromNodeVersion(test.node)
		if test.err {
			require.Error(t, err)
			continue
		}

		require.NoError(t, err)
		require.Equal(t, test.version, v)
	}
}

// TestForVersion asserts each tag selects its own modeler.
func TestForVersion(t *testing.T) {
	t.Parallel()

	for _, v := range Versions() {
		m, err := ForVersion(v)
		require.NoError(t, err)
		require.Equal(t, v, m.Version())
	}

	_, err := ForVersion(Version(27))
	require.Error(t, err)
}

// TestHeaderConversion decodes the genesis header with every modeler.
func TestHeaderConversion(t *testing.T) {
	t.Parallel()

	for _, v := range Versions() {
		t.Run(v.String(), func(t *testing.T) {
			m, err := ForVersion(v)
			require.NoError(t, err)

			raw := genesisHeader()
			if v >= V29 {
				raw = withTarget(raw)
			}

			shape := m.NewBlockHeaderVerbose()
			require.NoError(t, json.Unmarshal(mustJSON(t, raw), shape))

			header, err := shape.ToModel()
			require.NoError(t, err)

			params := chaincfg.RegressionNetParams
			require.Equal(t, *params.GenesisHash, header.Hash)
			require.Equal(t, *params.GenesisHash,
				header.WireHeader().BlockHash())
			require.EqualValues(t, 0, header.Height)
			require.EqualValues(t, 0x207fffff, header.Bits)
			require.Equal(t, regtestTarget,
				fmt.Sprintf("%064x", header.Target))
			require.EqualValues(t, 2, header.ChainWork.Int64())
			require.EqualValues(t, 1296688602, header.Time.Unix())
			require.True(t, header.PreviousBlockHash.IsNone())
			require.Equal(t, nextHash, header.NextBlockHash.UnwrapOr(
				chainhash.Hash{},
			).String())
		})
	}
}

// TestBlockConversion decodes the genesis block with every modeler.
func TestBlockConversion(t *testing.T) {
	t.Parallel()

	for _, v := range Versions() {
		t.Run(v.String(), func(t *testing.T) {
			m, err := ForVersion(v)
			require.NoError(t, err)

			shape := m.NewBlockVerboseOne()
			require.NoError(t, json.Unmarshal(
				mustJSON(t, genesisBlock(v)), shape,
			))

			block, err := shape.ToModel()
			require.NoError(t, err)
			require.Equal(t, genesisHash, block.Hash.String())
			require.Len(t, block.Tx, 1)
			require.Equal(t, genesisMerkle, block.Tx[0].String())
			require.EqualValues(t, 1140, block.Weight)
			require.Equal(t, v >= V30, block.CoinbaseTx.IsSome())

			block.CoinbaseTx.WhenSome(func(cb model.CoinbaseTx) {
				require.EqualValues(t, 0xffffffff, cb.Sequence)
				require.Equal(t, "04ffff001d0104",
					hex.EncodeToString(cb.Coinbase))
				require.True(t, cb.Witness.IsNone())
			})
		})
	}
}

// TestVersionMismatch asserts that a result of a neighbouring version fails
// to decode.
func TestVersionMismatch(t *testing.T) {
	t.Parallel()

	m28, _ := ForVersion(V28)
	m29, _ := ForVersion(V29)
	m30, _ := ForVersion(V30)

	// A v29 header decoded by a v28 client has an unknown field.
	err := json.Unmarshal(
		mustJSON(t, withTarget(genesisHeader())),
		m28.NewBlockHeaderVerbose(),
	)
	require.ErrorContains(t, err, "unknown field")

	// A v28 header decoded by a v29 client lacks the target.
	err = json.Unmarshal(
		mustJSON(t, genesisHeader()), m29.NewBlockHeaderVerbose(),
	)
	require.ErrorIs(t, err, ErrMissingField)
	require.ErrorContains(t, err, "target")

	// A v30 block decoded by a v29 client has an unknown field.
	err = json.Unmarshal(
		mustJSON(t, genesisBlock(V30)), m29.NewBlockVerboseOne(),
	)
	require.ErrorContains(t, err, "unknown field")

	// A v29 block decoded by a v30 client lacks the coinbase summary.
	err = json.Unmarshal(
		mustJSON(t, genesisBlock(V29)), m30.NewBlockVerboseOne(),
	)
	require.ErrorIs(t, err, ErrMissingField)
	require.ErrorContains(t, err, "coinbase_tx")
}

// TestMissingRequiredFields drops every required key in turn and asserts
// that decoding fails instead of zero filling the field.
func TestMissingRequiredFields(t *testing.T) {
	t.Parallel()

	shapes := map[string]struct {
		raw      func() map[string]any
		newShape func() any
		required []string
	}{
		"header v28": {
			raw:      genesisHeader,
			newShape: func() any { return &HeaderV28{} },
			required: headerKeys,
		},
		"header v29": {
			raw: func() map[string]any {
				return withTarget(genesisHeader())
			},
			newShape: func() any { return &HeaderV29{} },
			required: headerV29Keys,
		},
		"block v28": {
			raw:      func() map[string]any { return genesisBlock(V28) },
			newShape: func() any { return &BlockV28{} },
			required: blockV28Keys,
		},
		"block v29": {
			raw:      func() map[string]any { return genesisBlock(V29) },
			newShape: func() any { return &BlockV29{} },
			required: blockV29Keys,
		},
		"block v30": {
			raw:      func() map[string]any { return genesisBlock(V30) },
			newShape: func() any { return &BlockV30{} },
			required: blockV30Keys,
		},
		"filter": {
			raw: func() map[string]any {
				return map[string]any{
					"filter": "019dfca8",
					"header": genesisHash,
				}
			},
			newShape: func() any { return &BlockFilter{} },
			required: filterKeys,
		},
	}

	for name, shape := range shapes {
		// The complete document decodes.
		require.NoError(t, json.Unmarshal(
			mustJSON(t, shape.raw()), shape.newShape(),
		), name)

		for _, key := range shape.required {
			t.Run(name+"/"+key, func(t *testing.T) {
				raw := shape.raw()
				delete(raw, key)

				err := json.Unmarshal(
					mustJSON(t, raw), shape.newShape(),
				)
				require.ErrorIs(t, err, ErrMissingField)
				require.ErrorContains(t, err, key)

				// An explicit null is no better than absence.
				raw[key] = nil
				err = json.Unmarshal(
					mustJSON(t, raw), shape.newShape(),
				)
				require.ErrorIs(t, err, ErrMissingField)
			})
		}
	}

	// Optional keys may be dropped.
	raw := genesisBlock(V30)
	delete(raw, "nextblockhash")
	require.NoError(t, json.Unmarshal(mustJSON(t, raw), &BlockV30{}))

	// Inside the coinbase summary only the witness is optional.
	for _, key := range coinbaseKeys {
		raw := genesisBlock(V30)
		delete(raw["coinbase_tx"].(map[string]any), key)

		err := json.Unmarshal(mustJSON(t, raw), &BlockV30{})
		require.ErrorIs(t, err, ErrMissingField, key)
	}
}

// TestNullResult asserts that a null document never decodes into a shape.
func TestNullResult(t *testing.T) {
	t.Parallel()

	for _, v := range Versions() {
		m, err := ForVersion(v)
		require.NoError(t, err)

		shapes := []any{
			m.NewBlockHeaderVerbose(),
			m.NewBlockVerboseOne(),
			m.NewBlockFilter(),
		}
		for _, shape := range shapes {
			err := json.Unmarshal([]byte(" null "), shape)
			require.ErrorIs(t, err, ErrNullResult)
		}
	}
}

// TestHeaderConversionFailures covers internally inconsistent headers.
func TestHeaderConversionFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
		err    error
	}{
		{
			name:   "short hash",
			mutate: func(m map[string]any) { m["hash"] = "0f91" },
			field:  "hash",
			err:    ErrHashLength,
		},
		{
			name: "bad hash hex",
			mutate: func(m map[string]any) {
				m["hash"] = "zz" + genesisHash[2:]
			},
			field: "hash",
		},
		{
			name:   "empty merkle root",
			mutate: func(m map[string]any) { m["merkleroot"] = "" },
			field:  "merkleroot",
			err:    ErrMissingField,
		},
		{
			name:   "negative height",
			mutate: func(m map[string]any) { m["height"] = -1 },
			field:  "height",
			err:    ErrOutOfRange,
		},
		{
			name:   "version hex mismatch",
			mutate: func(m map[string]any) { m["versionHex"] = "20000000" },
			field:  "versionHex",
			err:    ErrVersionHexMismatch,
		},
		{
			name:   "bits not hex",
			mutate: func(m map[string]any) { m["bits"] = "xyz" },
			field:  "bits",
		},
		{
			name:   "chainwork not hex",
			mutate: func(m map[string]any) { m["chainwork"] = "-2" },
			field:  "chainwork",
		},
		{
			name: "target mismatch",
			mutate: func(m map[string]any) {
				m["target"] = "00000000ffff" + regtestTarget[12:]
			},
			field: "target",
			err:   ErrTargetMismatch,
		},
		{
			name: "short previous hash",
			mutate: func(m map[string]any) {
				m["previousblockhash"] = "00"
			},
			field: "previousblockhash",
			err:   ErrHashLength,
		},
	}

	m29, _ := ForVersion(V29)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			raw := withTarget(genesisHeader())
			test.mutate(raw)

			shape := m29.NewBlockHeaderVerbose()
			require.NoError(t, json.Unmarshal(mustJSON(t, raw), shape))

			_, err := shape.ToModel()
			var headerErr *BlockHeaderVerboseError
			require.ErrorAs(t, err, &headerErr)
			require.Equal(t, test.field, headerErr.Field)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
			}
		})
	}
}

// TestBlockConversionFailures covers inconsistent block level fields.
func TestBlockConversionFailures(t *testing.T) {
	t.Parallel()

	m28, _ := ForVersion(V28)

	convert := func(mutate func(map[string]any)) error {
		raw := genesisBlock(V28)
		mutate(raw)

		shape := m28.NewBlockVerboseOne()
		require.NoError(t, json.Unmarshal(mustJSON(t, raw), shape))

		_, err := shape.ToModel()
		return err
	}

	err := convert(func(m map[string]any) { m["nTx"] = 2 })
	require.ErrorIs(t, err, ErrTxCountMismatch)

	err = convert(func(m map[string]any) { m["tx"] = []string{"00"} })
	var blockErr *BlockVerboseOneError
	require.ErrorAs(t, err, &blockErr)
	require.Equal(t, "tx[0]", blockErr.Field)

	err = convert(func(m map[string]any) { m["tx"] = []string{} })
	require.ErrorIs(t, err, ErrTxCountMismatch)

	err = convert(func(m map[string]any) { m["size"] = -5 })
	require.ErrorIs(t, err, ErrOutOfRange)

	// Header failures inside a block are block errors.
	err = convert(func(m map[string]any) { m["versionHex"] = "1" })
	require.ErrorAs(t, err, &blockErr)
	require.ErrorIs(t, err, ErrVersionHexMismatch)
}

// TestBlockFilterConversion decodes a filter built from the genesis block.
func TestBlockFilterConversion(t *testing.T) {
	t.Parallel()

	params := chaincfg.RegressionNetParams
	gcsFilter, err := builder.BuildBasicFilter(params.GenesisBlock, nil)
	require.NoError(t, err)
	nBytes, err := gcsFilter.NBytes()
	require.NoError(t, err)
	header, err := builder.MakeHeaderForFilter(gcsFilter, chainhash.Hash{})
	require.NoError(t, err)

	raw := mustJSON(t, map[string]any{
		"filter": hex.EncodeToString(nBytes),
		"header": header.String(),
	})

	for _, v := range Versions() {
		m, _ := ForVersion(v)

		shape := m.NewBlockFilter()
		require.NoError(t, json.Unmarshal(raw, shape))

		filter, err := shape.ToModel(*params.GenesisHash)
		require.NoError(t, err)
		require.Equal(t, header, filter.Header)
		require.Equal(t, gcsFilter.N(), filter.N())

		ok, err := filter.Match(
			params.GenesisBlock.Transactions[0].TxOut[0].PkScript,
		)
		require.NoError(t, err)
		require.True(t, ok)
	}

	m, _ := ForVersion(Latest)
	for _, bad := range []map[string]any{
		{"filter": "zz", "header": header.String()},
		{"filter": "", "header": header.String()},
		{"filter": hex.EncodeToString(nBytes), "header": "abcd"},
	} {
		shape := m.NewBlockFilter()
		require.NoError(t, json.Unmarshal(mustJSON(t, bad), shape))

		_, err := shape.ToModel(*params.GenesisHash)
		var filterErr *BlockFilterError
		require.ErrorAs(t, err, &filterErr)
	}

	err = json.Unmarshal(
		[]byte(`{"filter":"00","header":"00","extra":1}`),
		m.NewBlockFilter(),
	)
	require.Error(t, err)
}

// TestHeaderHeightProperty asserts that any non-negative height that fits
// 32 bits survives conversion and anything else is rejected.
func TestHeaderHeightProperty(t *testing.T) {
	m28, _ := ForVersion(V28)

	rapid.Check(t, func(rt *rapid.T) {
		height := rapid.Int64().Draw(rt, "height")

		raw := genesisHeader()
		raw["height"] = height

		shape := m28.NewBlockHeaderVerbose()
		require.NoError(rt, json.Unmarshal(mustJSON(rt, raw), shape))

		header, err := shape.ToModel()
		if height < 0 || height > int64(^uint32(0)) {
			require.True(rt, errors.Is(err, ErrOutOfRange))
			return
		}

		require.NoError(rt, err)
		require.EqualValues(rt, height, header.Height)
	})
}

// TestVersionHexProperty asserts versionHex must be the zero padded hex of
// version, including negative versions.
func TestVersionHexProperty(t *testing.T) {
	m28, _ := ForVersion(V28)

	rapid.Check(t, func(rt *rapid.T) {
		version := rapid.Int32().Draw(rt, "version")

		raw := genesisHeader()
		raw["version"] = version
		raw["versionHex"] = fmt.Sprintf("%08x", uint32(version))

		shape := m28.NewBlockHeaderVerbose()
		require.NoError(rt, json.Unmarshal(mustJSON(rt, raw), shape))

		header, err := shape.ToModel()
		require.NoError(rt, err)
		require.Equal(rt, version, header.Version)
	})
}
