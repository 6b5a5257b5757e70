package nodetest

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// nodeVersions is the getnetworkinfo version reported per protocol version.
var nodeVersions = map[uint32]int64{
	28: 280100,
	29: 290000,
	30: 300000,
}

func rpcError(code btcjson.RPCErrorCode, msg string) *btcjson.RPCError {
	return &btcjson.RPCError{Code: code, Message: msg}
}

func invalidParams(msg string) *btcjson.RPCError {
	return rpcError(btcjson.ErrRPCInvalidParams.Code, msg)
}

// param decodes the positional parameter at index i into v. Missing
// parameters leave v untouched.
func param(params []json.RawMessage, i int, v any) *btcjson.RPCError {
	if i >= len(params) || string(params[i]) == "null" {
		return nil
	}

	if err := json.Unmarshal(params[i], v); err != nil {
		return rpcError(btcjson.ErrRPCType, err.Error())
	}

	return nil
}

// blockParam resolves the block hash at index 0 to a height.
func (n *Node) blockParam(params []json.RawMessage) (uint32,
	*btcjson.RPCError) {

	if len(params) == 0 {
		return 0, invalidParams("missing block hash")
	}

	var hashStr string
	if err := param(params, 0, &hashStr); err != nil {
		return 0, err
	}

	hash, err := chainhash.NewHashFromStr(hashStr)
	if err != nil || len(hashStr) != chainhash.MaxHashStringSize {
		return 0, rpcError(btcjson.ErrRPCInvalidParameter,
			fmt.Sprintf("blockhash must be of length 64 "+
				"(not %d, for '%s')", len(hashStr), hashStr))
	}

	height, ok := n.chain.heights[*hash]
	if !ok {
		return 0, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
			"Block not found")
	}

	return height, nil
}

// dispatch answers method. The caller must not hold n.mu.
func (n *Node) dispatch(method string, params []json.RawMessage) (any,
	*btcjson.RPCError) {

	n.mu.Lock()
	defer n.mu.Unlock()

	if handler, ok := n.overrides[method]; ok {
		return handler(params)
	}

	c := n.chain
	v := n.cfg.version

	switch method {
	case "getbestblockhash":
		return c.tip().BlockHash().String(), nil

	case "getblockcount":
		return c.tipHeight(), nil

	case "getblockhash":
		var height int64 = -1
		if err := param(params, 0, &height); err != nil {
			return nil, err
		}
		if height < 0 || height > int64(c.tipHeight()) {
			return nil, rpcError(btcjson.ErrRPCInvalidParameter,
				"Block height out of range")
		}

		return c.blocks[height].BlockHash().String(), nil

	case "getblock":
		height, rpcErr := n.blockParam(params)
		if rpcErr != nil {
			return nil, rpcErr
		}

		verbosity := 1
		if err := param(params, 1, &verbosity); err != nil {
			return nil, err
		}

		switch verbosity {
		case 0:
			return serializeHex(c.blocks[height]), nil
		case 1:
			return c.blockResult(height, v), nil
		default:
			return nil, rpcError(btcjson.ErrRPCInvalidParameter,
				"verbosity not supported")
		}

	case "getblockheader":
		height, rpcErr := n.blockParam(params)
		if rpcErr != nil {
			return nil, rpcErr
		}

		verbose := true
		if err := param(params, 1, &verbose); err != nil {
			return nil, err
		}

		if !verbose {
			return serializeHex(&c.blocks[height].Header), nil
		}

		return c.headerResult(height, v), nil

	case "getblockfilter":
		height, rpcErr := n.blockParam(params)
		if rpcErr != nil {
			return nil, rpcErr
		}

		filterType := "basic"
		if err := param(params, 1, &filterType); err != nil {
			return nil, err
		}
		if filterType != "basic" {
			return nil, rpcError(btcjson.ErrRPCInvalidAddressOrKey,
				"Unknown filtertype")
		}

		result, err := c.filterResult(height)
		if err != nil {
			return nil, rpcError(btcjson.ErrRPCMisc, err.Error())
		}

		return result, nil

	case "getrawmempool":
		txids := make([]string, 0, len(c.mempoolOrder))
		for _, txid := range c.mempoolOrder {
			txids = append(txids, txid.String())
		}

		return txids, nil

	case "getrawtransaction":
		var txidStr string
		if err := param(params, 0, &txidStr); err != nil {
			return nil, err
		}

		txid, err := chainhash.NewHashFromStr(txidStr)
		if err != nil || len(txidStr) != chainhash.MaxHashStringSize {
			return nil, rpcError(btcjson.ErrRPCInvalidParameter,
				"txid must be of length 64")
		}

		if tx, ok := c.mempool[*txid]; ok {
			return serializeHex(tx), nil
		}
		if tx, ok := c.txs[*txid]; ok {
			return serializeHex(tx), nil
		}

		return nil, rpcError(btcjson.ErrRPCNoTxInfo,
			"No such mempool or blockchain transaction. Use "+
				"gettransaction for wallet transactions.")

	case "getnetworkinfo":
		return map[string]any{
			"version":         nodeVersions[uint32(v)],
			"subversion":      fmt.Sprintf("/Satoshi:%d.0.0/", v),
			"protocolversion": 70016,
			"localservices":   "0000000000000c09",
			"networkactive":   true,
			"connections":     0,
			"relayfee":        0.00001,
			"warnings":        "",
		}, nil

	case "generatetoaddress":
		var count int
		if err := param(params, 0, &count); err != nil {
			return nil, err
		}
		if count < 0 {
			return nil, invalidParams("negative block count")
		}

		hashes, err := n.generate(count)
		if err != nil {
			return nil, rpcError(btcjson.ErrRPCMisc, err.Error())
		}

		result := make([]string, 0, len(hashes))
		for _, hash := range hashes {
			result = append(result, hash.String())
		}

		return result, nil

	case "sendrawtransaction":
		var txHex string
		if err := param(params, 0, &txHex); err != nil {
			return nil, err
		}

		tx, err := decodeTx(txHex)
		if err != nil {
			return nil, rpcError(btcjson.ErrRPCDeserialization,
				"TX decode failed")
		}

		txid, err := c.addToMempool(tx)
		if err != nil {
			return nil, rpcError(btcjson.ErrRPCVerify,
				"bad-txns-inputs-missingorspent")
		}

		return txid.String(), nil

	default:
		return nil, btcjson.ErrRPCMethodNotFound
	}
}

func decodeTx(txHex string) (*wire.MsgTx, error) {
	b, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, err
	}

	return &tx, nil
}
