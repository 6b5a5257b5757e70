package corerpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/corerpc/model"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/lightningnetwork/corerpc/rpcerr"
)

// Verbosity levels of getblock.
const (
	verbosityHex     = 0
	verbosityVerbose = 1
)

// GetBestBlockHash returns the hash of the tip of the best chain.
func (c *Client) GetBestBlockHash(ctx context.Context) (*chainhash.Hash,
	error) {

	var hashStr string
	if err := c.call(ctx, "getbestblockhash", &hashStr); err != nil {
		return nil, err
	}

	return parseHash(hashStr)
}

// GetBlockCount returns the height of the tip of the best chain.
func (c *Client) GetBlockCount(ctx context.Context) (uint32, error) {
	var count int64
	if err := c.call(ctx, "getblockcount", &count); err != nil {
		return 0, err
	}

	if count < 0 || count > math.MaxUint32 {
		return 0, rpcerr.Newf(rpcerr.KindOverflow,
			"getblockcount: %d does not fit in uint32", count)
	}

	return uint32(count), nil
}

// GetBlockHash returns the hash of the best chain block at height.
func (c *Client) GetBlockHash(ctx context.Context,
	height uint32) (*chainhash.Hash, error) {

	var hashStr string
	if err := c.call(ctx, "getblockhash", &hashStr, height); err != nil {
		return nil, err
	}

	return parseHash(hashStr)
}

// GetBlock returns the block with the given hash.
func (c *Client) GetBlock(ctx context.Context,
	hash *chainhash.Hash) (*wire.MsgBlock, error) {

	hashStr, err := hashArg(hash)
	if err != nil {
		return nil, err
	}

	var blockHex string
	err = c.call(ctx, "getblock", &blockHex, hashStr, verbosityHex)
	if err != nil {
		return nil, err
	}

	var block wire.MsgBlock
	if err := decodeWire(blockHex, block.Deserialize); err != nil {
		return nil, err
	}

	return &block, nil
}

// GetBlockVerbose returns the verbose description of the block with the given
// hash.
func (c *Client) GetBlockVerbose(ctx context.Context,
	hash *chainhash.Hash) (*model.BlockVerboseOne, error) {

	hashStr, err := hashArg(hash)
	if err != nil {
		return nil, err
	}

	shape := c.modeler.NewBlockVerboseOne()
	err = c.call(ctx, "getblock", shape, hashStr, verbosityVerbose)
	if err != nil {
		return nil, err
	}

	block, err := shape.ToModel()
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindBlockVerboseOne, err,
			hashStr)
	}

	return block, nil
}

// GetBlockHeader returns the header of the block with the given hash.
func (c *Client) GetBlockHeader(ctx context.Context,
	hash *chainhash.Hash) (*wire.BlockHeader, error) {

	hashStr, err := hashArg(hash)
	if err != nil {
		return nil, err
	}

	var headerHex string
	err = c.call(ctx, "getblockheader", &headerHex, hashStr, false)
	if err != nil {
		return nil, err
	}

	var header wire.BlockHeader
	if err := decodeWire(headerHex, header.Deserialize); err != nil {
		return nil, err
	}

	return &header, nil
}

// GetBlockHeaderVerbose returns the verbose description of the header of the
// block with the given hash.
func (c *Client) GetBlockHeaderVerbose(ctx context.Context,
	hash *chainhash.Hash) (*model.BlockHeaderVerbose, error) {

	hashStr, err := hashArg(hash)
	if err != nil {
		return nil, err
	}

	shape := c.modeler.NewBlockHeaderVerbose()
	err = c.call(ctx, "getblockheader", shape, hashStr)
	if err != nil {
		return nil, err
	}

	header, err := shape.ToModel()
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindBlockHeaderVerbose, err,
			hashStr)
	}

	return header, nil
}

// GetBlockFilter returns the BIP 158 basic filter of the block with the given
// hash. The node must run with -blockfilterindex.
func (c *Client) GetBlockFilter(ctx context.Context,
	hash *chainhash.Hash) (*model.BlockFilter, error) {

	hashStr, err := hashArg(hash)
	if err != nil {
		return nil, err
	}

	shape := c.modeler.NewBlockFilter()
	err = c.call(ctx, "getblockfilter", shape, hashStr)
	if err != nil {
		return nil, err
	}

	filter, err := shape.ToModel(*hash)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindBlockFilter, err,
			hashStr)
	}

	return filter, nil
}

// GetRawMempool returns the ids of all transactions in the mempool.
func (c *Client) GetRawMempool(ctx context.Context) ([]chainhash.Hash,
	error) {

	var txids []string
	if err := c.call(ctx, "getrawmempool", &txids); err != nil {
		return nil, err
	}

	hashes := make([]chainhash.Hash, 0, len(txids))
	for _, txid := range txids {
		hash, err := parseHash(txid)
		if err != nil {
			return nil, err
		}

		hashes = append(hashes, *hash)
	}

	return hashes, nil
}

// GetRawTransaction returns the transaction with the given id. Transactions
// that are neither in the mempool nor in a block are only found by nodes
// running with -txindex.
func (c *Client) GetRawTransaction(ctx context.Context,
	txid *chainhash.Hash) (*wire.MsgTx, error) {

	txidStr, err := hashArg(txid)
	if err != nil {
		return nil, err
	}

	var txHex string
	err = c.call(ctx, "getrawtransaction", &txHex, txidStr)
	if err != nil {
		return nil, err
	}

	var tx wire.MsgTx
	if err := decodeWire(txHex, tx.Deserialize); err != nil {
		return nil, err
	}

	return &tx, nil
}

// networkInfo is the part of the getnetworkinfo result the client reads.
type networkInfo struct {
	Version    int64  `json:"version"`
	SubVersion string `json:"subversion"`
}

// GetNetworkVersion returns the numeric node version, such as 290100.
func (c *Client) GetNetworkVersion(ctx context.Context) (uint32, error) {
	var info networkInfo
	if err := c.call(ctx, "getnetworkinfo", &info); err != nil {
		return 0, err
	}

	if info.Version < 0 || info.Version > math.MaxUint32 {
		return 0, rpcerr.Newf(rpcerr.KindOverflow,
			"getnetworkinfo: version %d does not fit in uint32",
			info.Version)
	}

	return uint32(info.Version), nil
}

// DetectVersion asks the node for its version and maps it to the protocol
// version whose response shapes it uses.
func (c *Client) DetectVersion(ctx context.Context) (protocol.Version,
	error) {

	nodeVersion, err := c.GetNetworkVersion(ctx)
	if err != nil {
		return 0, err
	}

	v, err := protocol.FromNodeVersion(nodeVersion)
	if err != nil {
		return 0, rpcerr.Wrap(rpcerr.KindInvalidResponse, err,
			"getnetworkinfo")
	}

	log.Tracef("Node version %d uses protocol %v", nodeVersion, v)

	return v, nil
}

// parseHash parses a hash in display order. Only full length hashes are
// accepted.
func parseHash(s string) (*chainhash.Hash, error) {
	if len(s) != chainhash.MaxHashStringSize {
		return nil, rpcerr.Newf(rpcerr.KindHashParse,
			"%q: expected %d hex characters, got %d", s,
			chainhash.MaxHashStringSize, len(s))
	}

	hash, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.KindHashParse, err, s)
	}

	return hash, nil
}

// hashArg renders a hash parameter. A nil hash is rejected before anything is
// sent.
func hashArg(hash *chainhash.Hash) (string, error) {
	if hash == nil {
		return "", rpcerr.New(rpcerr.KindHashParse, "nil hash")
	}

	return hash.String(), nil
}

// decodeWire hex decodes s and deserializes it with decode. The whole input
// must be consumed.
func decodeWire(s string, decode func(r io.Reader) error) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return rpcerr.Wrap(rpcerr.KindHexToBytes, err, "")
	}

	r := bytes.NewReader(b)
	if err := decode(r); err != nil {
		return rpcerr.Wrap(rpcerr.KindDecodeWire, err, "")
	}

	if r.Len() != 0 {
		return rpcerr.Newf(rpcerr.KindDecodeWire,
			"%d trailing bytes", r.Len())
	}

	return nil
}
