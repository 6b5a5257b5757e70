package nodetest

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"sort"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/gcs/builder"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/corerpc/protocol"
)

const (
	// blockInterval is the spacing of generated block timestamps.
	blockInterval = 10 * time.Minute

	// medianTimeBlocks is the number of blocks the median time past is
	// computed over.
	medianTimeBlocks = 11

	// versionBits is the version of generated blocks.
	versionBits = 0x20000000

	// coinbaseValue is the output value of generated coinbases.
	coinbaseValue = 50 * btcutil.SatoshiPerBitcoin
)

// OpTrueScript is the anyone-can-spend script paid by generated coinbases.
var OpTrueScript = []byte{0x51}

// chain is an in-memory best chain with a mempool.
type chain struct {
	params *chaincfg.Params

	blocks  []*wire.MsgBlock
	heights map[chainhash.Hash]uint32

	// work is the cumulative chain work up to each height.
	work []*big.Int

	// filterHeaders is the basic filter header at each height.
	filterHeaders []chainhash.Hash

	// txs holds every confirmed transaction by txid.
	txs map[chainhash.Hash]*wire.MsgTx

	// outputs holds the pkScript of every output created so far.
	outputs map[wire.OutPoint][]byte

	mempool      map[chainhash.Hash]*wire.MsgTx
	mempoolOrder []chainhash.Hash
}

func newChain(params *chaincfg.Params) (*chain, error) {
	c := &chain{
		params:  params,
		heights: make(map[chainhash.Hash]uint32),
		txs:     make(map[chainhash.Hash]*wire.MsgTx),
		outputs: make(map[wire.OutPoint][]byte),
		mempool: make(map[chainhash.Hash]*wire.MsgTx),
	}

	if err := c.connect(params.GenesisBlock); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *chain) tipHeight() uint32 {
	return uint32(len(c.blocks) - 1)
}

func (c *chain) tip() *wire.MsgBlock {
	return c.blocks[len(c.blocks)-1]
}

// connect appends block to the chain and indexes it.
func (c *chain) connect(block *wire.MsgBlock) error {
	height := uint32(len(c.blocks))

	prevScripts := make([][]byte, 0)
	for _, tx := range block.Transactions[1:] {
		for _, in := range tx.TxIn {
			script, ok := c.outputs[in.PreviousOutPoint]
			if !ok {
				return fmt.Errorf("unknown outpoint %v",
					in.PreviousOutPoint)
			}
			prevScripts = append(prevScripts, script)
		}
	}

	filter, err := builder.BuildBasicFilter(block, prevScripts)
	if err != nil {
		return err
	}

	prevHeader := chainhash.Hash{}
	prevWork := big.NewInt(0)
	if height > 0 {
		prevHeader = c.filterHeaders[height-1]
		prevWork = c.work[height-1]
	}

	filterHeader, err := builder.MakeHeaderForFilter(filter, prevHeader)
	if err != nil {
		return err
	}

	work := new(big.Int).Add(prevWork, blockchain.CalcWork(block.Header.Bits))

	hash := block.BlockHash()
	c.blocks = append(c.blocks, block)
	c.heights[hash] = height
	c.work = append(c.work, work)
	c.filterHeaders = append(c.filterHeaders, filterHeader)

	for _, tx := range block.Transactions {
		txid := tx.TxHash()
		c.txs[txid] = tx

		for i, out := range tx.TxOut {
			c.outputs[wire.OutPoint{Hash: txid, Index: uint32(i)}] =
				out.PkScript
		}

		delete(c.mempool, txid)
	}

	order := c.mempoolOrder[:0]
	for _, txid := range c.mempoolOrder {
		if _, ok := c.mempool[txid]; ok {
			order = append(order, txid)
		}
	}
	c.mempoolOrder = order

	return nil
}

// coinbase builds the coinbase of the block at height. The height is pushed
// as required by BIP 34.
func coinbase(height uint32) *wire.MsgTx {
	var heightBytes [4]byte
	binary.LittleEndian.PutUint32(heightBytes[:], height)

	sigScript := append([]byte{0x04}, heightBytes[:]...)

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(coinbaseValue, OpTrueScript))

	return tx
}

// mine builds and connects a block on top of the tip holding every mempool
// transaction.
func (c *chain) mine() (*wire.MsgBlock, error) {
	prev := c.tip()
	height := c.tipHeight() + 1

	txs := []*wire.MsgTx{coinbase(height)}
	for _, txid := range c.mempoolOrder {
		txs = append(txs, c.mempool[txid])
	}

	utilTxs := make([]*btcutil.Tx, 0, len(txs))
	for _, tx := range txs {
		utilTxs = append(utilTxs, btcutil.NewTx(tx))
	}

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    versionBits,
			PrevBlock:  prev.BlockHash(),
			MerkleRoot: blockchain.CalcMerkleRoot(utilTxs, false),
			Timestamp:  prev.Header.Timestamp.Add(blockInterval),
			Bits:       c.params.PowLimitBits,
		},
		Transactions: txs,
	}

	target := blockchain.CompactToBig(block.Header.Bits)
	for {
		hash := block.BlockHash()
		if blockchain.HashToBig(&hash).Cmp(target) <= 0 {
			break
		}
		block.Header.Nonce++
	}

	if err := c.connect(block); err != nil {
		return nil, err
	}

	return block, nil
}

// addToMempool validates that tx spends known outputs and queues it.
func (c *chain) addToMempool(tx *wire.MsgTx) (chainhash.Hash, error) {
	for _, in := range tx.TxIn {
		if _, ok := c.outputs[in.PreviousOutPoint]; !ok {
			return chainhash.Hash{}, fmt.Errorf("unknown outpoint %v",
				in.PreviousOutPoint)
		}
	}

	txid := tx.TxHash()
	if _, ok := c.mempool[txid]; !ok {
		c.mempool[txid] = tx
		c.mempoolOrder = append(c.mempoolOrder, txid)
	}

	return txid, nil
}

// medianTime returns the median timestamp of the block at height and the ten
// blocks before it.
func (c *chain) medianTime(height uint32) time.Time {
	start := 0
	if int(height)+1 > medianTimeBlocks {
		start = int(height) + 1 - medianTimeBlocks
	}

	times := make([]int64, 0, medianTimeBlocks)
	for _, b := range c.blocks[start : height+1] {
		times = append(times, b.Header.Timestamp.Unix())
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	return time.Unix(times[len(times)/2], 0)
}

// difficulty returns the difficulty of bits relative to the mainnet minimum
// difficulty, the way bitcoind reports it.
func difficulty(bits uint32) float64 {
	maxTarget := new(big.Float).SetInt(blockchain.CompactToBig(0x1d00ffff))
	target := new(big.Float).SetInt(blockchain.CompactToBig(bits))

	diff, _ := new(big.Float).Quo(maxTarget, target).Float64()

	return diff
}

// serializeHex returns the hex encoded wire serialization of w.
func serializeHex(w interface{ Serialize(io.Writer) error }) string {
	var buf bytes.Buffer
	_ = w.Serialize(&buf)

	return hex.EncodeToString(buf.Bytes())
}

// headerResult renders the verbose header of the block at height.
func (c *chain) headerResult(height uint32,
	v protocol.Version) map[string]any {

	block := c.blocks[height]
	header := block.Header
	hash := block.BlockHash()

	result := map[string]any{
		"hash":          hash.String(),
		"confirmations": int64(c.tipHeight()) - int64(height) + 1,
		"height":        height,
		"version":       header.Version,
		"versionHex":    fmt.Sprintf("%08x", uint32(header.Version)),
		"merkleroot":    header.MerkleRoot.String(),
		"time":          header.Timestamp.Unix(),
		"mediantime":    c.medianTime(height).Unix(),
		"nonce":         header.Nonce,
		"bits":          fmt.Sprintf("%08x", header.Bits),
		"difficulty":    difficulty(header.Bits),
		"chainwork":     fmt.Sprintf("%064x", c.work[height]),
		"nTx":           len(block.Transactions),
	}

	if height > 0 {
		result["previousblockhash"] = header.PrevBlock.String()
	}
	if height < c.tipHeight() {
		next := c.blocks[height+1].BlockHash()
		result["nextblockhash"] = next.String()
	}
	if v >= protocol.V29 {
		result["target"] = fmt.Sprintf(
			"%064x", blockchain.CompactToBig(header.Bits),
		)
	}

	return result
}

// blockResult renders the block at height with verbosity 1.
func (c *chain) blockResult(height uint32,
	v protocol.Version) map[string]any {

	block := c.blocks[height]
	result := c.headerResult(height, v)

	txids := make([]string, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txids = append(txids, tx.TxHash().String())
	}

	result["strippedsize"] = block.SerializeSizeStripped()
	result["size"] = block.SerializeSize()
	result["weight"] = blockchain.GetBlockWeight(btcutil.NewBlock(block))
	result["tx"] = txids

	if v >= protocol.V30 {
		cb := block.Transactions[0]
		coinbaseTx := map[string]any{
			"version":  cb.Version,
			"locktime": cb.LockTime,
			"sequence": cb.TxIn[0].Sequence,
			"coinbase": hex.EncodeToString(cb.TxIn[0].SignatureScript),
		}
		if len(cb.TxIn[0].Witness) > 0 {
			coinbaseTx["witness"] = hex.EncodeToString(
				cb.TxIn[0].Witness[0],
			)
		}
		result["coinbase_tx"] = coinbaseTx
	}

	return result
}

// filterResult renders the basic filter of the block at height.
func (c *chain) filterResult(height uint32) (map[string]any, error) {
	block := c.blocks[height]

	prevScripts := make([][]byte, 0)
	for _, tx := range block.Transactions[1:] {
		for _, in := range tx.TxIn {
			prevScripts = append(
				prevScripts, c.outputs[in.PreviousOutPoint],
			)
		}
	}

	filter, err := builder.BuildBasicFilter(block, prevScripts)
	if err != nil {
		return nil, err
	}

	nBytes, err := filter.NBytes()
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"filter": hex.EncodeToString(nBytes),
		"header": c.filterHeaders[height].String(),
	}, nil
}
