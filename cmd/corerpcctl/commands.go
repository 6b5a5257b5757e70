package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lightningnetwork/corerpc"
	"github.com/lightningnetwork/corerpc/model"
	"github.com/lightningnetwork/corerpc/protocol"
	"github.com/urfave/cli"
)

func printJSON(resp interface{}) {
	b, err := json.Marshal(resp)
	if err != nil {
		fatal(err)
	}

	var out bytes.Buffer
	_ = json.Indent(&out, b, "", "\t")
	out.WriteString("\n")
	_, _ = out.WriteTo(os.Stdout)
}

// newTable returns a table writer that renders to stdout.
func newTable(header ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(header)

	return t
}

// hashArg parses the first positional argument as a hash.
func hashArg(ctx *cli.Context, name string) (*chainhash.Hash, error) {
	if ctx.NArg() < 1 {
		return nil, fmt.Errorf("%s argument missing", name)
	}

	hash, err := chainhash.NewHashFromStr(ctx.Args().First())
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}

	return hash, nil
}

var getBestBlockHashCommand = cli.Command{
	Name:     "getbestblockhash",
	Category: "Chain",
	Usage:    "Print the hash of the best chain tip.",
	Action:   getBestBlockHash,
}

func getBestBlockHash(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	hash, err := client.GetBestBlockHash(context.Background())
	if err != nil {
		return err
	}

	printJSON(map[string]string{"hash": hash.String()})

	return nil
}

var getBlockCountCommand = cli.Command{
	Name:     "getblockcount",
	Category: "Chain",
	Usage:    "Print the height of the best chain tip.",
	Action:   getBlockCount,
}

func getBlockCount(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	count, err := client.GetBlockCount(context.Background())
	if err != nil {
		return err
	}

	printJSON(map[string]uint32{"count": count})

	return nil
}

var getBlockHashCommand = cli.Command{
	Name:      "getblockhash",
	Category:  "Chain",
	Usage:     "Print the hash of the best chain block at a height.",
	ArgsUsage: "height",
	Action:    getBlockHash,
}

func getBlockHash(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return cli.ShowCommandHelp(ctx, "getblockhash")
	}

	height, err := strconv.ParseUint(ctx.Args().First(), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid height: %w", err)
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	hash, err := client.GetBlockHash(context.Background(), uint32(height))
	if err != nil {
		return err
	}

	printJSON(map[string]string{"hash": hash.String()})

	return nil
}

var getBlockCommand = cli.Command{
	Name:      "getblock",
	Category:  "Chain",
	Usage:     "Print a block.",
	ArgsUsage: "hash",
	Description: `
	Print the block with the given hash. Without --verbose the block is
	fetched in wire format and summarized. With --verbose the node's
	description of the block is printed as a table.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Print the node's description of the block.",
		},
	},
	Action: getBlock,
}

// blockSummary is the printed form of a block fetched in wire format.
type blockSummary struct {
	Hash       string   `json:"hash"`
	PrevBlock  string   `json:"previousblockhash"`
	MerkleRoot string   `json:"merkleroot"`
	Time       int64    `json:"time"`
	Bits       string   `json:"bits"`
	Nonce      uint32   `json:"nonce"`
	Size       int      `json:"size"`
	Tx         []string `json:"tx"`
}

func getBlock(ctx *cli.Context) error {
	hash, err := hashArg(ctx, "hash")
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	if ctx.Bool("verbose") {
		block, err := client.GetBlockVerbose(
			context.Background(), hash,
		)
		if err != nil {
			return err
		}

		t := headerTable(&block.BlockHeaderVerbose)
		t.AppendRow(table.Row{"Stripped size", block.StrippedSize})
		t.AppendRow(table.Row{"Size", block.Size})
		t.AppendRow(table.Row{"Weight", block.Weight})
		block.CoinbaseTx.WhenSome(func(cb model.CoinbaseTx) {
			t.AppendRow(table.Row{
				"Coinbase", hex.EncodeToString(cb.Coinbase),
			})
		})
		for i, txid := range block.Tx {
			t.AppendRow(table.Row{fmt.Sprintf("Tx %d", i), txid})
		}
		t.Render()

		return nil
	}

	block, err := client.GetBlock(context.Background(), hash)
	if err != nil {
		return err
	}

	summary := blockSummary{
		Hash:       block.BlockHash().String(),
		PrevBlock:  block.Header.PrevBlock.String(),
		MerkleRoot: block.Header.MerkleRoot.String(),
		Time:       block.Header.Timestamp.Unix(),
		Bits:       fmt.Sprintf("%08x", block.Header.Bits),
		Nonce:      block.Header.Nonce,
		Size:       block.SerializeSize(),
	}
	for _, tx := range block.Transactions {
		summary.Tx = append(summary.Tx, tx.TxHash().String())
	}
	printJSON(summary)

	return nil
}

// headerTable renders a verbose header as a table of fields.
func headerTable(h *model.BlockHeaderVerbose) table.Writer {
	t := newTable("Field", "Value")
	t.AppendRows([]table.Row{
		{"Hash", h.Hash},
		{"Confirmations", h.Confirmations},
		{"Height", h.Height},
		{"Version", h.Version},
		{"Merkle root", h.MerkleRoot},
		{"Time", h.Time.UTC().Format(time.RFC3339)},
		{"Median time", h.MedianTime.UTC().Format(time.RFC3339)},
		{"Nonce", h.Nonce},
		{"Bits", fmt.Sprintf("%08x", h.Bits)},
		{"Target", fmt.Sprintf("%064x", h.Target)},
		{"Difficulty", h.Difficulty},
		{"Chain work", fmt.Sprintf("%064x", h.ChainWork)},
		{"Transactions", h.NTx},
	})
	h.PreviousBlockHash.WhenSome(func(prev chainhash.Hash) {
		t.AppendRow(table.Row{"Previous block", prev})
	})
	h.NextBlockHash.WhenSome(func(next chainhash.Hash) {
		t.AppendRow(table.Row{"Next block", next})
	})

	return t
}

var getBlockHeaderCommand = cli.Command{
	Name:      "getblockheader",
	Category:  "Chain",
	Usage:     "Print a block header.",
	ArgsUsage: "hash",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "Print the node's description of the header.",
		},
	},
	Action: getBlockHeader,
}

func getBlockHeader(ctx *cli.Context) error {
	hash, err := hashArg(ctx, "hash")
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	if ctx.Bool("verbose") {
		header, err := client.GetBlockHeaderVerbose(
			context.Background(), hash,
		)
		if err != nil {
			return err
		}

		headerTable(header).Render()

		return nil
	}

	header, err := client.GetBlockHeader(context.Background(), hash)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := header.Serialize(&buf); err != nil {
		return err
	}

	printJSON(map[string]string{
		"hash":   header.BlockHash().String(),
		"header": hex.EncodeToString(buf.Bytes()),
	})

	return nil
}

var getBlockFilterCommand = cli.Command{
	Name:      "getblockfilter",
	Category:  "Chain",
	Usage:     "Print the basic filter of a block.",
	ArgsUsage: "hash [script...]",
	Description: `
	Print the BIP 158 basic filter of the block with the given hash. Any
	hex encoded output scripts given after the hash are matched against
	the filter.`,
	Action: getBlockFilter,
}

func getBlockFilter(ctx *cli.Context) error {
	hash, err := hashArg(ctx, "hash")
	if err != nil {
		return err
	}

	var scripts [][]byte
	for _, arg := range ctx.Args().Tail() {
		script, err := hex.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("invalid script %q: %w", arg, err)
		}
		scripts = append(scripts, script)
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	filter, err := client.GetBlockFilter(context.Background(), hash)
	if err != nil {
		return err
	}

	filterBytes, err := filter.Bytes()
	if err != nil {
		return err
	}

	resp := struct {
		Filter  string          `json:"filter"`
		Header  string          `json:"header"`
		N       uint32          `json:"n"`
		Matches map[string]bool `json:"matches,omitempty"`
	}{
		Filter: hex.EncodeToString(filterBytes),
		Header: filter.Header.String(),
		N:      filter.N(),
	}

	if len(scripts) > 0 {
		resp.Matches = make(map[string]bool, len(scripts))
		for _, script := range scripts {
			match, err := filter.Match(script)
			if err != nil {
				return err
			}
			resp.Matches[hex.EncodeToString(script)] = match
		}
	}

	printJSON(resp)

	return nil
}

var getRawMempoolCommand = cli.Command{
	Name:     "getrawmempool",
	Category: "Mempool",
	Usage:    "List the ids of the transactions in the mempool.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "json",
			Usage: "Print JSON instead of a table.",
		},
	},
	Action: getRawMempool,
}

func getRawMempool(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	txids, err := client.GetRawMempool(context.Background())
	if err != nil {
		return err
	}

	if ctx.Bool("json") {
		strs := make([]string, 0, len(txids))
		for _, txid := range txids {
			strs = append(strs, txid.String())
		}
		printJSON(strs)

		return nil
	}

	t := newTable("#", "Txid")
	for i, txid := range txids {
		t.AppendRow(table.Row{i, txid})
	}
	t.AppendFooter(table.Row{"Total", len(txids)})
	t.Render()

	return nil
}

var getRawTransactionCommand = cli.Command{
	Name:      "getrawtransaction",
	Category:  "Mempool",
	Usage:     "Print a mempool transaction.",
	ArgsUsage: "txid",
	Action:    getRawTransaction,
}

// txSummary is the printed form of a transaction.
type txSummary struct {
	Txid     string   `json:"txid"`
	Wtxid    string   `json:"wtxid"`
	Version  int32    `json:"version"`
	LockTime uint32   `json:"locktime"`
	Inputs   []string `json:"inputs"`
	Outputs  []int64  `json:"outputs"`
	Hex      string   `json:"hex"`
}

func getRawTransaction(ctx *cli.Context) error {
	txid, err := hashArg(ctx, "txid")
	if err != nil {
		return err
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	tx, err := client.GetRawTransaction(context.Background(), txid)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return err
	}

	summary := txSummary{
		Txid:     tx.TxHash().String(),
		Wtxid:    tx.WitnessHash().String(),
		Version:  tx.Version,
		LockTime: tx.LockTime,
		Hex:      hex.EncodeToString(buf.Bytes()),
	}
	for _, in := range tx.TxIn {
		summary.Inputs = append(
			summary.Inputs, in.PreviousOutPoint.String(),
		)
	}
	for _, out := range tx.TxOut {
		summary.Outputs = append(summary.Outputs, out.Value)
	}
	printJSON(summary)

	return nil
}

var detectVersionCommand = cli.Command{
	Name:     "detectversion",
	Category: "Node",
	Usage:    "Print the version of the node and the matching shapes.",
	Action:   detectVersion,
}

func detectVersion(ctx *cli.Context) error {
	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	nodeVersion, err := client.GetNetworkVersion(context.Background())
	if err != nil {
		return err
	}

	printJSON(map[string]interface{}{
		"node_version":     nodeVersion,
		"protocol_version": client.Version().String(),
	})

	return nil
}

var callCommand = cli.Command{
	Name:      "call",
	Category:  "Node",
	Usage:     "Issue an arbitrary RPC call.",
	ArgsUsage: "method [param...]",
	Description: `
	Issue the given method with the given positional parameters and print
	the result. Parameters that are valid JSON are sent as is, anything
	else is sent as a string.`,
	Action: call,
}

func call(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return cli.ShowCommandHelp(ctx, "call")
	}

	method := ctx.Args().First()

	var params []any
	for _, arg := range ctx.Args().Tail() {
		if json.Valid([]byte(arg)) {
			params = append(params, json.RawMessage(arg))
			continue
		}
		params = append(params, arg)
	}

	client, cleanUp, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanUp()

	result, err := corerpc.Call[json.RawMessage](
		context.Background(), client, method, params...,
	)
	if err != nil {
		return err
	}

	printJSON(result)

	return nil
}

var versionsCommand = cli.Command{
	Name:     "versions",
	Category: "Node",
	Usage:    "List the node versions whose responses can be decoded.",
	Action:   versions,
}

func versions(_ *cli.Context) error {
	t := newTable("Version", "Target", "Coinbase tx")
	for _, v := range protocol.Versions() {
		t.AppendRow(table.Row{
			v, v >= protocol.V29, v >= protocol.V30,
		})
	}
	t.Render()

	return nil
}
