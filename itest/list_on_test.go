//go:build integration

package itest

var allTestCases = []*testCase{
	{
		Name:     "chain tip",
		TestFunc: testChainTip,
	},
	{
		Name:     "mine and query",
		TestFunc: testMineAndQuery,
	},
	{
		Name:     "block filter",
		TestFunc: testBlockFilter,
	},
	{
		Name:     "mempool",
		TestFunc: testMempool,
	},
	{
		Name:     "unknown method",
		TestFunc: testUnknownMethod,
	},
}
