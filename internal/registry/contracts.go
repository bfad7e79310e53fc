package registry

// Canonical SwapRouter02 deployments: the spender contract that pulls the
// input token during swap execution.
var swapRouterByChainID = map[int64]string{
	1:     "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45", // Ethereum
	10:    "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45", // Optimism
	137:   "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45", // Polygon
	8453:  "0x2626664c2603336E57B271c5C0b26F421741e481", // Base
	42161: "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45", // Arbitrum
	56:    "0xB971eF87ede563556b2ED4b1C0b0019111Dd85d2", // BSC
	43114: "0xbb00FF08d01D300023C629E8fFfFcb65A5a578cE", // Avalanche
}

func SwapRouter(chainID int64) (string, bool) {
	value, ok := swapRouterByChainID[chainID]
	return value, ok
}
