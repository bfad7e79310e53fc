package registry

import (
	"fmt"
	"strings"
)

var explorerBaseByChainID = map[int64]string{
	1:     "https://etherscan.io",
	10:    "https://optimistic.etherscan.io",
	56:    "https://bscscan.com",
	137:   "https://polygonscan.com",
	8453:  "https://basescan.org",
	42161: "https://arbiscan.io",
	43114: "https://snowtrace.io",
}

// ExplorerTxURL renders a transaction hash as a navigable block-explorer
// reference. Returns the bare hash when the chain has no known explorer.
func ExplorerTxURL(chainID int64, txHash string) string {
	base, ok := explorerBaseByChainID[chainID]
	hash := strings.TrimSpace(txHash)
	if !ok || hash == "" {
		return hash
	}
	return fmt.Sprintf("%s/tx/%s", base, hash)
}
