package allowance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
)

// BuildPermitTypedData assembles the EIP-2612 Permit message for the token's
// EIP-712 domain.
func BuildPermitTypedData(info PermitInfo, chainID int64, token, owner, spender common.Address, value, deadline *big.Int) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Permit": []apitypes.Type{
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Domain: apitypes.TypedDataDomain{
			Name:              info.Name,
			Version:           info.Version,
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: token.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"owner":    owner.Hex(),
			"spender":  spender.Hex(),
			"value":    value.String(),
			"nonce":    info.Nonce.String(),
			"deadline": deadline.String(),
		},
	}
}

// splitSignature decomposes a 65-byte signature into (v, r, s) with v in
// {27, 28} as the permit function expects.
func splitSignature(sig []byte) (uint8, common.Hash, common.Hash, error) {
	if len(sig) != 65 {
		return 0, common.Hash{}, common.Hash{}, clierr.New(clierr.CodeSigner, "signature must be 65 bytes")
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	return v, common.BytesToHash(sig[:32]), common.BytesToHash(sig[32:64]), nil
}
