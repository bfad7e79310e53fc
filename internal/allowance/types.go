package allowance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SignatureData is an off-chain permit signature obtained in place of an
// on-chain approval transaction. Lifecycle: absent, then present on a
// successful wallet signature, then absent again on expiry.
type SignatureData struct {
	Token    common.Address
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
	V        uint8
	R        common.Hash
	S        common.Hash
}

// Covers reports whether the signature still satisfies an approval for the
// given token and amount at the given unix time.
func (s *SignatureData) Covers(token common.Address, amount *big.Int, nowUnix int64) bool {
	if s == nil || s.Value == nil || s.Deadline == nil || amount == nil {
		return false
	}
	if s.Token != token {
		return false
	}
	if s.Deadline.Cmp(big.NewInt(nowUnix)) <= 0 {
		return false
	}
	return s.Value.Cmp(amount) >= 0
}

// PermitInfo is the EIP-712 domain material read from a permit-capable token.
type PermitInfo struct {
	Name    string
	Version string
	Nonce   *big.Int
}

// Resolution is the per-recompute output of the allowance and permit
// service: which approval path, if any, still stands between the user and
// swap submission.
type Resolution struct {
	NotApproved      bool
	PendingApproval  bool
	PendingHash      string
	LoadingSignature bool
	SupportsPermit   bool
	Signature        *SignatureData
	RequiredAmount   *big.Int
}
