package allowance

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/registry"
)

// ChainReader answers the token reads the resolver needs. Implementations
// must be safe for concurrent use.
type ChainReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// PermitInfo probes EIP-2612 support. ok=false with a nil error means
	// the token simply does not implement permit.
	PermitInfo(ctx context.Context, token, owner common.Address) (PermitInfo, bool, error)
}

// CallBackend is the read-only slice of ethclient.Client used by RPCReader.
type CallBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RPCReader reads token state over JSON-RPC eth_call.
type RPCReader struct {
	backend CallBackend
	erc20   abi.ABI

	mu           sync.Mutex
	permitProbes map[common.Address]permitProbe
}

type permitProbe struct {
	name    string
	version string
	ok      bool
}

func NewRPCReader(backend CallBackend) (*RPCReader, error) {
	parsed, err := abi.JSON(strings.NewReader(registry.ERC20PermitABI))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "parse erc20 abi", err)
	}
	return &RPCReader{backend: backend, erc20: parsed, permitProbes: make(map[common.Address]permitProbe)}, nil
}

func (r *RPCReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := r.callUint256(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read allowance", err)
	}
	return out, nil
}

func (r *RPCReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := r.callUint256(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read balance", err)
	}
	return out, nil
}

// PermitInfo reads the EIP-712 domain fields and the owner's current permit
// nonce. The name/version/support verdict is cached per token; the nonce is
// re-read on every call since it advances with each consumed permit.
func (r *RPCReader) PermitInfo(ctx context.Context, token, owner common.Address) (PermitInfo, bool, error) {
	r.mu.Lock()
	probe, probed := r.permitProbes[token]
	r.mu.Unlock()

	if !probed {
		probe = r.probePermit(ctx, token)
		r.mu.Lock()
		r.permitProbes[token] = probe
		r.mu.Unlock()
	}
	if !probe.ok {
		return PermitInfo{}, false, nil
	}

	nonce, err := r.callUint256(ctx, token, "nonces", owner)
	if err != nil {
		return PermitInfo{}, false, clierr.Wrap(clierr.CodeUnavailable, "read permit nonce", err)
	}
	return PermitInfo{Name: probe.name, Version: probe.version, Nonce: nonce}, true, nil
}

func (r *RPCReader) probePermit(ctx context.Context, token common.Address) permitProbe {
	// A token without nonces() or DOMAIN_SEPARATOR() reverts the probe call,
	// which classifies it as permit-unsupported rather than failing hard.
	if _, err := r.call(ctx, token, "DOMAIN_SEPARATOR"); err != nil {
		return permitProbe{}
	}
	name, err := r.callString(ctx, token, "name")
	if err != nil || name == "" {
		return permitProbe{}
	}
	version, err := r.callString(ctx, token, "version")
	if err != nil || version == "" {
		// Most permit tokens that omit version() use "1" in their domain.
		version = "1"
	}
	return permitProbe{name: name, version: version, ok: true}
}

func (r *RPCReader) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]byte, error) {
	data, err := r.erc20.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return r.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
}

func (r *RPCReader) callUint256(ctx context.Context, token common.Address, method string, args ...interface{}) (*big.Int, error) {
	raw, err := r.call(ctx, token, method, args...)
	if err != nil {
		return nil, err
	}
	vals, err := r.erc20.Unpack(method, raw)
	if err != nil {
		return nil, err
	}
	out, ok := vals[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeInternal, "unexpected uint256 return shape")
	}
	return out, nil
}

func (r *RPCReader) callString(ctx context.Context, token common.Address, method string) (string, error) {
	raw, err := r.call(ctx, token, method)
	if err != nil {
		return "", err
	}
	vals, err := r.erc20.Unpack(method, raw)
	if err != nil {
		return "", err
	}
	out, ok := vals[0].(string)
	if !ok {
		return "", clierr.New(clierr.CodeInternal, "unexpected string return shape")
	}
	return out, nil
}
