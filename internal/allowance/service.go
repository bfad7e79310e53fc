package allowance

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/swapflow/internal/errors"
	"github.com/ggonzalez94/swapflow/internal/execution"
	"github.com/ggonzalez94/swapflow/internal/execution/signer"
	"github.com/ggonzalez94/swapflow/internal/registry"
	"github.com/ggonzalez94/swapflow/internal/trade"
)

// PendingRegistry tracks in-flight approval transactions keyed by
// (token, spender). Satisfied by *txlog.Store.
type PendingRegistry interface {
	PendingApproval(token, spender string) (string, bool, error)
	SetPendingApproval(token, spender, txHash string) error
	ClearPendingApproval(token, spender string) error
}

const defaultPermitTTL = 30 * time.Minute

type ServiceConfig struct {
	Reader        ChainReader
	Backend       execution.Backend
	Signer        signer.Signer
	Pending       PendingRegistry
	ChainID       int64
	Spender       common.Address
	SubmitOptions execution.SubmitOptions
	PermitTTL     time.Duration
	Now           func() time.Time
}

// Service resolves the approval state of a trade's input token and, on
// request, clears it by either an off-chain permit signature or an on-chain
// approve transaction. At most one approval action is in flight at a time;
// concurrent requests while one is running are no-ops.
type Service struct {
	reader     ChainReader
	backend    execution.Backend
	signer     signer.Signer
	pending    PendingRegistry
	chainID    int64
	spender    common.Address
	submitOpts execution.SubmitOptions
	permitTTL  time.Duration
	now        func() time.Time
	erc20      abi.ABI

	mu         sync.Mutex
	inflight   bool
	loadingSig bool
	signature  *SignatureData
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Reader == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing chain reader")
	}
	if cfg.Signer == nil {
		return nil, clierr.New(clierr.CodeSigner, "missing signer")
	}
	if cfg.Pending == nil {
		return nil, clierr.New(clierr.CodeInternal, "missing pending approval registry")
	}
	if (cfg.Spender == common.Address{}) {
		return nil, clierr.New(clierr.CodeUsage, "missing spender address")
	}
	parsed, err := abi.JSON(strings.NewReader(registry.ERC20PermitABI))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "parse erc20 abi", err)
	}
	svc := &Service{
		reader:     cfg.Reader,
		backend:    cfg.Backend,
		signer:     cfg.Signer,
		pending:    cfg.Pending,
		chainID:    cfg.ChainID,
		spender:    cfg.Spender,
		submitOpts: cfg.SubmitOptions,
		permitTTL:  cfg.PermitTTL,
		now:        cfg.Now,
		erc20:      parsed,
	}
	if svc.permitTTL <= 0 {
		svc.permitTTL = defaultPermitTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Spender returns the contract the service approves or permits for.
func (s *Service) Spender() common.Address { return s.spender }

// Resolve recomputes the approval state for the trade's input token.
// Precedence: an unconfirmed pending approval wins over everything, then a
// held unexpired permit signature, then the live on-chain allowance.
func (s *Service) Resolve(ctx context.Context, t *trade.Trade) (Resolution, error) {
	if t == nil || !t.InputAmount.Valid() {
		return Resolution{}, clierr.New(clierr.CodeUsage, "resolve approval: missing trade input amount")
	}
	token := t.InputAmount.Currency.Address
	required := t.InputAmount.Quantity
	res := Resolution{RequiredAmount: required}

	s.mu.Lock()
	res.LoadingSignature = s.loadingSig
	held := s.signature
	s.mu.Unlock()

	if hash, ok, err := s.pending.PendingApproval(token.Hex(), s.spender.Hex()); err != nil {
		return Resolution{}, err
	} else if ok {
		res.PendingApproval = true
		res.PendingHash = hash
		res.SupportsPermit = s.probeSupport(ctx, token)
		return res, nil
	}

	res.SupportsPermit = s.probeSupport(ctx, token)

	if held.Covers(token, required, s.now().Unix()) {
		res.Signature = held
		return res, nil
	}

	allowance, err := s.reader.Allowance(ctx, token, s.signer.Address(), s.spender)
	if err != nil {
		return Resolution{}, err
	}
	res.NotApproved = allowance.Cmp(required) < 0
	return res, nil
}

func (s *Service) probeSupport(ctx context.Context, token common.Address) bool {
	_, ok, err := s.reader.PermitInfo(ctx, token, s.signer.Address())
	return err == nil && ok
}

// ApproveOrPermit clears the missing allowance for the trade's input token.
// Permit-capable tokens get an off-chain signature and an empty hash; other
// tokens get an approve transaction whose hash is also written to the
// pending registry. Re-entrant calls while an action is in flight return
// immediately with no effect.
func (s *Service) ApproveOrPermit(ctx context.Context, t *trade.Trade) (string, error) {
	if t == nil || !t.InputAmount.Valid() {
		return "", clierr.New(clierr.CodeUsage, "approve: missing trade input amount")
	}
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return "", nil
	}
	s.inflight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	token := t.InputAmount.Currency.Address
	required := t.InputAmount.Quantity

	if hash, ok, err := s.pending.PendingApproval(token.Hex(), s.spender.Hex()); err != nil {
		return "", err
	} else if ok {
		return hash, nil
	}

	info, supportsPermit, err := s.reader.PermitInfo(ctx, token, s.signer.Address())
	if err != nil {
		return "", err
	}
	if supportsPermit {
		return "", s.signPermit(info, token, required)
	}
	return s.submitApprove(ctx, token, required)
}

func (s *Service) signPermit(info PermitInfo, token common.Address, required *big.Int) error {
	s.mu.Lock()
	s.loadingSig = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingSig = false
		s.mu.Unlock()
	}()

	deadline := big.NewInt(s.now().Add(s.permitTTL).Unix())
	typed := BuildPermitTypedData(info, s.chainID, token, s.signer.Address(), s.spender, required, deadline)
	sig, err := s.signer.SignTypedData(typed)
	if err != nil {
		if clierr.IsRejected(err) {
			return err
		}
		return clierr.Wrap(clierr.CodeSigner, "sign permit", err)
	}
	v, r, sv, err := splitSignature(sig)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.signature = &SignatureData{
		Token:    token,
		Owner:    s.signer.Address(),
		Spender:  s.spender,
		Value:    new(big.Int).Set(required),
		Nonce:    new(big.Int).Set(info.Nonce),
		Deadline: deadline,
		V:        v,
		R:        r,
		S:        sv,
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) submitApprove(ctx context.Context, token common.Address, required *big.Int) (string, error) {
	data, err := s.erc20.Pack("approve", s.spender, required)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode approve call", err)
	}
	hash, err := execution.SubmitCall(ctx, s.backend, s.signer, execution.Call{To: token, Data: data}, s.submitOpts)
	if err != nil {
		return "", err
	}
	if err := s.pending.SetPendingApproval(token.Hex(), s.spender.Hex(), hash.Hex()); err != nil {
		return hash.Hex(), err
	}
	return hash.Hex(), nil
}

// RefreshPending checks whether the registered approval transaction for the
// trade's input token has been mined and clears the registry entry once it
// has, in either direction: success unblocks the allowance re-check, revert
// lets the user retry.
func (s *Service) RefreshPending(ctx context.Context, t *trade.Trade) (bool, error) {
	if t == nil || !t.InputAmount.Valid() {
		return false, nil
	}
	token := t.InputAmount.Currency.Address
	hash, ok, err := s.pending.PendingApproval(token.Hex(), s.spender.Hex())
	if err != nil || !ok {
		return false, err
	}
	if s.backend == nil {
		return false, nil
	}
	receipt, err := s.backend.TransactionReceipt(ctx, common.HexToHash(hash))
	if err != nil || receipt == nil {
		return false, nil
	}
	// A receipt means the transaction is mined, success or revert. Either
	// way the pending entry is stale: the next Resolve re-reads allowance.
	if err := s.pending.ClearPendingApproval(token.Hex(), s.spender.Hex()); err != nil {
		return false, err
	}
	return true, nil
}

// Signature returns the held permit signature if it still covers the given
// token and amount.
func (s *Service) Signature(token common.Address, amount *big.Int) (*SignatureData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signature.Covers(token, amount, s.now().Unix()) {
		return s.signature, true
	}
	return nil, false
}

// DropSignature discards the held permit signature, typically after it has
// been consumed by a swap submission.
func (s *Service) DropSignature() {
	s.mu.Lock()
	s.signature = nil
	s.mu.Unlock()
}
