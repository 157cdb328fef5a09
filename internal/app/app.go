package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
	metrics "github.com/rcrowley/go-metrics"

	"rugroulette/internal/codec"
	"rugroulette/internal/derive"
	"rugroulette/internal/state"
)

const (
	AppVersion uint64 = 1
)

// RouletteApp hosts the settlement engine as a CometBFT ABCI application.
type RouletteApp struct {
	*abci.BaseApplication

	mu       sync.Mutex
	st       *state.State
	store    *state.Store
	lastHash []byte

	deriver *derive.Deriver
	rng     RandomnessSource
	faucet  bool

	logger  log.Logger
	metrics metrics.Registry
}

type Option func(*RouletteApp)

func WithLogger(logger log.Logger) Option {
	return func(a *RouletteApp) { a.logger = logger }
}

// WithRandomness replaces the default BlockEntropy outcome source.
func WithRandomness(rng RandomnessSource) Option {
	return func(a *RouletteApp) { a.rng = rng }
}

// WithFaucet enables the unsigned bank/mint tx.
func WithFaucet(enabled bool) Option {
	return func(a *RouletteApp) { a.faucet = enabled }
}

// WithProgramID binds address derivation to program instead of
// derive.DefaultProgramID.
func WithProgramID(program derive.Address) Option {
	return func(a *RouletteApp) { a.deriver = derive.NewDeriver(program) }
}

// New loads state from store and builds the app.
func New(store *state.Store, opts ...Option) (*RouletteApp, error) {
	st, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	a := &RouletteApp{
		BaseApplication: abci.NewBaseApplication(),
		st:              st,
		store:           store,
		deriver:         derive.NewDeriver(derive.DefaultProgramID),
		rng:             BlockEntropy{},
		logger:          log.NewNopLogger(),
		metrics:         metrics.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("module", ModuleName)
	if st.Height > 0 {
		a.lastHash = st.AppHash()
	}
	a.logger.Info("state loaded", "height", st.Height, "rounds", len(st.Rounds), "program", a.deriver.Program().String())
	return a, nil
}

func (a *RouletteApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "rug roulette (v1)",
		Version:          "v1",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *RouletteApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	env, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return checkTxErr(ErrInvalidRequest.Wrap(err.Error())), nil
	}
	switch env.Type {
	case codec.TypeBankMint:
		if !a.faucet {
			return checkTxErr(ErrUnauthorized.Wrap("faucet disabled")), nil
		}
	case codec.TypeBankSend, codec.TypeCreateRound, codec.TypeEnterRound,
		codec.TypeResolveRound, codec.TypeClaimPayout, codec.TypeCloseRound:
		// Stateless: nonce and signer binding are checked at execution.
		if _, err := verifyEnvelopeSignature(env); err != nil {
			return checkTxErr(err), nil
		}
	default:
		return checkTxErr(ErrInvalidRequest.Wrapf("unknown tx type: %s", env.Type)), nil
	}
	return &abci.CheckTxResponse{Code: abci.CodeTypeOK}, nil
}

func (a *RouletteApp) InitChain(_ context.Context, req *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.ChainID = req.ChainId
	a.logger.Info("init chain", "chain_id", req.ChainId)
	return &abci.InitChainResponse{}, nil
}

func (a *RouletteApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	a.st.Height = req.Height
	bc := BlockContext{
		ChainID: a.st.ChainID,
		Height:  req.Height,
		Time:    req.Time,
		Hash:    req.Hash,
	}

	var failed int
	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, bc)
		if res.Code != abci.CodeTypeOK {
			failed++
		}
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()
	metrics.GetOrRegisterTimer("block.finalize", a.metrics).UpdateSince(start)
	a.logger.Info("finalized block", "height", req.Height, "txs", len(req.Txs), "failed", failed)

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *RouletteApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Save(a.st); err != nil {
		// Returning the error halts the node rather than diverging silently.
		a.logger.Error("commit failed", "height", a.st.Height, "err", err)
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// deliverTx executes one tx against a staged copy of state. The copy
// replaces the live state only when the handler succeeds.
func (a *RouletteApp) deliverTx(txBytes []byte, bc BlockContext) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return a.txFailed("invalid", ErrInvalidRequest.Wrap(err.Error()))
	}

	staged := a.st.Clone()
	res, err := a.route(staged, env, bc)
	if err != nil {
		return a.txFailed(env.Type, err)
	}
	if err := checkTouchedRounds(staged, res); err != nil {
		// A handler broke a round invariant; never let it reach state.
		a.logger.Error("invariant violation", "type", env.Type, "err", err)
		return a.txFailed(env.Type, ErrArithmetic.Wrap(err.Error()))
	}

	a.st = staged
	metrics.GetOrRegisterCounter("tx."+env.Type+".ok", a.metrics).Inc(1)
	a.recordDomainMetrics(env.Type, res)
	return res
}

func (a *RouletteApp) route(st *state.State, env codec.TxEnvelope, bc BlockContext) (*abci.ExecTxResult, error) {
	switch env.Type {
	case codec.TypeBankMint:
		if !a.faucet {
			return nil, ErrUnauthorized.Wrap("faucet disabled")
		}
		msg, err := decodeValue[codec.BankMintTx](env)
		if err != nil {
			return nil, err
		}
		return bankMint(st, msg)

	case codec.TypeBankSend:
		msg, err := decodeValue[codec.BankSendTx](env)
		if err != nil {
			return nil, err
		}
		if err := requireAccountAuth(st, env, msg.From); err != nil {
			return nil, err
		}
		return bankSend(st, msg)

	case codec.TypeCreateRound:
		msg, err := decodeValue[codec.CreateRoundTx](env)
		if err != nil {
			return nil, err
		}
		if err := requireAccountAuth(st, env, msg.Authority); err != nil {
			return nil, err
		}
		res, err := rouletteCreateRound(st, a.deriver, msg)
		if err == nil {
			a.logger.Info("round created", "authority", msg.Authority.String(), "entry_fee", msg.EntryFee)
		}
		return res, err

	case codec.TypeEnterRound:
		msg, err := decodeValue[codec.EnterRoundTx](env)
		if err != nil {
			return nil, err
		}
		if err := requireAccountAuth(st, env, msg.Participant); err != nil {
			return nil, err
		}
		return rouletteEnterRound(st, a.deriver, msg)

	case codec.TypeResolveRound:
		msg, err := decodeValue[codec.ResolveRoundTx](env)
		if err != nil {
			return nil, err
		}
		if err := requireAccountAuth(st, env, msg.Authority); err != nil {
			return nil, err
		}
		res, err := rouletteResolveRound(st, a.rng, bc, msg)
		if err == nil {
			r := st.Round(msg.Round)
			a.logger.Info("round resolved", "round", msg.Round.String(), "outcome", r.ResolvedOutcome.Index, "survivors", r.SurvivorCount())
		}
		return res, err

	case codec.TypeClaimPayout:
		msg, err := decodeValue[codec.ClaimPayoutTx](env)
		if err != nil {
			return nil, err
		}
		if err := requireAccountAuth(st, env, msg.Participant); err != nil {
			return nil, err
		}
		return rouletteClaimPayout(st, a.deriver, msg)

	case codec.TypeCloseRound:
		msg, err := decodeValue[codec.CloseRoundTx](env)
		if err != nil {
			return nil, err
		}
		if err := requireAccountAuth(st, env, msg.Authority); err != nil {
			return nil, err
		}
		res, err := rouletteCloseRound(st, a.deriver, msg)
		if err == nil {
			a.logger.Info("round closed", "round", msg.Round.String())
		}
		return res, err

	default:
		return nil, ErrInvalidRequest.Wrapf("unknown tx type: %s", env.Type)
	}
}

func decodeValue[T any](env codec.TxEnvelope) (T, error) {
	var msg T
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return msg, ErrInvalidRequest.Wrapf("bad %s value: %v", env.Type, err)
	}
	return msg, nil
}

// checkTouchedRounds re-checks the invariants of every round named in the
// result events.
func checkTouchedRounds(st *state.State, res *abci.ExecTxResult) error {
	for _, ev := range res.Events {
		raw := eventAttr(ev, "round")
		if raw == "" {
			continue
		}
		id, err := derive.ParseAddress(raw)
		if err != nil {
			return err
		}
		r := st.Round(id)
		if r == nil {
			return fmt.Errorf("event names unknown round %s", id)
		}
		if err := r.CheckInvariants(); err != nil {
			return fmt.Errorf("round %s: %w", id, err)
		}
	}
	return nil
}

func (a *RouletteApp) recordDomainMetrics(typ string, res *abci.ExecTxResult) {
	switch typ {
	case codec.TypeCreateRound:
		metrics.GetOrRegisterCounter("roulette.rounds", a.metrics).Inc(1)
	case codec.TypeEnterRound:
		metrics.GetOrRegisterCounter("roulette.entries", a.metrics).Inc(1)
	case codec.TypeClaimPayout:
		metrics.GetOrRegisterCounter("roulette.claims", a.metrics).Inc(1)
		for _, ev := range res.Events {
			if ev.Type != EventTypePayoutClaimed {
				continue
			}
			amount, err := strconv.ParseUint(eventAttr(ev, "amount"), 10, 64)
			if err != nil {
				continue
			}
			// Counters are int64; saturate rather than wrap.
			c := metrics.GetOrRegisterCounter("roulette.paid_out", a.metrics)
			if room := uint64(math.MaxInt64 - c.Count()); amount > room {
				amount = room
			}
			c.Inc(int64(amount))
		}
	}
}

func (a *RouletteApp) txFailed(typ string, err error) *abci.ExecTxResult {
	metrics.GetOrRegisterCounter("tx."+typ+".failed", a.metrics).Inc(1)
	a.logger.Debug("tx rejected", "type", typ, "err", err)
	return errResult(err)
}

func errResult(err error) *abci.ExecTxResult {
	codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.ExecTxResult{Codespace: codespace, Code: code, Log: logMsg}
}

func checkTxErr(err error) *abci.CheckTxResponse {
	codespace, code, logMsg := errorsmod.ABCIInfo(err, false)
	return &abci.CheckTxResponse{Codespace: codespace, Code: code, Log: logMsg}
}

func eventAttr(ev abci.Event, key string) string {
	for _, at := range ev.Attributes {
		if at.Key == key {
			return at.Value
		}
	}
	return ""
}
