package app

import (
	"context"
	"encoding/json"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"
	metrics "github.com/rcrowley/go-metrics"

	"rugroulette/internal/derive"
	"rugroulette/internal/state"
	"rugroulette/internal/units"
)

// RoundView is the read model of a round returned by /round queries. The
// *Amount fields repeat base-unit values in decimal units.
type RoundView struct {
	ID             derive.Address `json:"id"`
	Vault          derive.Address `json:"vault"`
	VaultBalance   uint64         `json:"vaultBalance"`
	SurvivorCount  uint32         `json:"survivorCount"`
	PotAmount      string         `json:"potAmount"`
	EntryFeeAmount string         `json:"entryFeeAmount"`
	*state.Round
}

type EntryView struct {
	ID derive.Address `json:"id"`
	*state.Entry
}

func (a *RouletteApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /account/<addr>
	// - /round/<addr>
	// - /round/by-authority/<addr>
	// - /entry/<round>/<participant>
	// - /vault/<round>
	// - /rounds
	// - /metrics
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/rounds":
		return a.queryOK(a.st.SortedRoundIDs())

	case path == "/metrics":
		return a.queryOK(snapshotMetrics(a.metrics))

	case strings.HasPrefix(path, "/account/"):
		addr, err := derive.ParseAddress(strings.TrimPrefix(path, "/account/"))
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("invalid address: %v", err))
		}
		balance := a.st.Balance(addr)
		return a.queryOK(map[string]any{"addr": addr, "balance": balance, "amount": units.FormatAmount(balance)})

	case strings.HasPrefix(path, "/round/by-authority/"):
		authority, err := derive.ParseAddress(strings.TrimPrefix(path, "/round/by-authority/"))
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("invalid authority: %v", err))
		}
		id, _, err := a.deriver.Round(authority)
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("derive round: %v", err))
		}
		return a.queryRound(id)

	case strings.HasPrefix(path, "/round/"):
		id, err := derive.ParseAddress(strings.TrimPrefix(path, "/round/"))
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("invalid round: %v", err))
		}
		return a.queryRound(id)

	case strings.HasPrefix(path, "/entry/"):
		parts := strings.Split(strings.TrimPrefix(path, "/entry/"), "/")
		if len(parts) != 2 {
			return a.queryErr(ErrInvalidRequest.Wrap("want /entry/<round>/<participant>"))
		}
		round, err := derive.ParseAddress(parts[0])
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("invalid round: %v", err))
		}
		participant, err := derive.ParseAddress(parts[1])
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("invalid participant: %v", err))
		}
		id, _, err := a.deriver.Entry(round, participant)
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("derive entry: %v", err))
		}
		e := a.st.Entry(id)
		if e == nil {
			return a.queryErr(ErrAccountNotFound.Wrapf("entry %s", id))
		}
		return a.queryOK(EntryView{ID: id, Entry: e})

	case strings.HasPrefix(path, "/vault/"):
		round, err := derive.ParseAddress(strings.TrimPrefix(path, "/vault/"))
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("invalid round: %v", err))
		}
		vault, _, err := a.deriver.Vault(round)
		if err != nil {
			return a.queryErr(ErrInvalidRequest.Wrapf("derive vault: %v", err))
		}
		balance := a.st.Balance(vault)
		return a.queryOK(map[string]any{"round": round, "vault": vault, "balance": balance, "amount": units.FormatAmount(balance)})

	default:
		return a.queryErr(ErrInvalidRequest.Wrapf("unknown query path %q", path))
	}
}

func (a *RouletteApp) queryRound(id derive.Address) (*abci.QueryResponse, error) {
	r := a.st.Round(id)
	if r == nil {
		return a.queryErr(ErrAccountNotFound.Wrapf("round %s", id))
	}
	vault, _, err := a.deriver.Vault(id)
	if err != nil {
		return a.queryErr(ErrInvalidRequest.Wrapf("derive vault: %v", err))
	}
	return a.queryOK(RoundView{
		ID:             id,
		Vault:          vault,
		VaultBalance:   a.st.Balance(vault),
		SurvivorCount:  r.SurvivorCount(),
		PotAmount:      units.FormatAmount(r.Pot),
		EntryFeeAmount: units.FormatAmount(r.EntryFee),
		Round:          r,
	})
}

func (a *RouletteApp) queryOK(v any) (*abci.QueryResponse, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return a.queryErr(ErrInvalidRequest.Wrapf("encode response: %v", err))
	}
	return &abci.QueryResponse{Code: abci.CodeTypeOK, Value: b, Height: a.st.Height}, nil
}

func (a *RouletteApp) queryErr(err error) (*abci.QueryResponse, error) {
	res := errResult(err)
	return &abci.QueryResponse{Codespace: res.Codespace, Code: res.Code, Log: res.Log, Height: a.st.Height}, nil
}

// snapshotMetrics flattens the registry into name -> value for JSON.
func snapshotMetrics(r metrics.Registry) map[string]any {
	out := map[string]any{}
	r.Each(func(name string, m interface{}) {
		switch m := m.(type) {
		case metrics.Counter:
			out[name] = m.Count()
		case metrics.Timer:
			s := m.Snapshot()
			out[name] = map[string]any{
				"count":  s.Count(),
				"meanNs": s.Mean(),
				"maxNs":  s.Max(),
			}
		}
	})
	return out
}
