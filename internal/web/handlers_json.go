package web

import (
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
)

// positionJSON is the wire shape of one derived position. Times are
// RFC3339 UTC; drawdown fields are null when unknown.
type positionJSON struct {
	AccountID  string   `json:"account_id"`
	PositionID int64    `json:"position_id"`
	Magic      int64    `json:"magic"`
	Symbol     string   `json:"symbol"`
	Direction  string   `json:"direction"`
	Volume     float64  `json:"volume"`
	EntryTime  string   `json:"entry_time"`
	EntryPrice float64  `json:"entry_price"`
	ExitTime   *string  `json:"exit_time"`
	ExitPrice  *float64 `json:"exit_price"`
	Profit     float64  `json:"profit"`
	Comment    string   `json:"comment,omitempty"`
	Status     string   `json:"status"`
	DDPoints   *float64 `json:"max_drawdown_points"`
	DDCurrency *float64 `json:"max_drawdown_currency"`
}

func positionsJSON(positions []domain.Position) []positionJSON {
	out := make([]positionJSON, 0, len(positions))
	for _, p := range positions {
		j := positionJSON{
			AccountID:  p.AccountID,
			PositionID: p.PositionID,
			Magic:      p.Magic,
			Symbol:     p.Symbol,
			Direction:  string(p.Direction),
			Volume:     p.Volume,
			EntryTime:  p.EntryTime.UTC().Format(time.RFC3339),
			EntryPrice: p.EntryPrice,
			ExitPrice:  p.ExitPrice,
			Profit:     p.Profit,
			Comment:    p.Comment,
			Status:     "open",
			DDPoints:   p.MaxDrawdownPoints,
			DDCurrency: p.MaxDrawdownCurrency,
		}
		if p.Closed {
			j.Status = "closed"
		}
		if p.ExitTime != nil {
			t := p.ExitTime.UTC().Format(time.RFC3339)
			j.ExitTime = &t
		}
		out = append(out, j)
	}
	return out
}

type pairJSON struct {
	Kind        usecase.PairKind `json:"kind"`
	A           *positionJSON    `json:"account1,omitempty"`
	B           *positionJSON    `json:"account2,omitempty"`
	TimeDiffSec float64          `json:"time_diff_sec"`
}

type compareJSON struct {
	Pairs   []pairJSON             `json:"pairs"`
	Summary usecase.CompareSummary `json:"summary"`
}

func compareResultJSON(result *usecase.CompareResult) compareJSON {
	out := compareJSON{Pairs: make([]pairJSON, 0, len(result.Pairs)), Summary: result.Summary}
	for _, p := range result.Pairs {
		out.Pairs = append(out.Pairs, pairJSON{
			Kind:        p.Kind,
			A:           onePositionJSON(p.A),
			B:           onePositionJSON(p.B),
			TimeDiffSec: p.TimeDiffSec,
		})
	}
	return out
}

func onePositionJSON(p *domain.Position) *positionJSON {
	if p == nil {
		return nil
	}
	converted := positionsJSON([]domain.Position{*p})
	return &converted[0]
}
