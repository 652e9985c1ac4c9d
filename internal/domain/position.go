package domain

import "time"

// Position is a logical trade derived from the fills sharing one
// position identifier. Partial closes and adds collapse into a single
// entry (first opening fill) and a single exit (last closing fill);
// profit always sums over every constituent fill.
type Position struct {
	AccountID  string
	PositionID int64
	Magic      int64
	Symbol     string
	Direction  Direction
	Volume     float64
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   *time.Time
	ExitPrice  *float64
	Profit     float64
	Comment    string
	Closed     bool

	// Max adverse excursion, filled in only when tick history is
	// available. Nil means unknown, zero means no drawdown.
	MaxDrawdownPoints   *float64
	MaxDrawdownCurrency *float64
}

// OpenPosition is a live snapshot row from the terminal, including
// floating profit. It is replaced wholesale on every open-position
// sync and is never derived from fills.
type OpenPosition struct {
	AccountID    string
	PositionID   int64
	Magic        int64
	Symbol       string
	Direction    Direction
	Volume       float64
	EntryTime    time.Time
	EntryPrice   float64
	CurrentPrice float64
	Profit       float64
	Swap         float64
}

// RawOpenPosition is an open position as the terminal bridge reports it.
type RawOpenPosition struct {
	Ticket       int64   `json:"ticket"`
	Magic        int64   `json:"magic"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"`
	Volume       float64 `json:"volume"`
	Time         int64   `json:"time"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Swap         float64 `json:"swap"`
}
