package domain

import "time"

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// RecordKind classifies a broker execution record.
type RecordKind string

const (
	KindTrade   RecordKind = "trade"
	KindBalance RecordKind = "balance"
	KindOther   RecordKind = "other"
)

// EntrySide is the broker's entry marker on a fill: whether the fill
// opened, closed, or flipped the position it belongs to.
type EntrySide string

const (
	EntryIn    EntrySide = "in"
	EntryOut   EntrySide = "out"
	EntryInOut EntrySide = "inout"
	EntryOutBy EntrySide = "out_by"
	EntryNone  EntrySide = ""
)

// RawFill is an execution record as the terminal bridge reports it.
// Times are unix seconds in UTC, type/entry are MT5 numeric codes.
type RawFill struct {
	Ticket     int64   `json:"ticket"`
	PositionID int64   `json:"position_id"`
	Magic      int64   `json:"magic"`
	Symbol     string  `json:"symbol"`
	Type       int     `json:"type"`
	Entry      int     `json:"entry"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Time       int64   `json:"time"`
	Profit     float64 `json:"profit"`
	Commission float64 `json:"commission"`
	Swap       float64 `json:"swap"`
	Comment    string  `json:"comment"`
}

// Fill is one canonical execution record. Immutable once stored;
// (AccountID, Ticket) is the dedup key.
type Fill struct {
	AccountID  string
	Ticket     int64
	PositionID int64
	Magic      int64
	Symbol     string
	Direction  Direction
	Side       EntrySide
	Kind       RecordKind
	Volume     float64
	Price      float64
	Time       time.Time
	Profit     float64
	Commission float64
	Swap       float64
	Comment    string
}

// NetProfit is the fill's full contribution to realized profit.
func (f Fill) NetProfit() float64 {
	return f.Profit + f.Commission + f.Swap
}
