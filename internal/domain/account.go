package domain

import "time"

// Account is a known trading account with its dashboard settings.
type Account struct {
	AccountID    string     `json:"account_id"`
	Label        string     `json:"label"`
	HistoryStart *time.Time `json:"history_start_date"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AccountInfo is the terminal-reported state of an account. Balance is
// the reference used for percent aggregates.
type AccountInfo struct {
	AccountID string  `json:"account_id"`
	Login     string  `json:"login"`
	Server    string  `json:"server"`
	Currency  string  `json:"currency"`
	Leverage  int     `json:"leverage"`
	Balance   float64 `json:"balance"`
	Equity    float64 `json:"equity"`
}

// Magic is a strategy identifier with its human label.
type Magic struct {
	AccountID string
	ID        int64
	Label     string
}

// MagicGroup is a named collection of strategy identifiers for
// aggregated reporting. A magic may belong to any number of groups.
type MagicGroup struct {
	ID        int64  `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Label2    string `json:"label2"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
}
