package domain

import (
	"context"
	"time"
)

// Terminal is the trading terminal bridge. It is a single blocking
// connection shared process-wide; callers must serialize access
// through the sync worker pool.
type Terminal interface {
	IsAuthenticated(ctx context.Context, accountID string) (bool, error)
	AccountInfo(ctx context.Context, accountID string) (*AccountInfo, error)
	FetchFills(ctx context.Context, accountID string, from, to time.Time) ([]RawFill, error)
	FetchOpenPositions(ctx context.Context, accountID string) ([]RawOpenPosition, *AccountInfo, error)
}

// FillRepository stores immutable execution records.
type FillRepository interface {
	// UpsertFills inserts fills, skipping tickets already stored for
	// the account, and returns only the genuinely new ones.
	UpsertFills(ctx context.Context, accountID string, fills []Fill) ([]Fill, error)
	FillsByPosition(ctx context.Context, accountID string, positionID int64) ([]Fill, error)
}

// PositionRepository stores derived positions and their drawdowns.
type PositionRepository interface {
	// UpsertPosition overwrites the derived row for the position's
	// identifier and reports whether it was newly created.
	UpsertPosition(ctx context.Context, p *Position) (created bool, err error)
	// ClosedByExitWindow returns closed positions whose exit time
	// falls inside [from, to].
	ClosedByExitWindow(ctx context.Context, accountID string, from, to time.Time) ([]Position, error)
	// ClosedByEntryWindow returns closed positions for one magic whose
	// entry time falls inside [from, to].
	ClosedByEntryWindow(ctx context.Context, accountID string, magic int64, from, to time.Time) ([]Position, error)
	// OpenByEntryWindow returns still-open derived positions entered
	// inside [from, to].
	OpenByEntryWindow(ctx context.Context, accountID string, from, to time.Time) ([]Position, error)
	SaveDrawdown(ctx context.Context, accountID string, positionID int64, points, currency float64) error
}

// StrategyProvider resolves magics to labels and group memberships.
// The aggregation core treats these as opaque lookup keys.
type StrategyProvider interface {
	Labels(ctx context.Context, accountID string) (map[int64]string, error)
	// Groups maps magic -> ids of every group it belongs to.
	Groups(ctx context.Context, accountID string) (map[int64][]int64, error)
	ListGroups(ctx context.Context, accountID string) ([]MagicGroup, error)
}

// StrategyStore owns label/group lifecycle for the management surface.
type StrategyStore interface {
	StrategyProvider
	EnsureMagics(ctx context.Context, accountID string, ids []int64) error
	ListMagics(ctx context.Context, accountID string) ([]Magic, error)
	UpdateLabels(ctx context.Context, accountID string, labels map[int64]string) error
	CreateGroup(ctx context.Context, g *MagicGroup) (int64, error)
	UpdateGroup(ctx context.Context, g *MagicGroup) error
	DeleteGroup(ctx context.Context, accountID string, groupID int64) error
	ReplaceAssignments(ctx context.Context, accountID string, groupID int64, magicIDs []int64) error
}

// AccountStore keeps accounts, terminal snapshots, and the balance
// reference used for percent aggregates.
type AccountStore interface {
	EnsureAccount(ctx context.Context, info *AccountInfo) error
	ListAccounts(ctx context.Context) ([]Account, error)
	HistoryStart(ctx context.Context, accountID string) (*time.Time, error)
	SetHistoryStart(ctx context.Context, accountID string, start *time.Time) error
	SetLabel(ctx context.Context, accountID, label string) error
	// BalanceAt returns the balance reference for the account. The
	// stored terminal snapshot is the reference; ok is false when none
	// has been recorded yet.
	BalanceAt(ctx context.Context, accountID string, at time.Time) (balance float64, ok bool, err error)
	ReplaceOpenPositions(ctx context.Context, accountID string, positions []OpenPosition) error
	OpenPositions(ctx context.Context, accountID string) ([]OpenPosition, error)
}

// Tick is one quote from the price-series collaborator.
type Tick struct {
	Time time.Time
	Bid  float64
	Ask  float64
}

// SymbolInfo carries the contract arithmetic needed to convert a price
// excursion into points and account currency.
type SymbolInfo struct {
	Point     float64 `json:"point"`
	TickSize  float64 `json:"tick_size"`
	TickValue float64 `json:"tick_value"`
}

// TickSource provides historical quotes for drawdown computation. It
// is optional; without it drawdown fields stay nil.
type TickSource interface {
	Ticks(ctx context.Context, symbol string, from, to time.Time) ([]Tick, error)
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
}
