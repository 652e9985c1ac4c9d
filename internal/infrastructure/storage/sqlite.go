package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// SQLiteStore implements the fill, position, strategy, and account
// repositories on one sqlite database. Sqlite is a single-writer
// engine; fill batches go in one transaction and each derived position
// is overwritten by a single statement, so readers see either the
// pre-sync or the post-sync row, never a torn one.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			history_start_date DATETIME,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS account_info (
			account_id TEXT PRIMARY KEY REFERENCES accounts(account_id),
			login TEXT,
			server TEXT,
			currency TEXT,
			leverage INTEGER,
			balance REAL,
			equity REAL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fills (
			account_id TEXT NOT NULL,
			ticket INTEGER NOT NULL,
			position_id INTEGER NOT NULL,
			magic INTEGER NOT NULL DEFAULT 0,
			symbol TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL DEFAULT '',
			entry_side TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			volume REAL NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			time DATETIME NOT NULL,
			profit REAL NOT NULL DEFAULT 0,
			commission REAL NOT NULL DEFAULT 0,
			swap REAL NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, ticket)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fills_account_position ON fills(account_id, position_id);`,
		`CREATE TABLE IF NOT EXISTS positions (
			account_id TEXT NOT NULL,
			position_id INTEGER NOT NULL,
			magic INTEGER NOT NULL DEFAULT 0,
			symbol TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL DEFAULT '',
			volume REAL NOT NULL DEFAULT 0,
			entry_time DATETIME NOT NULL,
			entry_price REAL NOT NULL DEFAULT 0,
			exit_time DATETIME,
			exit_price REAL,
			profit REAL NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			is_closed BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (account_id, position_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account_exit ON positions(account_id, exit_time);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account_entry ON positions(account_id, entry_time);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account_magic ON positions(account_id, magic);`,
		`CREATE TABLE IF NOT EXISTS position_drawdowns (
			account_id TEXT NOT NULL,
			position_id INTEGER NOT NULL,
			max_drawdown_points REAL,
			max_drawdown_currency REAL,
			calculated_at DATETIME NOT NULL,
			PRIMARY KEY (account_id, position_id)
		);`,
		`CREATE TABLE IF NOT EXISTS open_positions (
			account_id TEXT NOT NULL,
			position_id INTEGER NOT NULL,
			magic INTEGER NOT NULL DEFAULT 0,
			symbol TEXT NOT NULL DEFAULT '',
			direction TEXT NOT NULL DEFAULT '',
			volume REAL NOT NULL DEFAULT 0,
			entry_time DATETIME NOT NULL,
			entry_price REAL NOT NULL DEFAULT 0,
			current_price REAL NOT NULL DEFAULT 0,
			profit REAL NOT NULL DEFAULT 0,
			swap REAL NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (account_id, position_id)
		);`,
		`CREATE TABLE IF NOT EXISTS magics (
			account_id TEXT NOT NULL,
			id INTEGER NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS magic_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL,
			name TEXT NOT NULL,
			label2 TEXT NOT NULL DEFAULT '',
			font_color TEXT NOT NULL DEFAULT '',
			fill_color TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_magic_groups_account ON magic_groups(account_id);`,
		`CREATE TABLE IF NOT EXISTS magic_group_assignments (
			account_id TEXT NOT NULL,
			group_id INTEGER NOT NULL,
			magic_id INTEGER NOT NULL,
			PRIMARY KEY (account_id, group_id, magic_id)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// FillRepository implementation

func (s *SQLiteStore) UpsertFills(ctx context.Context, accountID string, fills []domain.Fill) ([]domain.Fill, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO fills
		(account_id, ticket, position_id, magic, symbol, direction, entry_side, kind, volume, price, time, profit, commission, swap, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var inserted []domain.Fill
	for _, f := range fills {
		res, err := stmt.ExecContext(ctx,
			accountID, f.Ticket, f.PositionID, f.Magic, f.Symbol, string(f.Direction), string(f.Side), string(f.Kind),
			f.Volume, f.Price, f.Time, f.Profit, f.Commission, f.Swap, f.Comment)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			inserted = append(inserted, f)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *SQLiteStore) FillsByPosition(ctx context.Context, accountID string, positionID int64) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, ticket, position_id, magic, symbol, direction, entry_side, kind, volume, price, time, profit, commission, swap, comment
		FROM fills WHERE account_id = ? AND position_id = ? ORDER BY time, ticket`, accountID, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var direction, side, kind string
		if err := rows.Scan(&f.AccountID, &f.Ticket, &f.PositionID, &f.Magic, &f.Symbol, &direction, &side, &kind,
			&f.Volume, &f.Price, &f.Time, &f.Profit, &f.Commission, &f.Swap, &f.Comment); err != nil {
			return nil, err
		}
		f.Direction = domain.Direction(direction)
		f.Side = domain.EntrySide(side)
		f.Kind = domain.RecordKind(kind)
		f.Time = f.Time.UTC()
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// PositionRepository implementation

func (s *SQLiteStore) UpsertPosition(ctx context.Context, p *domain.Position) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM positions WHERE account_id = ? AND position_id = ?)`,
		p.AccountID, p.PositionID).Scan(&exists); err != nil {
		return false, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO positions
		(account_id, position_id, magic, symbol, direction, volume, entry_time, entry_price, exit_time, exit_price, profit, comment, is_closed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, position_id) DO UPDATE SET
			magic=excluded.magic,
			symbol=excluded.symbol,
			direction=excluded.direction,
			volume=excluded.volume,
			entry_time=excluded.entry_time,
			entry_price=excluded.entry_price,
			exit_time=excluded.exit_time,
			exit_price=excluded.exit_price,
			profit=excluded.profit,
			comment=excluded.comment,
			is_closed=excluded.is_closed,
			updated_at=excluded.updated_at`,
		p.AccountID, p.PositionID, p.Magic, p.Symbol, string(p.Direction), p.Volume,
		p.EntryTime, p.EntryPrice, p.ExitTime, p.ExitPrice, p.Profit, p.Comment, p.Closed, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return !exists, nil
}

const positionColumns = `p.account_id, p.position_id, p.magic, p.symbol, p.direction, p.volume,
	p.entry_time, p.entry_price, p.exit_time, p.exit_price, p.profit, p.comment, p.is_closed,
	d.max_drawdown_points, d.max_drawdown_currency`

const positionJoin = `FROM positions p
	LEFT JOIN position_drawdowns d ON d.account_id = p.account_id AND d.position_id = p.position_id`

func (s *SQLiteStore) ClosedByExitWindow(ctx context.Context, accountID string, from, to time.Time) ([]domain.Position, error) {
	return s.queryPositions(ctx, `SELECT `+positionColumns+` `+positionJoin+`
		WHERE p.account_id = ? AND p.is_closed = 1 AND p.exit_time IS NOT NULL AND p.exit_time >= ? AND p.exit_time <= ?
		ORDER BY p.exit_time, p.position_id`, accountID, from, to)
}

func (s *SQLiteStore) ClosedByEntryWindow(ctx context.Context, accountID string, magic int64, from, to time.Time) ([]domain.Position, error) {
	return s.queryPositions(ctx, `SELECT `+positionColumns+` `+positionJoin+`
		WHERE p.account_id = ? AND p.magic = ? AND p.is_closed = 1 AND p.entry_time >= ? AND p.entry_time <= ?
		ORDER BY p.entry_time, p.position_id`, accountID, magic, from, to)
}

func (s *SQLiteStore) OpenByEntryWindow(ctx context.Context, accountID string, from, to time.Time) ([]domain.Position, error) {
	return s.queryPositions(ctx, `SELECT `+positionColumns+` `+positionJoin+`
		WHERE p.account_id = ? AND p.is_closed = 0 AND p.entry_time >= ? AND p.entry_time <= ?
		ORDER BY p.entry_time, p.position_id`, accountID, from, to)
}

func (s *SQLiteStore) queryPositions(ctx context.Context, query string, args ...any) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var direction string
		var exitTime sql.NullTime
		var exitPrice, ddPoints, ddCurrency sql.NullFloat64
		if err := rows.Scan(&p.AccountID, &p.PositionID, &p.Magic, &p.Symbol, &direction, &p.Volume,
			&p.EntryTime, &p.EntryPrice, &exitTime, &exitPrice, &p.Profit, &p.Comment, &p.Closed,
			&ddPoints, &ddCurrency); err != nil {
			return nil, err
		}
		p.Direction = domain.Direction(direction)
		p.EntryTime = p.EntryTime.UTC()
		if exitTime.Valid {
			t := exitTime.Time.UTC()
			p.ExitTime = &t
		}
		if exitPrice.Valid {
			v := exitPrice.Float64
			p.ExitPrice = &v
		}
		if ddPoints.Valid {
			v := ddPoints.Float64
			p.MaxDrawdownPoints = &v
		}
		if ddCurrency.Valid {
			v := ddCurrency.Float64
			p.MaxDrawdownCurrency = &v
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) SaveDrawdown(ctx context.Context, accountID string, positionID int64, points, currency float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO position_drawdowns
		(account_id, position_id, max_drawdown_points, max_drawdown_currency, calculated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id, position_id) DO UPDATE SET
			max_drawdown_points=excluded.max_drawdown_points,
			max_drawdown_currency=excluded.max_drawdown_currency,
			calculated_at=excluded.calculated_at`,
		accountID, positionID, points, currency, time.Now().UTC())
	return err
}
