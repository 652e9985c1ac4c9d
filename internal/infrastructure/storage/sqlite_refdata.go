package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/domain"
)

// AccountStore implementation

func (s *SQLiteStore) EnsureAccount(ctx context.Context, info *domain.AccountInfo) error {
	if info == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO accounts (account_id, created_at) VALUES (?, ?)`,
		info.AccountID, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO account_info
		(account_id, login, server, currency, leverage, balance, equity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			login=excluded.login,
			server=excluded.server,
			currency=excluded.currency,
			leverage=excluded.leverage,
			balance=excluded.balance,
			equity=excluded.equity,
			updated_at=excluded.updated_at`,
		info.AccountID, info.Login, info.Server, info.Currency, info.Leverage, info.Balance, info.Equity, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, label, history_start_date, created_at FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var start sql.NullTime
		if err := rows.Scan(&a.AccountID, &a.Label, &start, &a.CreatedAt); err != nil {
			return nil, err
		}
		if start.Valid {
			t := start.Time.UTC()
			a.HistoryStart = &t
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *SQLiteStore) HistoryStart(ctx context.Context, accountID string) (*time.Time, error) {
	var start sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT history_start_date FROM accounts WHERE account_id = ?`, accountID).Scan(&start)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !start.Valid {
		return nil, nil
	}
	t := start.Time.UTC()
	return &t, nil
}

func (s *SQLiteStore) SetHistoryStart(ctx context.Context, accountID string, start *time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET history_start_date = ? WHERE account_id = ?`, start, accountID)
	return err
}

func (s *SQLiteStore) SetLabel(ctx context.Context, accountID, label string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET label = ? WHERE account_id = ?`, label, accountID)
	return err
}

// BalanceAt returns the stored terminal snapshot balance. The snapshot
// is the latest known reference; the requested time is accepted for
// interface compatibility but a historical balance series is not kept.
func (s *SQLiteStore) BalanceAt(ctx context.Context, accountID string, _ time.Time) (float64, bool, error) {
	var balance sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM account_info WHERE account_id = ?`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !balance.Valid {
		return 0, false, nil
	}
	return balance.Float64, true, nil
}

func (s *SQLiteStore) ReplaceOpenPositions(ctx context.Context, accountID string, positions []domain.OpenPosition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM open_positions WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, p := range positions {
		if _, err := tx.ExecContext(ctx, `INSERT INTO open_positions
			(account_id, position_id, magic, symbol, direction, volume, entry_time, entry_price, current_price, profit, swap, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			accountID, p.PositionID, p.Magic, p.Symbol, string(p.Direction), p.Volume,
			p.EntryTime, p.EntryPrice, p.CurrentPrice, p.Profit, p.Swap, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) OpenPositions(ctx context.Context, accountID string) ([]domain.OpenPosition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, position_id, magic, symbol, direction, volume, entry_time, entry_price, current_price, profit, swap
		FROM open_positions WHERE account_id = ? ORDER BY entry_time, position_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.OpenPosition
	for rows.Next() {
		var p domain.OpenPosition
		var direction string
		if err := rows.Scan(&p.AccountID, &p.PositionID, &p.Magic, &p.Symbol, &direction, &p.Volume,
			&p.EntryTime, &p.EntryPrice, &p.CurrentPrice, &p.Profit, &p.Swap); err != nil {
			return nil, err
		}
		p.Direction = domain.Direction(direction)
		p.EntryTime = p.EntryTime.UTC()
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// StrategyStore implementation

func (s *SQLiteStore) EnsureMagics(ctx context.Context, accountID string, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO magics (account_id, id) VALUES (?, ?)`, accountID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListMagics(ctx context.Context, accountID string) ([]domain.Magic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id, id, label FROM magics WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var magics []domain.Magic
	for rows.Next() {
		var m domain.Magic
		if err := rows.Scan(&m.AccountID, &m.ID, &m.Label); err != nil {
			return nil, err
		}
		magics = append(magics, m)
	}
	return magics, rows.Err()
}

func (s *SQLiteStore) UpdateLabels(ctx context.Context, accountID string, labels map[int64]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, label := range labels {
		if _, err := tx.ExecContext(ctx, `INSERT INTO magics (account_id, id, label) VALUES (?, ?, ?)
			ON CONFLICT(account_id, id) DO UPDATE SET label=excluded.label`, accountID, id, label); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Labels(ctx context.Context, accountID string) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label FROM magics WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(map[int64]string)
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, err
		}
		if label != "" {
			labels[id] = label
		}
	}
	return labels, rows.Err()
}

func (s *SQLiteStore) Groups(ctx context.Context, accountID string) (map[int64][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT magic_id, group_id FROM magic_group_assignments WHERE account_id = ? ORDER BY group_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make(map[int64][]int64)
	for rows.Next() {
		var magicID, groupID int64
		if err := rows.Scan(&magicID, &groupID); err != nil {
			return nil, err
		}
		groups[magicID] = append(groups[magicID], groupID)
	}
	return groups, rows.Err()
}

func (s *SQLiteStore) ListGroups(ctx context.Context, accountID string) ([]domain.MagicGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, account_id, name, label2, font_color, fill_color
		FROM magic_groups WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.MagicGroup
	for rows.Next() {
		var g domain.MagicGroup
		if err := rows.Scan(&g.ID, &g.AccountID, &g.Name, &g.Label2, &g.FontColor, &g.FillColor); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLiteStore) CreateGroup(ctx context.Context, g *domain.MagicGroup) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO magic_groups (account_id, name, label2, font_color, fill_color)
		VALUES (?, ?, ?, ?, ?)`, g.AccountID, g.Name, g.Label2, g.FontColor, g.FillColor)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateGroup(ctx context.Context, g *domain.MagicGroup) error {
	res, err := s.db.ExecContext(ctx, `UPDATE magic_groups SET name = ?, label2 = ?, font_color = ?, fill_color = ?
		WHERE id = ? AND account_id = ?`, g.Name, g.Label2, g.FontColor, g.FillColor, g.ID, g.AccountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, accountID string, groupID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM magic_group_assignments WHERE account_id = ? AND group_id = ?`, accountID, groupID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM magic_groups WHERE account_id = ? AND id = ?`, accountID, groupID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReplaceAssignments(ctx context.Context, accountID string, groupID int64, magicIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM magic_group_assignments WHERE account_id = ? AND group_id = ?`, accountID, groupID); err != nil {
		return err
	}
	for _, magicID := range magicIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO magic_group_assignments (account_id, group_id, magic_id) VALUES (?, ?, ?)`,
			accountID, groupID, magicID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
