/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Stores everything the settlement calculator does not hold in memory:
  users, members and their outstanding advances, the weekly advance log,
  finalized settlements with their per-member items, the running debt
  ledger, notifications, and the audit log.

KEY TABLES:
  users:            Login accounts (admin / user roles)
  members:          Payout recipients and their outstanding advances
  weekly_advances:  Money drawn ahead of settlement, keyed by week
  settlements:      One row per finalized week (week_start is unique)
  settlement_items: Per-member share/advance/payout rows
  debt:             Single-row running debt ledger
  notifications:    In-app messages per user
  audit_log:        Who did what, when

MONEY AND DATES:
  Monetary columns are TEXT holding decimal strings - the same
  representation the computation layer uses - so no precision is lost
  crossing the database boundary. Dates are TEXT in 2006-01-02 form;
  timestamps are RFC3339.

CONCURRENCY:
  sync.RWMutex on top of WAL mode. One logical writer at a time is all
  this workload needs; the uniqueness constraint on
  settlements.week_start is the last line of defense against settling
  the same week twice.

USAGE:
  store, err := sqlite.New("./data/settlements.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  Use ":memory:" for tests.

SEE ALSO:
  - settlement/calc.go: The computation the settlement rows snapshot
  - settlement/debt.go: The ledger transitions persisted in the debt row
  - api/handlers.go: The HTTP layer driving this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/dukabooks/settlement-engine/settlement"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWeekAlreadySettled is returned when a settlement already exists
	// for the requested week.
	ErrWeekAlreadySettled = errors.New("settlement already exists for this week")

	// ErrDuplicateUser is returned when a username or email is taken.
	ErrDuplicateUser = errors.New("username or email already exists")

	// ErrSettlementCompleted is returned when trying to delete a
	// settlement whose payouts have already been marked paid.
	ErrSettlementCompleted = errors.New("cannot delete a completed settlement")
)

// =============================================================================
// RECORDS
// =============================================================================

// User is a login account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Active       bool
	CreatedAt    time.Time
}

// Member is a payout recipient. OutstandingAdvance is the running total
// of money drawn ahead of settlements, maintained by the advance
// operations.
type Member struct {
	Name               string
	OutstandingAdvance decimal.Decimal
}

// Advance is one draw against a member's future payout.
type Advance struct {
	ID          string
	MemberName  string
	Amount      decimal.Decimal
	AdvanceDate time.Time
	WeekStart   time.Time
	WeekEnd     time.Time
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

// Settlement is one finalized week.
type Settlement struct {
	ID        string
	WeekStart time.Time
	WeekEnd   time.Time

	Income           decimal.Decimal
	Expenses         decimal.Decimal
	Salary           decimal.Decimal
	DebtDue          decimal.Decimal
	Rent             decimal.Decimal
	Milk             decimal.Decimal
	TotalAdvances    decimal.Decimal
	NetDistributable decimal.Decimal

	OperatorSubstitute bool

	CreatedBy string
	CreatedAt time.Time

	Completed   bool
	CompletedAt *time.Time
	CompletedBy string
}

// SettlementItem is one member's line in a settlement.
type SettlementItem struct {
	ID           string
	SettlementID string
	MemberName   string
	ShareRatio   decimal.Decimal
	GrossShare   decimal.Decimal
	Advance      decimal.Decimal
	NetPayout    decimal.Decimal

	Paid       bool
	PaidAt     *time.Time
	ReceivedAt *time.Time
}

// Notification is an in-app message for a user.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}

// AuditEntry records one administrative action.
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Details   string
	CreatedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store implements persistence on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		name TEXT PRIMARY KEY,
		outstanding_advance TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS weekly_advances (
		id TEXT PRIMARY KEY,
		member_name TEXT NOT NULL,
		amount TEXT NOT NULL,
		advance_date TEXT NOT NULL,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		description TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_advances_week
		ON weekly_advances(week_start, week_end);
	CREATE INDEX IF NOT EXISTS idx_advances_member
		ON weekly_advances(member_name);

	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		week_start TEXT NOT NULL,
		week_end TEXT NOT NULL,
		income TEXT NOT NULL,
		expenses TEXT NOT NULL,
		salary TEXT NOT NULL,
		debt_due TEXT NOT NULL,
		rent TEXT NOT NULL,
		milk TEXT NOT NULL,
		total_advances TEXT NOT NULL,
		net_distributable TEXT NOT NULL,
		operator_substitute INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		completed_by TEXT
	);

	-- One settlement per week. The handlers check first; this constraint
	-- closes the race.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_settlements_week
		ON settlements(week_start);

	CREATE TABLE IF NOT EXISTS settlement_items (
		id TEXT PRIMARY KEY,
		settlement_id TEXT NOT NULL REFERENCES settlements(id) ON DELETE CASCADE,
		member_name TEXT NOT NULL,
		share_ratio TEXT NOT NULL,
		gross_share TEXT NOT NULL,
		advance TEXT NOT NULL,
		net_payout TEXT NOT NULL,
		paid INTEGER NOT NULL DEFAULT 0,
		paid_at TEXT,
		received_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_settlement
		ON settlement_items(settlement_id);
	CREATE INDEX IF NOT EXISTS idx_items_member
		ON settlement_items(member_name);

	CREATE TABLE IF NOT EXISTS debt (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_debt TEXT NOT NULL DEFAULT '0',
		remaining_debt TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT,
		read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user
		ON notifications(user_id, read);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		details TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

// CreateUser inserts a login account.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, boolInt(u.Active),
		timestamp(u.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername returns the user with the given username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, active, created_at
		 FROM users WHERE username = ?`, username))
}

// GetUserByID returns the user with the given id.
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, active, created_at
		 FROM users WHERE id = ?`, id))
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, role, active, created_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u         User
			active    int
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
			&u.Role, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Active = active != 0
		u.CreatedAt = parseTimestamp(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser overwrites an account's email, role, and active flag.
func (s *Store) UpdateUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, role = ?, active = ? WHERE id = ?`,
		u.Email, u.Role, boolInt(u.Active), u.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res)
}

// SetUserActive enables or disables an account. A disabled account
// cannot log in.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active = ? WHERE id = ?`, boolInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRow(res)
}

// CountUsers returns the number of accounts. The first registered
// account is promoted to admin.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u         User
		active    int
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Active = active != 0
	u.CreatedAt = parseTimestamp(createdAt)
	return u, nil
}

// =============================================================================
// MEMBERS
// =============================================================================

// EnsureMembers creates a members row for each configured name that is
// missing one. Called at startup with the share table's member list.
func (s *Store) EnsureMembers(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO members (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
		if err != nil {
			return fmt.Errorf("failed to ensure member %s: %w", name, err)
		}
	}
	return nil
}

// ListMembers returns all members sorted by name.
func (s *Store) ListMembers(ctx context.Context) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, outstanding_advance FROM members ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var (
			m   Member
			adv string
		)
		if err := rows.Scan(&m.Name, &adv); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.OutstandingAdvance = parseDecimal(adv)
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetMember returns a single member by name.
func (s *Store) GetMember(ctx context.Context, name string) (Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var adv string
	m := Member{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT outstanding_advance FROM members WHERE name = ?`, name).Scan(&adv)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	m.OutstandingAdvance = parseDecimal(adv)
	return m, nil
}

// SetOutstandingAdvance overwrites a member's outstanding advance.
func (s *Store) SetOutstandingAdvance(ctx context.Context, name string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET outstanding_advance = ? WHERE name = ?`, amount.String(), name)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return requireRow(res)
}

// adjustOutstandingAdvance adds delta to a member's outstanding advance
// within the caller's transaction.
func adjustOutstandingAdvance(ctx context.Context, tx *sql.Tx, name string, delta decimal.Decimal) error {
	var current string
	err := tx.QueryRowContext(ctx,
		`SELECT outstanding_advance FROM members WHERE name = ?`, name).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read member: %w", err)
	}

	next := parseDecimal(current).Add(delta)
	_, err = tx.ExecContext(ctx,
		`UPDATE members SET outstanding_advance = ? WHERE name = ?`, next.String(), name)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// consumedAdvance is how much of an item's advance its gross share
// actually covered. A zero-net week or an over-advanced member leaves
// the difference outstanding.
func consumedAdvance(advance, grossShare decimal.Decimal) decimal.Decimal {
	return decimal.Min(advance, grossShare)
}

// =============================================================================
// ADVANCES
// =============================================================================

// AddAdvance records an advance and bumps the member's outstanding
// balance in the same transaction.
func (s *Store) AddAdvance(ctx context.Context, a Advance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO weekly_advances
		(id, member_name, amount, advance_date, week_start, week_end, description, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MemberName, a.Amount.String(), dateString(a.AdvanceDate),
		dateString(a.WeekStart), dateString(a.WeekEnd),
		nullString(a.Description), nullString(a.CreatedBy), timestamp(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to add advance: %w", err)
	}

	if err := adjustOutstandingAdvance(ctx, tx, a.MemberName, a.Amount); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteAdvance removes an advance and restores the member's outstanding
// balance. Returns the deleted advance.
func (s *Store) DeleteAdvance(ctx context.Context, id string) (Advance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Advance{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, member_name, amount, advance_date, week_start, week_end,
		       description, created_by, created_at
		FROM weekly_advances WHERE id = ?`, id)
	a, err := scanAdvance(row)
	if err != nil {
		return Advance{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM weekly_advances WHERE id = ?`, id); err != nil {
		return Advance{}, fmt.Errorf("failed to delete advance: %w", err)
	}
	if err := adjustOutstandingAdvance(ctx, tx, a.MemberName, a.Amount.Neg()); err != nil {
		return Advance{}, err
	}
	return a, tx.Commit()
}

// ListAdvancesForWeek returns the advances recorded for a week, newest
// first.
func (s *Store) ListAdvancesForWeek(ctx context.Context, weekStart, weekEnd time.Time) ([]Advance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_name, amount, advance_date, week_start, week_end,
		       description, created_by, created_at
		FROM weekly_advances
		WHERE week_start = ? AND week_end = ?
		ORDER BY created_at DESC`,
		dateString(weekStart), dateString(weekEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to list advances: %w", err)
	}
	defer rows.Close()

	var advances []Advance
	for rows.Next() {
		a, err := scanAdvance(rows)
		if err != nil {
			return nil, err
		}
		advances = append(advances, a)
	}
	return advances, rows.Err()
}

// AdvanceTotalsForWeek sums advances per member for a week - the exact
// shape the calculator consumes.
func (s *Store) AdvanceTotalsForWeek(ctx context.Context, weekStart, weekEnd time.Time) (map[string]decimal.Decimal, error) {
	advances, err := s.ListAdvancesForWeek(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, a := range advances {
		totals[a.MemberName] = totals[a.MemberName].Add(a.Amount)
	}
	return totals, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAdvance(row scannable) (Advance, error) {
	var (
		a                               Advance
		amount                          string
		advanceDate, weekStart, weekEnd string
		description, createdBy          sql.NullString
		createdAt                       string
	)
	err := row.Scan(&a.ID, &a.MemberName, &amount, &advanceDate, &weekStart, &weekEnd,
		&description, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Advance{}, ErrNotFound
	}
	if err != nil {
		return Advance{}, fmt.Errorf("failed to scan advance: %w", err)
	}
	a.Amount = parseDecimal(amount)
	a.AdvanceDate = parseDate(advanceDate)
	a.WeekStart = parseDate(weekStart)
	a.WeekEnd = parseDate(weekEnd)
	a.Description = description.String
	a.CreatedBy = createdBy.String
	a.CreatedAt = parseTimestamp(createdAt)
	return a, nil
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// FinalizeSettlement persists a settlement, its items, and the updated
// debt ledger in one database transaction. Fails with
// ErrWeekAlreadySettled if the week has been settled before.
func (s *Store) FinalizeSettlement(ctx context.Context, rec Settlement, items []SettlementItem, debt settlement.DebtState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settlements
		(id, week_start, week_end, income, expenses, salary, debt_due, rent, milk,
		 total_advances, net_distributable, operator_substitute, created_by, created_at, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.ID, dateString(rec.WeekStart), dateString(rec.WeekEnd),
		rec.Income.String(), rec.Expenses.String(), rec.Salary.String(),
		rec.DebtDue.String(), rec.Rent.String(), rec.Milk.String(),
		rec.TotalAdvances.String(), rec.NetDistributable.String(),
		boolInt(rec.OperatorSubstitute), nullString(rec.CreatedBy), timestamp(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrWeekAlreadySettled
		}
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settlement_items
			(id, settlement_id, member_name, share_ratio, gross_share, advance, net_payout, paid)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			item.ID, rec.ID, item.MemberName, item.ShareRatio.String(),
			item.GrossShare.String(), item.Advance.String(), item.NetPayout.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement item: %w", err)
		}

		// Only the portion of the advance covered by the member's gross
		// share was settled; anything beyond it stays outstanding.
		if consumed := consumedAdvance(item.Advance, item.GrossShare); consumed.IsPositive() {
			if err := adjustOutstandingAdvance(ctx, tx, item.MemberName, consumed.Neg()); err != nil {
				return err
			}
		}
	}

	if err := saveDebt(ctx, tx, debt); err != nil {
		return err
	}
	return tx.Commit()
}

// GetSettlement returns a settlement and its items.
func (s *Store) GetSettlement(ctx context.Context, id string) (Settlement, []SettlementItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, settlementSelect+` WHERE id = ?`, id)
	rec, err := scanSettlement(row)
	if err != nil {
		return Settlement{}, nil, err
	}

	items, err := s.listItems(ctx, id)
	if err != nil {
		return Settlement{}, nil, err
	}
	return rec, items, nil
}

// GetSettlementByWeek returns the settlement for a week start, if any.
func (s *Store) GetSettlementByWeek(ctx context.Context, weekStart time.Time) (Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, settlementSelect+` WHERE week_start = ?`, dateString(weekStart))
	return scanSettlement(row)
}

// ListSettlements returns all settlements, newest week first.
func (s *Store) ListSettlements(ctx context.Context) ([]Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, settlementSelect+` ORDER BY week_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var recs []Settlement
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteSettlement removes a settlement (items cascade) and writes the
// reversed debt ledger in the same transaction. Completed settlements
// cannot be deleted.
func (s *Store) DeleteSettlement(ctx context.Context, id string, reversedDebt settlement.DebtState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var completed int
	err = tx.QueryRowContext(ctx, `SELECT completed FROM settlements WHERE id = ?`, id).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read settlement: %w", err)
	}
	if completed != 0 {
		return ErrSettlementCompleted
	}

	// Deleting the settlement puts its consumed advances back on the
	// members' outstanding balances.
	rows, err := tx.QueryContext(ctx,
		`SELECT member_name, advance, gross_share FROM settlement_items WHERE settlement_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}
	consumed := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			name       string
			advance    string
			grossShare string
		)
		if err := rows.Scan(&name, &advance, &grossShare); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan item: %w", err)
		}
		consumed[name] = consumedAdvance(parseDecimal(advance), parseDecimal(grossShare))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for name, advance := range consumed {
		if advance.IsPositive() {
			if err := adjustOutstandingAdvance(ctx, tx, name, advance); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM settlements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	if err := saveDebt(ctx, tx, reversedDebt); err != nil {
		return err
	}
	return tx.Commit()
}

// CompleteSettlement marks a settlement and all its items paid.
func (s *Store) CompleteSettlement(ctx context.Context, id, byUserID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE settlements
		SET completed = 1, completed_at = ?, completed_by = ?
		WHERE id = ? AND completed = 0`,
		timestamp(at), byUserID, id)
	if err != nil {
		return fmt.Errorf("failed to complete settlement: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE settlement_items SET paid = 1, paid_at = ? WHERE settlement_id = ?`,
		timestamp(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark items paid: %w", err)
	}
	return tx.Commit()
}

// MarkItemReceived records that a member confirmed receipt of a payout.
func (s *Store) MarkItemReceived(ctx context.Context, itemID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE settlement_items SET received_at = ? WHERE id = ?`, timestamp(at), itemID)
	if err != nil {
		return fmt.Errorf("failed to mark item received: %w", err)
	}
	return requireRow(res)
}

func (s *Store) listItems(ctx context.Context, settlementID string) ([]SettlementItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, settlement_id, member_name, share_ratio, gross_share, advance,
		       net_payout, paid, paid_at, received_at
		FROM settlement_items
		WHERE settlement_id = ?
		ORDER BY member_name`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []SettlementItem
	for rows.Next() {
		var (
			item                          SettlementItem
			ratio, gross, advance, payout string
			paid                          int
			paidAt, receivedAt            sql.NullString
		)
		err := rows.Scan(&item.ID, &item.SettlementID, &item.MemberName,
			&ratio, &gross, &advance, &payout, &paid, &paidAt, &receivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.ShareRatio = parseDecimal(ratio)
		item.GrossShare = parseDecimal(gross)
		item.Advance = parseDecimal(advance)
		item.NetPayout = parseDecimal(payout)
		item.Paid = paid != 0
		item.PaidAt = nullTime(paidAt)
		item.ReceivedAt = nullTime(receivedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

const settlementSelect = `
	SELECT id, week_start, week_end, income, expenses, salary, debt_due, rent, milk,
	       total_advances, net_distributable, operator_substitute,
	       created_by, created_at, completed, completed_at, completed_by
	FROM settlements`

func scanSettlement(row scannable) (Settlement, error) {
	var (
		rec                      Settlement
		weekStart, weekEnd       string
		income, expenses, salary string
		debtDue, rent, milk      string
		totalAdvances, net       string
		substitute, completed    int
		createdBy                sql.NullString
		createdAt                string
		completedAt, completedBy sql.NullString
	)
	err := row.Scan(&rec.ID, &weekStart, &weekEnd, &income, &expenses, &salary,
		&debtDue, &rent, &milk, &totalAdvances, &net, &substitute,
		&createdBy, &createdAt, &completed, &completedAt, &completedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return Settlement{}, ErrNotFound
	}
	if err != nil {
		return Settlement{}, fmt.Errorf("failed to scan settlement: %w", err)
	}

	rec.WeekStart = parseDate(weekStart)
	rec.WeekEnd = parseDate(weekEnd)
	rec.Income = parseDecimal(income)
	rec.Expenses = parseDecimal(expenses)
	rec.Salary = parseDecimal(salary)
	rec.DebtDue = parseDecimal(debtDue)
	rec.Rent = parseDecimal(rent)
	rec.Milk = parseDecimal(milk)
	rec.TotalAdvances = parseDecimal(totalAdvances)
	rec.NetDistributable = parseDecimal(net)
	rec.OperatorSubstitute = substitute != 0
	rec.CreatedBy = createdBy.String
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.Completed = completed != 0
	rec.CompletedAt = nullTime(completedAt)
	rec.CompletedBy = completedBy.String
	return rec, nil
}

// =============================================================================
// DEBT
// =============================================================================

// GetDebt returns the running debt ledger, creating the zero row on
// first use.
func (s *Store) GetDebt(ctx context.Context) (settlement.DebtState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total, remaining string
	err := s.db.QueryRowContext(ctx,
		`SELECT total_debt, remaining_debt FROM debt WHERE id = 1`).Scan(&total, &remaining)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO debt (id, total_debt, remaining_debt, updated_at) VALUES (1, '0', '0', ?)`,
			timestamp(time.Now()))
		if err != nil {
			return settlement.DebtState{}, fmt.Errorf("failed to init debt: %w", err)
		}
		return settlement.DebtState{TotalDebt: decimal.Zero, RemainingDebt: decimal.Zero}, nil
	}
	if err != nil {
		return settlement.DebtState{}, fmt.Errorf("failed to get debt: %w", err)
	}
	return settlement.DebtState{
		TotalDebt:     parseDecimal(total),
		RemainingDebt: parseDecimal(remaining),
	}, nil
}

// SaveDebt overwrites the debt ledger.
func (s *Store) SaveDebt(ctx context.Context, d settlement.DebtState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveDebt(ctx, s.db, d)
}

// saveDebt writes the single ledger row via the given executor, so it
// can run standalone or inside a settlement transaction.
func saveDebt(ctx context.Context, ex execer, d settlement.DebtState) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO debt (id, total_debt, remaining_debt, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_debt = excluded.total_debt,
			remaining_debt = excluded.remaining_debt,
			updated_at = excluded.updated_at`,
		d.TotalDebt.String(), d.RemainingDebt.String(), timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save debt: %w", err)
	}
	return nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// AddNotification inserts an in-app message for a user.
func (s *Store) AddNotification(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, read, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		n.ID, n.UserID, n.Title, nullString(n.Message), timestamp(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to add notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, read, created_at
		FROM notifications WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var ns []Notification
	for rows.Next() {
		var (
			n         Notification
			message   sql.NullString
			read      int
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &message, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Message = message.String
		n.Read = read != 0
		n.CreatedAt = parseTimestamp(createdAt)
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireRow(res)
}

// MarkAllNotificationsRead marks all of a user's notifications read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit records an administrative action.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, action, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, nullString(e.UserID), e.Action, nullString(e.Details), timestamp(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the most recent audit entries.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, created_at
		FROM audit_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e               AuditEntry
			userID, details sql.NullString
			createdAt       string
		)
		if err := rows.Scan(&e.ID, &userID, &e.Action, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.UserID = userID.String
		e.Details = details.String
		e.CreatedAt = parseTimestamp(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// execer abstracts *sql.DB and *sql.Tx for writes that run either
// standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTimestamp(ns.String)
	return &t
}

func dateString(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
