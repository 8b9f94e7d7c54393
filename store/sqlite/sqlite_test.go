package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukabooks/settlement-engine/settlement"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureMembers(context.Background(), []string{"Bett", "Felix", "Willy"}))
	return store
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// =============================================================================
// USERS
// =============================================================================

func TestStore_CreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN a new user
	u := User{
		ID:           "u1",
		Username:     "bett",
		Email:        "bett@example.com",
		PasswordHash: "hash",
		Role:         "admin",
		Active:       true,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateUser(ctx, u))

	// WHEN fetching by username and by id
	byName, err := store.GetUserByUsername(ctx, "bett")
	require.NoError(t, err)
	byID, err := store.GetUserByID(ctx, "u1")
	require.NoError(t, err)

	// THEN both return the stored account
	assert.Equal(t, "u1", byName.ID)
	assert.Equal(t, "admin", byName.Role)
	assert.True(t, byName.Active)
	assert.Equal(t, "bett", byID.Username)
}

func TestStore_DuplicateUsernameRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := User{ID: "u1", Username: "bett", Email: "a@example.com", PasswordHash: "h", Role: "user", Active: true}
	require.NoError(t, store.CreateUser(ctx, u))

	dup := User{ID: "u2", Username: "bett", Email: "b@example.com", PasswordHash: "h", Role: "user", Active: true}
	err := store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUserByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CountUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, store.CreateUser(ctx, User{
		ID: "u1", Username: "bett", Email: "a@example.com", PasswordHash: "h", Role: "admin", Active: true,
	}))

	n, err = store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// MEMBERS AND ADVANCES
// =============================================================================

func TestStore_ListUsers_OrderedByUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, User{ID: "u2", Username: "willy", Email: "w@example.com", PasswordHash: "h", Role: "user", Active: true}))
	require.NoError(t, store.CreateUser(ctx, User{ID: "u1", Username: "bett", Email: "b@example.com", PasswordHash: "h", Role: "admin", Active: true}))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bett", users[0].Username)
	assert.Equal(t, "willy", users[1].Username)
}

func TestStore_UpdateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := User{ID: "u1", Username: "willy", Email: "w@example.com", PasswordHash: "h", Role: "user", Active: true}
	require.NoError(t, store.CreateUser(ctx, u))
	require.NoError(t, store.CreateUser(ctx, User{ID: "u2", Username: "bett", Email: "b@example.com", PasswordHash: "h", Role: "admin", Active: true}))

	u.Email = "willy@duka.example.com"
	u.Role = "admin"
	u.Active = false
	require.NoError(t, store.UpdateUser(ctx, u))

	got, err := store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "willy@duka.example.com", got.Email)
	assert.Equal(t, "admin", got.Role)
	assert.False(t, got.Active)

	// Email must stay unique across accounts.
	u.Email = "b@example.com"
	assert.ErrorIs(t, store.UpdateUser(ctx, u), ErrDuplicateUser)

	u.ID = "no-such-id"
	u.Email = "ok@example.com"
	assert.ErrorIs(t, store.UpdateUser(ctx, u), ErrNotFound)
}

func TestStore_SetUserActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, User{ID: "u1", Username: "willy", Email: "w@example.com", PasswordHash: "h", Role: "user", Active: true}))

	require.NoError(t, store.SetUserActive(ctx, "u1", false))
	got, err := store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, store.SetUserActive(ctx, "u1", true))
	got, err = store.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Active)

	assert.ErrorIs(t, store.SetUserActive(ctx, "no-such-id", true), ErrNotFound)
}

func TestStore_EnsureMembers_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	names := []string{"Bett", "Felix", "Willy"}
	require.NoError(t, store.EnsureMembers(ctx, names))
	// Second call must not error or duplicate.
	require.NoError(t, store.EnsureMembers(ctx, names))

	members, err := store.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "Bett", members[0].Name)
	assert.True(t, members[0].OutstandingAdvance.IsZero())
}

func TestStore_AddAdvance_BumpsOutstanding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureMembers(ctx, []string{"Willy"}))

	// GIVEN an advance for Willy
	a := Advance{
		ID:          "a1",
		MemberName:  "Willy",
		Amount:      d("2500"),
		AdvanceDate: date("2024-01-17"),
		WeekStart:   date("2024-01-15"),
		WeekEnd:     date("2024-01-21"),
		Description: "fuel",
		CreatedBy:   "u1",
	}

	// WHEN recording it
	require.NoError(t, store.AddAdvance(ctx, a))

	// THEN the member's outstanding balance reflects it
	m, err := store.GetMember(ctx, "Willy")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.Equal(d("2500")),
		"outstanding = %s", m.OutstandingAdvance)
}

func TestStore_DeleteAdvance_RestoresOutstanding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureMembers(ctx, []string{"Willy"}))

	a := Advance{
		ID: "a1", MemberName: "Willy", Amount: d("2500"),
		AdvanceDate: date("2024-01-17"), WeekStart: date("2024-01-15"), WeekEnd: date("2024-01-21"),
	}
	require.NoError(t, store.AddAdvance(ctx, a))

	deleted, err := store.DeleteAdvance(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Willy", deleted.MemberName)
	assert.True(t, deleted.Amount.Equal(d("2500")))

	m, err := store.GetMember(ctx, "Willy")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.IsZero())
}

func TestStore_SetOutstandingAdvance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetOutstandingAdvance(ctx, "Felix", d("1234.50")))

	m, err := store.GetMember(ctx, "Felix")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.Equal(d("1234.50")))

	err = store.SetOutstandingAdvance(ctx, "Nobody", d("1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeleteAdvance_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DeleteAdvance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AdvanceTotalsForWeek(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureMembers(ctx, []string{"Felix", "Willy"}))

	weekStart := date("2024-01-15")
	weekEnd := date("2024-01-21")

	// Two advances for Willy, one for Felix, one in another week.
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a1", MemberName: "Willy", Amount: d("1000"),
		AdvanceDate: weekStart, WeekStart: weekStart, WeekEnd: weekEnd,
	}))
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a2", MemberName: "Willy", Amount: d("500.50"),
		AdvanceDate: weekStart, WeekStart: weekStart, WeekEnd: weekEnd,
	}))
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a3", MemberName: "Felix", Amount: d("2000"),
		AdvanceDate: weekStart, WeekStart: weekStart, WeekEnd: weekEnd,
	}))
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a4", MemberName: "Felix", Amount: d("9999"),
		AdvanceDate: date("2024-01-22"), WeekStart: date("2024-01-22"), WeekEnd: date("2024-01-28"),
	}))

	totals, err := store.AdvanceTotalsForWeek(ctx, weekStart, weekEnd)
	require.NoError(t, err)

	assert.True(t, totals["Willy"].Equal(d("1500.50")), "Willy = %s", totals["Willy"])
	assert.True(t, totals["Felix"].Equal(d("2000")), "Felix = %s", totals["Felix"])
	assert.Len(t, totals, 2)
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

func sampleSettlement() (Settlement, []SettlementItem) {
	rec := Settlement{
		ID:               "s1",
		WeekStart:        date("2024-01-15"),
		WeekEnd:          date("2024-01-21"),
		Income:           d("90000"),
		Expenses:         d("11000"),
		Salary:           d("7000"),
		DebtDue:          d("9000"),
		Rent:             d("0"),
		Milk:             d("0"),
		TotalAdvances:    d("5000"),
		NetDistributable: d("63000"),
		CreatedBy:        "u1",
	}
	items := []SettlementItem{
		{ID: "i1", MemberName: "Bett", ShareRatio: d("0.775"), GrossShare: d("48825"), Advance: d("5000"), NetPayout: d("43825")},
		{ID: "i2", MemberName: "Felix", ShareRatio: d("0.086"), GrossShare: d("5418"), Advance: d("0"), NetPayout: d("12418")},
		{ID: "i3", MemberName: "Willy", ShareRatio: d("0.139"), GrossShare: d("8757"), Advance: d("0"), NetPayout: d("8757")},
	}
	return rec, items
}

func TestStore_FinalizeAndGetSettlement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN an outstanding advance and the computed settlement that
	// consumes it
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a1", MemberName: "Bett", Amount: d("5000"),
		AdvanceDate: date("2024-01-17"), WeekStart: date("2024-01-15"), WeekEnd: date("2024-01-21"),
	}))
	rec, items := sampleSettlement()
	debt := settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}

	// WHEN finalizing
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items, debt))

	// THEN the settlement, items, and debt are all persisted
	got, gotItems, err := store.GetSettlement(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Income.Equal(d("90000")))
	assert.True(t, got.NetDistributable.Equal(d("63000")))
	assert.False(t, got.Completed)
	assert.Equal(t, "2024-01-15", got.WeekStart.Format("2006-01-02"))

	require.Len(t, gotItems, 3)
	assert.Equal(t, "Bett", gotItems[0].MemberName)
	assert.True(t, gotItems[0].NetPayout.Equal(d("43825")))
	assert.False(t, gotItems[0].Paid)

	gotDebt, err := store.GetDebt(ctx)
	require.NoError(t, err)
	assert.True(t, gotDebt.RemainingDebt.Equal(d("9000")))

	// AND the settled advance is no longer outstanding
	m, err := store.GetMember(ctx, "Bett")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.IsZero(), "outstanding = %s", m.OutstandingAdvance)
}

func TestStore_FinalizeSettlement_ZeroNetWeekAdvanceStaysOutstanding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN an advance in a week that nets out to zero
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a1", MemberName: "Bett", Amount: d("3000"),
		AdvanceDate: date("2024-01-17"), WeekStart: date("2024-01-15"), WeekEnd: date("2024-01-21"),
	}))
	rec, items := sampleSettlement()
	rec.Income = d("20000")
	rec.Expenses = d("18000")
	rec.DebtDue = d("2000")
	rec.NetDistributable = d("0")
	rec.TotalAdvances = d("3000")
	for i := range items {
		items[i].GrossShare = d("0")
		items[i].NetPayout = d("0")
	}
	items[0].Advance = d("3000")

	// WHEN finalizing the zero-net week
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("2000"), RemainingDebt: d("2000")}))

	// THEN no payout consumed the advance, so it remains outstanding
	m, err := store.GetMember(ctx, "Bett")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.Equal(d("3000")), "outstanding = %s", m.OutstandingAdvance)
}

func TestStore_FinalizeSettlement_OverAdvanceExcessStaysOutstanding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN an advance larger than the member's gross share
	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a1", MemberName: "Bett", Amount: d("60000"),
		AdvanceDate: date("2024-01-17"), WeekStart: date("2024-01-15"), WeekEnd: date("2024-01-21"),
	}))
	rec, items := sampleSettlement()
	rec.TotalAdvances = d("60000")
	items[0].Advance = d("60000")
	items[0].NetPayout = d("0")
	items[1].NetPayout = d("23689.33") // salary included
	items[2].NetPayout = d("15660.67")

	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))

	// THEN only the gross share's worth was settled; the excess stays
	m, err := store.GetMember(ctx, "Bett")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.Equal(d("11175")), "outstanding = %s", m.OutstandingAdvance)

	// AND deleting restores exactly the consumed portion
	require.NoError(t, store.DeleteSettlement(ctx, "s1",
		settlement.DebtState{TotalDebt: d("0"), RemainingDebt: d("0")}))
	m, err = store.GetMember(ctx, "Bett")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.Equal(d("60000")), "outstanding = %s", m.OutstandingAdvance)
}

func TestStore_FinalizeSettlement_WeekUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, items := sampleSettlement()
	debt := settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items, debt))

	// Same week, different id.
	rec.ID = "s2"
	for i := range items {
		items[i].ID = items[i].ID + "-dup"
	}
	err := store.FinalizeSettlement(ctx, rec, items, debt)
	assert.ErrorIs(t, err, ErrWeekAlreadySettled)

	// The failed attempt must not leave partial state.
	recs, err := store.ListSettlements(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_DeleteSettlement_RestoresDebtAndAdvances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddAdvance(ctx, Advance{
		ID: "a1", MemberName: "Bett", Amount: d("5000"),
		AdvanceDate: date("2024-01-17"), WeekStart: date("2024-01-15"), WeekEnd: date("2024-01-21"),
	}))
	rec, items := sampleSettlement()
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))

	// WHEN deleting with the reversed ledger
	require.NoError(t, store.DeleteSettlement(ctx, "s1",
		settlement.DebtState{TotalDebt: d("0"), RemainingDebt: d("0")}))

	// THEN the settlement and its items are gone and debt is reversed
	_, _, err := store.GetSettlement(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	debt, err := store.GetDebt(ctx)
	require.NoError(t, err)
	assert.True(t, debt.TotalDebt.IsZero())
	assert.True(t, debt.RemainingDebt.IsZero())

	// AND the consumed advance is outstanding again
	m, err := store.GetMember(ctx, "Bett")
	require.NoError(t, err)
	assert.True(t, m.OutstandingAdvance.Equal(d("5000")), "outstanding = %s", m.OutstandingAdvance)
}

func TestStore_DeleteSettlement_CompletedRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, items := sampleSettlement()
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))
	require.NoError(t, store.CompleteSettlement(ctx, "s1", "u1", time.Now()))

	err := store.DeleteSettlement(ctx, "s1", settlement.DebtState{})
	assert.ErrorIs(t, err, ErrSettlementCompleted)
}

func TestStore_CompleteSettlement_MarksItemsPaid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, items := sampleSettlement()
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))

	require.NoError(t, store.CompleteSettlement(ctx, "s1", "u1", time.Now()))

	got, gotItems, err := store.GetSettlement(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, "u1", got.CompletedBy)
	require.NotNil(t, got.CompletedAt)
	for _, item := range gotItems {
		assert.True(t, item.Paid)
		assert.NotNil(t, item.PaidAt)
	}

	// Completing twice is rejected.
	err = store.CompleteSettlement(ctx, "s1", "u1", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MarkItemReceived(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, items := sampleSettlement()
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))

	require.NoError(t, store.MarkItemReceived(ctx, "i2", time.Now()))

	_, gotItems, err := store.GetSettlement(ctx, "s1")
	require.NoError(t, err)
	for _, item := range gotItems {
		if item.ID == "i2" {
			assert.NotNil(t, item.ReceivedAt)
		} else {
			assert.Nil(t, item.ReceivedAt)
		}
	}
}

func TestStore_ListSettlements_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, items := sampleSettlement()
	require.NoError(t, store.FinalizeSettlement(ctx, first, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))

	second := first
	second.ID = "s2"
	second.WeekStart = date("2024-01-22")
	second.WeekEnd = date("2024-01-28")
	require.NoError(t, store.FinalizeSettlement(ctx, second, nil,
		settlement.DebtState{TotalDebt: d("18000"), RemainingDebt: d("18000")}))

	recs, err := store.ListSettlements(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "s2", recs[0].ID)
	assert.Equal(t, "s1", recs[1].ID)
}

func TestStore_GetSettlementByWeek(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, items := sampleSettlement()
	require.NoError(t, store.FinalizeSettlement(ctx, rec, items,
		settlement.DebtState{TotalDebt: d("9000"), RemainingDebt: d("9000")}))

	got, err := store.GetSettlementByWeek(ctx, date("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	_, err = store.GetSettlementByWeek(ctx, date("2024-01-22"))
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// DEBT
// =============================================================================

func TestStore_Debt_InitializedToZero(t *testing.T) {
	store := newTestStore(t)

	debt, err := store.GetDebt(context.Background())
	require.NoError(t, err)
	assert.True(t, debt.TotalDebt.IsZero())
	assert.True(t, debt.RemainingDebt.IsZero())
}

func TestStore_Debt_SaveAndReload(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDebt(ctx, settlement.DebtState{
		TotalDebt:     d("18000.50"),
		RemainingDebt: d("4200.25"),
	}))

	debt, err := store.GetDebt(ctx)
	require.NoError(t, err)
	assert.True(t, debt.TotalDebt.Equal(d("18000.50")))
	assert.True(t, debt.RemainingDebt.Equal(d("4200.25")))
}

// =============================================================================
// NOTIFICATIONS AND AUDIT
// =============================================================================

func TestStore_Notifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddNotification(ctx, Notification{
		ID: "n1", UserID: "u1", Title: "Settlement finalized", Message: "Week of 2024-01-15",
	}))
	require.NoError(t, store.AddNotification(ctx, Notification{
		ID: "n2", UserID: "u1", Title: "Payout marked paid",
	}))
	require.NoError(t, store.AddNotification(ctx, Notification{
		ID: "n3", UserID: "u2", Title: "Other user's note",
	}))

	ns, err := store.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ns, 2)

	require.NoError(t, store.MarkNotificationRead(ctx, "n1", "u1"))

	// Marking another user's notification fails.
	err = store.MarkNotificationRead(ctx, "n3", "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.MarkAllNotificationsRead(ctx, "u1"))
	ns, err = store.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	for _, n := range ns {
		assert.True(t, n.Read)
	}
}

func TestStore_AuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAudit(ctx, AuditEntry{
		ID: "e1", UserID: "u1", Action: "settlement.create", Details: "week 2024-01-15",
	}))
	require.NoError(t, store.AppendAudit(ctx, AuditEntry{
		ID: "e2", UserID: "u1", Action: "settlement.delete",
	}))

	entries, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	actions := []string{entries[0].Action, entries[1].Action}
	assert.Contains(t, actions, "settlement.create")
	assert.Contains(t, actions, "settlement.delete")
}
