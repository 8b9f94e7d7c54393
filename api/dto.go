/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Monetary fields are JSON strings holding decimal values ("43825.00"),
  never floats. Clients parse them with a decimal library.

VALIDATION:
  Validation is done in handlers and the computation layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - settlement/types.go: The domain Result these views flatten
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukabooks/settlement-engine/settlement"
	"github.com/dukabooks/settlement-engine/store/sqlite"
)

// =============================================================================
// AUTH
// =============================================================================

// RegisterRequest is the request to create a login account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request to obtain a token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse returns a bearer token and the account it belongs to.
type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

// UserDTO represents a login account in API responses.
type UserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

// CreateUserRequest creates an account on someone's behalf (admin).
// Unlike self-registration, the role is chosen by the caller.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UpdateUserRequest changes an account (admin). Empty fields are left
// untouched; Active is a pointer so "not sent" and "false" differ.
type UpdateUserRequest struct {
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Active *bool  `json:"active,omitempty"`
}

// SendNotificationRequest pushes a message to users (admin). An empty
// UserIDs list targets every active account.
type SendNotificationRequest struct {
	Title   string   `json:"title"`
	Message string   `json:"message"`
	UserIDs []string `json:"user_ids,omitempty"`
}

// =============================================================================
// MEMBERS AND ADVANCES
// =============================================================================

// MemberDTO represents a payout recipient.
type MemberDTO struct {
	Name               string `json:"name"`
	ShareRatio         string `json:"share_ratio"`
	OutstandingAdvance string `json:"outstanding_advance"`
}

// AdvanceDTO represents one recorded advance.
type AdvanceDTO struct {
	ID          string `json:"id"`
	MemberName  string `json:"member_name"`
	Amount      string `json:"amount"`
	AdvanceDate string `json:"advance_date"`
	WeekStart   string `json:"week_start"`
	WeekEnd     string `json:"week_end"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateAdvanceRequest records an advance. AdvanceDate places it in a
// week; it defaults to today when omitted.
type CreateAdvanceRequest struct {
	MemberName  string `json:"member_name"`
	Amount      string `json:"amount"`
	AdvanceDate string `json:"advance_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// CreateSettlementRequest carries a week's figures. Date defaults to
// today and is snapped to its Monday-Sunday week.
type CreateSettlementRequest struct {
	Income             string `json:"income"`
	Expenses           string `json:"expenses"`
	Date               string `json:"date,omitempty"`
	OperatorSubstitute bool   `json:"operator_substitute"`
}

// SettlementItemDTO is one member's line in a settlement response.
type SettlementItemDTO struct {
	ID         string `json:"id,omitempty"`
	MemberName string `json:"member_name"`
	ShareRatio string `json:"share_ratio"`
	GrossShare string `json:"gross_share"`
	Advance    string `json:"advance"`
	NetPayout  string `json:"net_payout"`
	Paid       bool   `json:"paid"`
	PaidAt     string `json:"paid_at,omitempty"`
	ReceivedAt string `json:"received_at,omitempty"`
}

// SettlementDTO represents a settlement in API responses. Preview
// responses carry no ID and Persisted=false.
type SettlementDTO struct {
	ID        string `json:"id,omitempty"`
	WeekStart string `json:"week_start"`
	WeekEnd   string `json:"week_end"`

	Income           string `json:"income"`
	Expenses         string `json:"expenses"`
	Salary           string `json:"salary"`
	DebtDue          string `json:"debt_due"`
	Rent             string `json:"rent"`
	Milk             string `json:"milk"`
	TotalAdvances    string `json:"total_advances"`
	NetDistributable string `json:"net_distributable"`

	OperatorSubstitute bool `json:"operator_substitute"`

	Items     []SettlementItemDTO `json:"items"`
	Shortfall map[string]string   `json:"shortfall,omitempty"`

	Persisted   bool   `json:"persisted"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// =============================================================================
// DEBT, STATS, NOTIFICATIONS
// =============================================================================

// DebtDTO is the running debt ledger.
type DebtDTO struct {
	TotalDebt     string `json:"total_debt"`
	RemainingDebt string `json:"remaining_debt"`
	Paid          string `json:"paid"`
	Progress      string `json:"progress"`
}

// StatsDTO aggregates across all settlements.
type StatsDTO struct {
	SettlementCount int               `json:"settlement_count"`
	TotalIncome     string            `json:"total_income"`
	TotalExpenses   string            `json:"total_expenses"`
	TotalSalary     string            `json:"total_salary"`
	TotalDebtPaid   string            `json:"total_debt_paid"`
	MemberTotals    map[string]string `json:"member_totals"`
}

// UpdateMemberAdvanceRequest overwrites a member's outstanding advance
// (admin correction).
type UpdateMemberAdvanceRequest struct {
	Amount string `json:"amount"`
}

// UpdateDebtRequest overwrites the debt ledger (admin correction).
type UpdateDebtRequest struct {
	TotalDebt     string `json:"total_debt"`
	RemainingDebt string `json:"remaining_debt"`
}

// NotificationDTO is an in-app message.
type NotificationDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u sqlite.User) UserDTO {
	return UserDTO{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, Active: u.Active}
}

func toAdvanceDTO(a sqlite.Advance) AdvanceDTO {
	return AdvanceDTO{
		ID:          a.ID,
		MemberName:  a.MemberName,
		Amount:      a.Amount.StringFixed(2),
		AdvanceDate: a.AdvanceDate.Format("2006-01-02"),
		WeekStart:   a.WeekStart.Format("2006-01-02"),
		WeekEnd:     a.WeekEnd.Format("2006-01-02"),
		Description: a.Description,
		CreatedBy:   a.CreatedBy,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func toItemDTO(item sqlite.SettlementItem) SettlementItemDTO {
	dto := SettlementItemDTO{
		ID:         item.ID,
		MemberName: item.MemberName,
		ShareRatio: item.ShareRatio.String(),
		GrossShare: item.GrossShare.StringFixed(2),
		Advance:    item.Advance.StringFixed(2),
		NetPayout:  item.NetPayout.StringFixed(2),
		Paid:       item.Paid,
	}
	if item.PaidAt != nil {
		dto.PaidAt = item.PaidAt.Format(time.RFC3339)
	}
	if item.ReceivedAt != nil {
		dto.ReceivedAt = item.ReceivedAt.Format(time.RFC3339)
	}
	return dto
}

func toSettlementDTO(rec sqlite.Settlement, items []sqlite.SettlementItem) SettlementDTO {
	dto := SettlementDTO{
		ID:                 rec.ID,
		WeekStart:          rec.WeekStart.Format("2006-01-02"),
		WeekEnd:            rec.WeekEnd.Format("2006-01-02"),
		Income:             rec.Income.StringFixed(2),
		Expenses:           rec.Expenses.StringFixed(2),
		Salary:             rec.Salary.StringFixed(2),
		DebtDue:            rec.DebtDue.StringFixed(2),
		Rent:               rec.Rent.StringFixed(2),
		Milk:               rec.Milk.StringFixed(2),
		TotalAdvances:      rec.TotalAdvances.StringFixed(2),
		NetDistributable:   rec.NetDistributable.StringFixed(2),
		OperatorSubstitute: rec.OperatorSubstitute,
		Items:              make([]SettlementItemDTO, 0, len(items)),
		Persisted:          true,
		Completed:          rec.Completed,
		CreatedBy:          rec.CreatedBy,
		CreatedAt:          rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.CompletedAt != nil {
		dto.CompletedAt = rec.CompletedAt.Format(time.RFC3339)
	}
	for _, item := range items {
		dto.Items = append(dto.Items, toItemDTO(item))
	}
	return dto
}

// toPreviewDTO flattens a computed Result into the same shape a
// persisted settlement takes, so clients render both identically.
func toPreviewDTO(res settlement.Result, cfg settlement.Config, advances map[string]decimal.Decimal) SettlementDTO {
	dto := SettlementDTO{
		WeekStart:          res.WeekStart.Format("2006-01-02"),
		WeekEnd:            res.WeekEnd.Format("2006-01-02"),
		Income:             res.Income.StringFixed(2),
		Expenses:           res.Expenses.StringFixed(2),
		Salary:             res.Salary.StringFixed(2),
		DebtDue:            res.DebtDue.StringFixed(2),
		Rent:               res.Rent.StringFixed(2),
		Milk:               res.Milk.StringFixed(2),
		TotalAdvances:      res.TotalAdvances.StringFixed(2),
		NetDistributable:   res.NetDistributable.StringFixed(2),
		OperatorSubstitute: res.OperatorSubstitute,
		Items:              make([]SettlementItemDTO, 0, len(res.NetPayouts)),
		Persisted:          false,
	}
	for _, name := range cfg.Members() {
		dto.Items = append(dto.Items, SettlementItemDTO{
			MemberName: name,
			ShareRatio: cfg.Shares[name].String(),
			GrossShare: res.GrossShares[name].StringFixed(2),
			Advance:    advances[name].StringFixed(2),
			NetPayout:  res.NetPayouts[name].StringFixed(2),
		})
	}
	dto.Shortfall = shortfallStrings(res.Shortfall)
	return dto
}

// shortfallStrings renders clamped payout amounts for the response, or
// nil when nothing was clamped.
func shortfallStrings(shortfall map[string]decimal.Decimal) map[string]string {
	if len(shortfall) == 0 {
		return nil
	}
	out := make(map[string]string, len(shortfall))
	for name, amt := range shortfall {
		out[name] = amt.StringFixed(2)
	}
	return out
}
