/*
handlers.go - HTTP API handlers for the settlement service

PURPOSE:
  Exposes the weekly settlement workflow over REST. Handles HTTP
  request/response, JSON serialization, and delegates to the
  computation layer and the store.

ENDPOINTS:
  Auth:
    POST   /api/auth/register           Create an account (first one is admin)
    POST   /api/auth/login              Obtain a bearer token
    GET    /api/auth/me                 Current account

  User management (admin):
    GET    /api/users                   List accounts
    POST   /api/users                   Create an account with a chosen role
    PUT    /api/users/{id}              Change email, role, active flag
    POST   /api/users/{id}/toggle       Flip the active flag

  Members and advances:
    GET    /api/members                 Share table with outstanding advances
    PUT    /api/members/{name}/advance  Overwrite outstanding advance (admin)
    GET    /api/advances                Advances for a week (?date=YYYY-MM-DD)
    POST   /api/advances                Record an advance
    DELETE /api/advances/{id}           Remove an advance (admin)

  Settlements:
    POST   /api/settlements/preview     Compute without persisting
    POST   /api/settlements             Compute and finalize (admin)
    GET    /api/settlements             List all
    GET    /api/settlements/export      CSV export, all weeks
    GET    /api/settlements/{id}        One settlement with items
    GET    /api/settlements/{id}/export CSV export, one week
    DELETE /api/settlements/{id}        Delete and reverse debt (admin)
    POST   /api/settlements/{id}/complete             Mark paid (admin)
    POST   /api/settlements/{id}/items/{itemID}/received  Confirm receipt

  Ledger and misc:
    GET    /api/debt                    Running debt ledger
    PUT    /api/debt                    Overwrite debt ledger (admin)
    GET    /api/stats                   Aggregates across settlements
    GET    /api/notifications           Caller's notifications
    POST   /api/notifications/{id}/read
    POST   /api/notifications/read-all
    POST   /api/notifications/send      Push a message to users (admin)
    GET    /api/audit                   Audit log (admin)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or bad token
  - 403: Role too low
  - 404: Resource not found
  - 409: Week already settled, completed settlement deletion
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Token validation
  - server.go: Router setup
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukabooks/settlement-engine/auth"
	"github.com/dukabooks/settlement-engine/metrics"
	"github.com/dukabooks/settlement-engine/settlement"
	"github.com/dukabooks/settlement-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Tokens *auth.TokenManager
	Config settlement.Config
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, tokens *auth.TokenManager, cfg settlement.Config) *Handler {
	return &Handler{Store: store, Tokens: tokens, Config: cfg}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates a login account. The first account ever registered
// becomes the admin.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Username and email are required", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Password rejected", err)
		return
	}

	count, err := h.Store.CountUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register", err)
		return
	}
	role := auth.RoleUser
	if count == 0 {
		role = auth.RoleAdmin
	}

	user := sqlite.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "Username or email already taken", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to register", err)
		return
	}

	token, err := h.Tokens.Generate(user.ID, user.Username, user.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: toUserDTO(user)})
}

// Login exchanges credentials for a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		// Same response as a bad password; do not reveal which part failed.
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}
	if !user.Active {
		writeError(w, http.StatusUnauthorized, "Account disabled", nil)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	token, err := h.Tokens.Generate(user.ID, user.Username, user.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toUserDTO(user)})
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	user, err := h.Store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// =============================================================================
// USER MANAGEMENT HANDLERS (ADMIN)
// =============================================================================

// ListUsers returns every login account.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates an account with a chosen role. Unlike
// self-registration, this never promotes to admin implicitly.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Username and email are required", nil)
		return
	}
	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	if role != auth.RoleAdmin && role != auth.RoleUser {
		writeError(w, http.StatusBadRequest, "Role must be admin or user", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Password rejected", err)
		return
	}

	user := sqlite.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "Username or email already taken", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	h.audit(r, "user.create", fmt.Sprintf("%s (%s)", user.Username, user.Role))
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// UpdateUser changes an account's email, role, or active flag. Admins
// cannot edit their own account through this endpoint.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFrom(r)
	if id == claims.UserID {
		writeError(w, http.StatusBadRequest, "Cannot edit your own account", nil)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Role != "" && req.Role != auth.RoleAdmin && req.Role != auth.RoleUser {
		writeError(w, http.StatusBadRequest, "Role must be admin or user", nil)
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}

	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		user.Role = req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := h.Store.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, sqlite.ErrDuplicateUser) {
			writeError(w, http.StatusConflict, "Email already taken", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update user", err)
		return
	}

	h.audit(r, "user.update", user.Username)
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// ToggleUser flips an account's active flag. A disabled account keeps
// its data but cannot log in. Admins cannot deactivate themselves.
func (h *Handler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFrom(r)
	if id == claims.UserID {
		writeError(w, http.StatusBadRequest, "Cannot deactivate your own account", nil)
		return
	}

	user, err := h.Store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user", err)
		return
	}

	user.Active = !user.Active
	if err := h.Store.SetUserActive(r.Context(), id, user.Active); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user", err)
		return
	}

	action := "deactivated"
	if user.Active {
		action = "activated"
	}
	h.audit(r, "user.toggle", fmt.Sprintf("%s %s", user.Username, action))
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// SendNotification pushes a message to specific users, or to every
// active account when no ids are given.
func (h *Handler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req SendNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Title == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Title and message are required", nil)
		return
	}

	targets := req.UserIDs
	if len(targets) == 0 {
		users, err := h.Store.ListUsers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list users", err)
			return
		}
		for _, u := range users {
			if u.Active {
				targets = append(targets, u.ID)
			}
		}
	}

	for _, userID := range targets {
		if err := h.Store.AddNotification(r.Context(), sqlite.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     req.Title,
			Message:   req.Message,
			CreatedAt: time.Now(),
		}); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to send notification", err)
			return
		}
	}

	h.audit(r, "notification.send", fmt.Sprintf("%q to %d users", req.Title, len(targets)))
	writeJSON(w, http.StatusOK, map[string]int{"sent": len(targets)})
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns the share table with each member's outstanding
// advance.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, MemberDTO{
			Name:               m.Name,
			ShareRatio:         h.Config.Shares[m.Name].String(),
			OutstandingAdvance: m.OutstandingAdvance.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateMemberAdvance overwrites a member's outstanding advance. This
// is an admin correction tool; normal bookkeeping happens through the
// advance and settlement flows.
func (h *Handler) UpdateMemberAdvance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req UpdateMemberAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "Amount must be a non-negative decimal", err)
		return
	}

	if err := h.Store.SetOutstandingAdvance(r.Context(), name, settlement.Quantize(amount)); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Member not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update member", err)
		return
	}

	h.audit(r, "member.advance.set", fmt.Sprintf("%s = %s", name, amount.StringFixed(2)))
	writeJSON(w, http.StatusOK, MemberDTO{
		Name:               name,
		ShareRatio:         h.Config.Shares[name].String(),
		OutstandingAdvance: settlement.Quantize(amount).StringFixed(2),
	})
}

// =============================================================================
// ADVANCE HANDLERS
// =============================================================================

// ListAdvances returns the advances for the week containing ?date,
// defaulting to the current week.
func (h *Handler) ListAdvances(w http.ResponseWriter, r *http.Request) {
	ref, err := dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	weekStart, weekEnd := settlement.WeekBounds(ref)

	advances, err := h.Store.ListAdvancesForWeek(r.Context(), weekStart, weekEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list advances", err)
		return
	}

	dtos := make([]AdvanceDTO, 0, len(advances))
	for _, a := range advances {
		dtos = append(dtos, toAdvanceDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdvance records an advance against a member's upcoming payout.
func (h *Handler) CreateAdvance(w http.ResponseWriter, r *http.Request) {
	var req CreateAdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, ok := h.Config.Shares[req.MemberName]; !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown member %q", req.MemberName), nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Amount must be a positive decimal", err)
		return
	}

	advanceDate := time.Now()
	if req.AdvanceDate != "" {
		advanceDate, err = time.Parse("2006-01-02", req.AdvanceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid advance_date format (use YYYY-MM-DD)", err)
			return
		}
	}
	weekStart, weekEnd := settlement.WeekBounds(advanceDate)

	// Advances cannot be backdated into a settled week.
	switch _, err := h.Store.GetSettlementByWeek(r.Context(), weekStart); {
	case err == nil:
		writeError(w, http.StatusConflict, "Week is already settled", nil)
		return
	case !errors.Is(err, sqlite.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "Failed to check week", err)
		return
	}

	claims := claimsFrom(r)
	a := sqlite.Advance{
		ID:          uuid.NewString(),
		MemberName:  req.MemberName,
		Amount:      settlement.Quantize(amount),
		AdvanceDate: advanceDate,
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		Description: req.Description,
		CreatedBy:   claims.UserID,
		CreatedAt:   time.Now(),
	}
	if err := h.Store.AddAdvance(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record advance", err)
		return
	}

	metrics.AdvancesRecorded.Inc()
	h.audit(r, "advance.create",
		fmt.Sprintf("%s %s for %s", a.Amount.StringFixed(2), a.MemberName, a.WeekStart.Format("2006-01-02")))
	writeJSON(w, http.StatusCreated, toAdvanceDTO(a))
}

// DeleteAdvance removes an advance and restores the member's balance.
func (h *Handler) DeleteAdvance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.Store.DeleteAdvance(r.Context(), id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Advance not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete advance", err)
		return
	}

	h.audit(r, "advance.delete",
		fmt.Sprintf("%s %s", deleted.Amount.StringFixed(2), deleted.MemberName))
	writeJSON(w, http.StatusOK, toAdvanceDTO(deleted))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// PreviewSettlement computes a settlement without persisting anything.
func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	res, advances, ok := h.computeFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(res, h.Config, advances))
}

// CreateSettlement computes and finalizes a settlement: the record, its
// items, and the debt ledger transition are written atomically.
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	res, advances, ok := h.computeFromRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	debt, err := h.Store.GetDebt(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load debt ledger", err)
		return
	}
	newDebt, _ := debt.Apply(res.DebtDue)

	claims := claimsFrom(r)
	rec := sqlite.Settlement{
		ID:                 uuid.NewString(),
		WeekStart:          res.WeekStart,
		WeekEnd:            res.WeekEnd,
		Income:             res.Income,
		Expenses:           res.Expenses,
		Salary:             res.Salary,
		DebtDue:            res.DebtDue,
		Rent:               res.Rent,
		Milk:               res.Milk,
		TotalAdvances:      res.TotalAdvances,
		NetDistributable:   res.NetDistributable,
		OperatorSubstitute: res.OperatorSubstitute,
		CreatedBy:          claims.UserID,
		CreatedAt:          time.Now(),
	}

	items := make([]sqlite.SettlementItem, 0, len(res.NetPayouts))
	for _, name := range h.Config.Members() {
		items = append(items, sqlite.SettlementItem{
			ID:           uuid.NewString(),
			SettlementID: rec.ID,
			MemberName:   name,
			ShareRatio:   h.Config.Shares[name],
			GrossShare:   res.GrossShares[name],
			Advance:      advances[name],
			NetPayout:    res.NetPayouts[name],
		})
	}

	if err := h.Store.FinalizeSettlement(ctx, rec, items, newDebt); err != nil {
		if errors.Is(err, sqlite.ErrWeekAlreadySettled) {
			writeError(w, http.StatusConflict, "Week is already settled", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to finalize settlement", err)
		return
	}

	metrics.SettlementsCreated.Inc()
	h.audit(r, "settlement.create", "week "+rec.WeekStart.Format("2006-01-02"))
	h.notifyUser(r, claims.UserID, "Settlement finalized",
		fmt.Sprintf("Week of %s settled; %s distributed.",
			rec.WeekStart.Format("2006-01-02"), rec.NetDistributable.StringFixed(2)))

	// Clamped payouts are reported back, not silently dropped.
	dto := toSettlementDTO(rec, items)
	dto.Shortfall = shortfallStrings(res.Shortfall)
	writeJSON(w, http.StatusCreated, dto)
}

// computeFromRequest parses a settlement request, loads the week's
// advances, and runs the calculator. On failure it writes the error
// response and returns ok=false.
func (h *Handler) computeFromRequest(w http.ResponseWriter, r *http.Request) (settlement.Result, map[string]decimal.Decimal, bool) {
	var req CreateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return settlement.Result{}, nil, false
	}

	income, err := decimal.NewFromString(req.Income)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Income must be a decimal", err)
		return settlement.Result{}, nil, false
	}
	expenses, err := decimal.NewFromString(req.Expenses)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expenses must be a decimal", err)
		return settlement.Result{}, nil, false
	}

	ref := time.Now()
	if req.Date != "" {
		ref, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return settlement.Result{}, nil, false
		}
	}
	weekStart, weekEnd := settlement.WeekBounds(ref)

	advances, err := h.Store.AdvanceTotalsForWeek(r.Context(), weekStart, weekEnd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load advances", err)
		return settlement.Result{}, nil, false
	}

	input := settlement.WeeklyInput{
		Income:             income,
		Expenses:           expenses,
		Advances:           advances,
		WeekStart:          weekStart,
		WeekEnd:            weekEnd,
		OperatorSubstitute: req.OperatorSubstitute,
	}
	res, err := settlement.Compute(h.Config, input)
	if err != nil {
		if errors.Is(err, settlement.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Invalid settlement input", err)
			return settlement.Result{}, nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to compute settlement", err)
		return settlement.Result{}, nil, false
	}
	return res, advances, true
}

// ListSettlements returns all settlements, newest week first, without
// items.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.ListSettlements(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}

	dtos := make([]SettlementDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toSettlementDTO(rec, nil))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSettlement returns one settlement with its items.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	rec, items, err := h.Store.GetSettlement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Settlement not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(rec, items))
}

// DeleteSettlement removes a settlement and reverses its debt-service
// from the ledger.
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	rec, _, err := h.Store.GetSettlement(ctx, id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Settlement not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get settlement", err)
		return
	}

	debt, err := h.Store.GetDebt(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load debt ledger", err)
		return
	}
	reversed := debt.Reverse(rec.DebtDue)

	if err := h.Store.DeleteSettlement(ctx, id, reversed); err != nil {
		switch {
		case errors.Is(err, sqlite.ErrNotFound):
			writeError(w, http.StatusNotFound, "Settlement not found", nil)
		case errors.Is(err, sqlite.ErrSettlementCompleted):
			writeError(w, http.StatusConflict, "Completed settlements cannot be deleted", nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to delete settlement", err)
		}
		return
	}

	metrics.SettlementsDeleted.Inc()
	h.audit(r, "settlement.delete", "week "+rec.WeekStart.Format("2006-01-02"))
	w.WriteHeader(http.StatusNoContent)
}

// CompleteSettlement marks a settlement's payouts as paid out.
func (h *Handler) CompleteSettlement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := claimsFrom(r)

	if err := h.Store.CompleteSettlement(r.Context(), id, claims.UserID, time.Now()); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Settlement not found or already completed", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to complete settlement", err)
		return
	}

	rec, items, err := h.Store.GetSettlement(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload settlement", err)
		return
	}

	h.audit(r, "settlement.complete", "week "+rec.WeekStart.Format("2006-01-02"))
	h.notifyUser(r, claims.UserID, "Settlement completed",
		fmt.Sprintf("All payouts for the week of %s are marked paid.",
			rec.WeekStart.Format("2006-01-02")))
	writeJSON(w, http.StatusOK, toSettlementDTO(rec, items))
}

// MarkItemReceived lets a member confirm receipt of a payout.
func (h *Handler) MarkItemReceived(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	if err := h.Store.MarkItemReceived(r.Context(), itemID, time.Now()); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Item not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to mark item received", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportSettlement streams a settlement as CSV.
func (h *Handler) ExportSettlement(w http.ResponseWriter, r *http.Request) {
	rec, items, err := h.Store.GetSettlement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Settlement not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get settlement", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="settlement-%s.csv"`, rec.WeekStart.Format("2006-01-02")))

	cw := csv.NewWriter(w)
	cw.Write([]string{"week_start", "week_end", "income", "expenses", "salary",
		"debt_due", "rent", "milk", "total_advances", "net_distributable"})
	cw.Write([]string{
		rec.WeekStart.Format("2006-01-02"), rec.WeekEnd.Format("2006-01-02"),
		rec.Income.StringFixed(2), rec.Expenses.StringFixed(2), rec.Salary.StringFixed(2),
		rec.DebtDue.StringFixed(2), rec.Rent.StringFixed(2), rec.Milk.StringFixed(2),
		rec.TotalAdvances.StringFixed(2), rec.NetDistributable.StringFixed(2),
	})
	cw.Write(nil) // blank separator row
	cw.Write([]string{"member", "share_ratio", "gross_share", "advance", "net_payout"})
	for _, item := range items {
		cw.Write([]string{
			item.MemberName, item.ShareRatio.String(),
			item.GrossShare.StringFixed(2), item.Advance.StringFixed(2),
			item.NetPayout.StringFixed(2),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("csv export failed", "settlement", rec.ID, "error", err)
	}
}

// ExportSettlements streams every settlement as one flat CSV, a row per
// member per week.
func (h *Handler) ExportSettlements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := h.Store.ListSettlements(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="settlements.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"week_start", "week_end", "income", "expenses", "salary",
		"debt_due", "rent", "milk", "net_distributable",
		"member", "gross_share", "advance", "net_payout"})
	for _, rec := range recs {
		_, items, err := h.Store.GetSettlement(ctx, rec.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load settlement items", err)
			return
		}
		for _, item := range items {
			cw.Write([]string{
				rec.WeekStart.Format("2006-01-02"), rec.WeekEnd.Format("2006-01-02"),
				rec.Income.StringFixed(2), rec.Expenses.StringFixed(2), rec.Salary.StringFixed(2),
				rec.DebtDue.StringFixed(2), rec.Rent.StringFixed(2), rec.Milk.StringFixed(2),
				rec.NetDistributable.StringFixed(2),
				item.MemberName, item.GrossShare.StringFixed(2),
				item.Advance.StringFixed(2), item.NetPayout.StringFixed(2),
			})
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("csv export failed", "error", err)
	}
}

// =============================================================================
// DEBT AND STATS HANDLERS
// =============================================================================

// GetDebt returns the running debt ledger.
func (h *Handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := h.Store.GetDebt(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load debt ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, DebtDTO{
		TotalDebt:     debt.TotalDebt.StringFixed(2),
		RemainingDebt: debt.RemainingDebt.StringFixed(2),
		Paid:          debt.Paid().StringFixed(2),
		Progress:      debt.Progress().StringFixed(2),
	})
}

// UpdateDebt overwrites the debt ledger. Admin correction tool for
// out-of-band payments or opening balances.
func (h *Handler) UpdateDebt(w http.ResponseWriter, r *http.Request) {
	var req UpdateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	total, err := decimal.NewFromString(req.TotalDebt)
	if err != nil || total.IsNegative() {
		writeError(w, http.StatusBadRequest, "total_debt must be a non-negative decimal", err)
		return
	}
	remaining, err := decimal.NewFromString(req.RemainingDebt)
	if err != nil || remaining.IsNegative() {
		writeError(w, http.StatusBadRequest, "remaining_debt must be a non-negative decimal", err)
		return
	}
	if remaining.GreaterThan(total) {
		writeError(w, http.StatusBadRequest, "remaining_debt cannot exceed total_debt", nil)
		return
	}

	state := settlement.DebtState{
		TotalDebt:     settlement.Quantize(total),
		RemainingDebt: settlement.Quantize(remaining),
	}
	if err := h.Store.SaveDebt(r.Context(), state); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save debt ledger", err)
		return
	}

	h.audit(r, "debt.set",
		fmt.Sprintf("total %s remaining %s", state.TotalDebt.StringFixed(2), state.RemainingDebt.StringFixed(2)))
	writeJSON(w, http.StatusOK, DebtDTO{
		TotalDebt:     state.TotalDebt.StringFixed(2),
		RemainingDebt: state.RemainingDebt.StringFixed(2),
		Paid:          state.Paid().StringFixed(2),
		Progress:      state.Progress().StringFixed(2),
	})
}

// GetStats aggregates totals across all settlements.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := h.Store.ListSettlements(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}

	stats := StatsDTO{
		SettlementCount: len(recs),
		MemberTotals:    make(map[string]string),
	}
	var income, expenses, salary, debtPaid decimal.Decimal
	memberTotals := make(map[string]decimal.Decimal)

	for _, rec := range recs {
		income = income.Add(rec.Income)
		expenses = expenses.Add(rec.Expenses)
		salary = salary.Add(rec.Salary)
		debtPaid = debtPaid.Add(rec.DebtDue)

		_, items, err := h.Store.GetSettlement(ctx, rec.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load settlement items", err)
			return
		}
		for _, item := range items {
			memberTotals[item.MemberName] = memberTotals[item.MemberName].Add(item.NetPayout)
		}
	}

	stats.TotalIncome = income.StringFixed(2)
	stats.TotalExpenses = expenses.StringFixed(2)
	stats.TotalSalary = salary.StringFixed(2)
	stats.TotalDebtPaid = debtPaid.StringFixed(2)
	for name, total := range memberTotals {
		stats.MemberTotals[name] = total.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, stats)
}

// =============================================================================
// NOTIFICATION AND AUDIT HANDLERS
// =============================================================================

// ListNotifications returns the caller's notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	ns, err := h.Store.ListNotifications(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notifications", err)
		return
	}

	dtos := make([]NotificationDTO, 0, len(ns))
	for _, n := range ns {
		dtos = append(dtos, NotificationDTO{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MarkNotificationRead marks one of the caller's notifications read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	id := chi.URLParam(r, "id")

	if err := h.Store.MarkNotificationRead(r.Context(), id, claims.UserID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Notification not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead marks all of the caller's notifications read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if err := h.Store.MarkAllNotificationsRead(r.Context(), claims.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark notifications read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAudit returns the most recent audit entries.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListAudit(r.Context(), 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// HELPERS
// =============================================================================

// audit records an action without failing the request on error.
func (h *Handler) audit(r *http.Request, action, details string) {
	claims := claimsFrom(r)
	userID := ""
	if claims != nil {
		userID = claims.UserID
	}
	_ = h.Store.AppendAudit(r.Context(), sqlite.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now(),
	})
}

// notifyUser sends an in-app notification; failures are ignored.
func (h *Handler) notifyUser(r *http.Request, userID, title, message string) {
	_ = h.Store.AddNotification(r.Context(), sqlite.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
