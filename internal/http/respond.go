package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ledgerd/internal/auth"
	"ledgerd/internal/core"
	"ledgerd/internal/log"
	"ledgerd/internal/services"
)

// apiResponse is the envelope every JSON endpoint wraps its payload in.
type apiResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
	Summary    *summaryDTO `json:"summary,omitempty"`
}

type pagination struct {
	CurrentPage       int   `json:"currentPage"`
	TotalPages        int   `json:"totalPages"`
	TotalTransactions int64 `json:"totalTransactions"`
	HasNext           bool  `json:"hasNext"`
	HasPrev           bool  `json:"hasPrev"`
}

// summaryDTO carries the totals of a filtered transaction set. Amounts are
// decimal strings so clients never see raw cents.
type summaryDTO struct {
	TotalIncome  string `json:"totalIncome"`
	TotalExpense string `json:"totalExpense"`
	Balance      string `json:"balance"`
}

func newSummaryDTO(t core.Totals) *summaryDTO {
	return &summaryDTO{
		TotalIncome:  t.TotalIncome.String(),
		TotalExpense: t.TotalExpense.String(),
		Balance:      t.Balance().String(),
	}
}

type userDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserDTO(u *core.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

type categoryDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newCategoryDTO(c *core.Category) categoryDTO {
	return categoryDTO{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		Color:     c.Color,
		Icon:      c.Icon,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type transactionDTO struct {
	ID                 string    `json:"id"`
	Description        string    `json:"description"`
	Amount             string    `json:"amount"`
	Type               string    `json:"type"`
	CategoryID         string    `json:"categoryId"`
	Date               time.Time `json:"date"`
	Notes              string    `json:"notes,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	PaymentMethod      string    `json:"paymentMethod"`
	IsRecurring        bool      `json:"isRecurring"`
	RecurringFrequency string    `json:"recurringFrequency,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func newTransactionDTO(t *core.Transaction) transactionDTO {
	return transactionDTO{
		ID:                 t.ID,
		Description:        t.Description,
		Amount:             t.Amount.String(),
		Type:               string(t.Type),
		CategoryID:         t.CategoryID,
		Date:               t.Date,
		Notes:              t.Notes,
		Tags:               t.Tags,
		PaymentMethod:      string(t.PaymentMethod),
		IsRecurring:        t.IsRecurring,
		RecurringFrequency: string(t.RecurringFrequency),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func newTransactionDTOs(txns []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txns))
	for i := range txns {
		out = append(out, newTransactionDTO(&txns[i]))
	}
	return out
}

func newPagination(page *services.TransactionPage) *pagination {
	totalPages := 0
	if page.Limit > 0 {
		totalPages = int((page.Total + int64(page.Limit) - 1) / int64(page.Limit))
	}
	return &pagination{
		CurrentPage:       page.Page,
		TotalPages:        totalPages,
		TotalTransactions: page.Total,
		HasNext:           page.Page < totalPages,
		HasPrev:           page.Page > 1,
	}
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, apiResponse{Success: true, Message: message, Data: data})
}

// respondError maps domain errors to HTTP statuses. Unrecognized errors are
// logged and reported as a generic 500 so internals never leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		message = "internal server error"
	}

	writeJSON(w, status, apiResponse{Success: false, Message: message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, auth.ErrTokenMissing),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrNotesTooLong),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrEmptyCategoryName),
		errors.Is(err, core.ErrCategoryNameTooLong),
		errors.Is(err, core.ErrInvalidColor),
		errors.Is(err, core.ErrInvalidPayment),
		errors.Is(err, core.ErrMissingFrequency),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidEmail),
		errors.Is(err, core.ErrPasswordTooShort),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, core.ErrTypeMismatch),
		errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrCategoryInUse),
		errors.Is(err, core.ErrEmailTaken),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
