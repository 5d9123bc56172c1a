package http

import (
	"net/http"
	"strings"

	"ledgerd/internal/auth"
	"ledgerd/internal/core"
	"ledgerd/internal/services"
)

// Transaction bodies accept the category reference as either "category" or
// "categoryId"; clients in the wild use both.
type createTransactionRequest struct {
	Description        string      `json:"description"`
	Amount             amountField `json:"amount"`
	Type               string      `json:"type"`
	Category           string      `json:"category"`
	CategoryID         string      `json:"categoryId"`
	Date               dateField   `json:"date"`
	Notes              string      `json:"notes"`
	Tags               []string    `json:"tags"`
	PaymentMethod      string      `json:"paymentMethod"`
	IsRecurring        bool        `json:"isRecurring"`
	RecurringFrequency string      `json:"recurringFrequency"`
}

type updateTransactionRequest struct {
	Description        *string      `json:"description"`
	Amount             *amountField `json:"amount"`
	Type               *string      `json:"type"`
	Category           *string      `json:"category"`
	CategoryID         *string      `json:"categoryId"`
	Date               *dateField   `json:"date"`
	Notes              *string      `json:"notes"`
	Tags               []string     `json:"tags"`
	PaymentMethod      *string      `json:"paymentMethod"`
	IsRecurring        *bool        `json:"isRecurring"`
	RecurringFrequency *string      `json:"recurringFrequency"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if !req.Amount.Set {
		respondError(w, r, core.ErrInvalidAmount)
		return
	}

	categoryID := req.Category
	if categoryID == "" {
		categoryID = req.CategoryID
	}

	input := services.TransactionInput{
		Description:        sanitizeInput(req.Description),
		Amount:             core.Money{Cents: req.Amount.Cents},
		Type:               core.TransactionType(req.Type),
		CategoryID:         strings.TrimSpace(categoryID),
		Notes:              sanitizeInput(req.Notes),
		Tags:               req.Tags,
		PaymentMethod:      core.PaymentMethod(req.PaymentMethod),
		IsRecurring:        req.IsRecurring,
		RecurringFrequency: core.RecurringFrequency(req.RecurringFrequency),
	}
	if req.Date.Set {
		input.Date = req.Date.Time
	}

	txn, err := s.transactionService.Create(r.Context(), userID, input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusCreated, "transaction created", newTransactionDTO(txn))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	filter, opts, err := parseTransactionQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}

	page, err := s.transactionService.List(r.Context(), userID, filter, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success:    true,
		Data:       newTransactionDTOs(page.Transactions),
		Pagination: newPagination(page),
		Summary:    newSummaryDTO(page.Totals),
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	txn, err := s.transactionService.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, newTransactionDTO(txn))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req updateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	patch := services.TransactionPatch{
		Tags:        req.Tags,
		IsRecurring: req.IsRecurring,
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		patch.Description = &desc
	}
	if req.Amount != nil && req.Amount.Set {
		amount := core.Money{Cents: req.Amount.Cents}
		patch.Amount = &amount
	}
	if req.Type != nil {
		t := core.TransactionType(*req.Type)
		patch.Type = &t
	}
	if req.Category == nil {
		req.Category = req.CategoryID
	}
	if req.Category != nil {
		id := strings.TrimSpace(*req.Category)
		patch.CategoryID = &id
	}
	if req.Date != nil && req.Date.Set {
		patch.Date = &req.Date.Time
	}
	if req.Notes != nil {
		notes := sanitizeInput(*req.Notes)
		patch.Notes = &notes
	}
	if req.PaymentMethod != nil {
		pm := core.PaymentMethod(*req.PaymentMethod)
		patch.PaymentMethod = &pm
	}
	if req.RecurringFrequency != nil {
		freq := core.RecurringFrequency(*req.RecurringFrequency)
		patch.RecurringFrequency = &freq
	}

	txn, err := s.transactionService.Update(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "transaction updated", newTransactionDTO(txn))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := s.transactionService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "transaction deleted", nil)
}
