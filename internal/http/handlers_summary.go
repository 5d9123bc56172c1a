package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"ledgerd/internal/auth"
	"ledgerd/internal/core"
	"ledgerd/internal/services"
)

type categoryTotalDTO struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Color      string `json:"color"`
	Total      string `json:"total"`
	Count      int    `json:"count"`
}

type summaryTotalsDTO struct {
	TotalIncome  string `json:"totalIncome"`
	TotalExpense string `json:"totalExpense"`
	Balance      string `json:"balance"`
	Count        int    `json:"count"`
}

type summaryResponse struct {
	Summary           summaryTotalsDTO   `json:"summary"`
	CategoryBreakdown []categoryTotalDTO `json:"categoryBreakdown"`
	DateFrom          *time.Time         `json:"dateFrom,omitempty"`
	DateTo            *time.Time         `json:"dateTo,omitempty"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	query := r.URL.Query()

	req := services.SummaryRequest{
		Period:     strings.TrimSpace(query.Get("period")),
		CategoryID: strings.TrimSpace(query.Get("category")),
	}
	switch req.Period {
	case "", "week", "month", "quarter", "year":
	default:
		respondError(w, r, fmt.Errorf("%w: unknown period %q", errBadRequest, req.Period))
		return
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			respondError(w, r, core.ErrInvalidType)
			return
		}
		req.Type = t
	}

	var err error
	if req.DateFrom, err = parseDateRangeParam(query, "startDate", "dateFrom"); err != nil {
		respondError(w, r, err)
		return
	}
	if req.DateTo, err = parseDateRangeParam(query, "endDate", "dateTo"); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := s.summaryService.Summarize(r.Context(), userID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := summaryResponse{
		Summary: summaryTotalsDTO{
			TotalIncome:  result.Totals.TotalIncome.String(),
			TotalExpense: result.Totals.TotalExpense.String(),
			Balance:      result.Totals.Balance().String(),
			Count:        result.Totals.Count,
		},
		CategoryBreakdown: make([]categoryTotalDTO, 0, len(result.ByCategory)),
	}
	for _, ct := range result.ByCategory {
		resp.CategoryBreakdown = append(resp.CategoryBreakdown, categoryTotalDTO{
			CategoryID: ct.CategoryID,
			Name:       ct.Name,
			Type:       string(ct.Type),
			Color:      ct.Color,
			Total:      ct.Total.String(),
			Count:      ct.Count,
		})
	}
	if !result.DateFrom.IsZero() {
		resp.DateFrom = &result.DateFrom
	}
	if !result.DateTo.IsZero() {
		resp.DateTo = &result.DateTo
	}

	respondData(w, http.StatusOK, resp)
}
