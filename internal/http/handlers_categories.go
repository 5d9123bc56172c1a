package http

import (
	"net/http"
	"strconv"
	"strings"

	"ledgerd/internal/auth"
	"ledgerd/internal/core"
	"ledgerd/internal/services"
	"ledgerd/internal/storage"
)

type createCategoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type updateCategoryRequest struct {
	Name     *string `json:"name"`
	Color    *string `json:"color"`
	Icon     *string `json:"icon"`
	IsActive *bool   `json:"isActive"`
}

// categoryDetail adds the dependent transaction count to the single-category
// view.
type categoryDetail struct {
	categoryDTO
	TransactionCount int64 `json:"transactionCount"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	category, err := s.categoryService.Create(r.Context(), userID, services.CategoryInput{
		Name:  sanitizeInput(req.Name),
		Type:  core.TransactionType(req.Type),
		Color: strings.TrimSpace(req.Color),
		Icon:  sanitizeInput(req.Icon),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusCreated, "category created", newCategoryDTO(category))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var filter storage.CategoryFilter
	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			respondError(w, r, core.ErrInvalidType)
			return
		}
		filter.Type = t
	}
	// "active" per the route contract; "isActive" kept as an alias.
	activeParam := strings.TrimSpace(r.URL.Query().Get("active"))
	if activeParam == "" {
		activeParam = strings.TrimSpace(r.URL.Query().Get("isActive"))
	}
	if v := activeParam; v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, errBadRequest)
			return
		}
		filter.Active = &active
	}

	categories, err := s.categoryService.List(r.Context(), userID, filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	dtos := make([]categoryDTO, 0, len(categories))
	for i := range categories {
		dtos = append(dtos, newCategoryDTO(&categories[i]))
	}
	respondData(w, http.StatusOK, dtos)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	category, count, err := s.categoryService.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, categoryDetail{
		categoryDTO:      newCategoryDTO(category),
		TransactionCount: count,
	})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req updateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	patch := services.CategoryPatch{
		Color:    req.Color,
		Icon:     req.Icon,
		IsActive: req.IsActive,
	}
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		patch.Name = &name
	}

	category, err := s.categoryService.Update(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "category updated", newCategoryDTO(category))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if err := s.categoryService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "category deleted", nil)
}
