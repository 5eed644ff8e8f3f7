package http

import (
	"net/http"

	"expensetracker/internal/core"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetCreateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := moneyFromFloat(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	b, err := s.deps.Store.CreateBudget(r.Context(), core.NewBudget{
		Amount:   amount,
		Month:    req.Month,
		Year:     req.Year,
		Category: sanitizeInput(req.Category),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetResponse(b, s.categoryNames(r)))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Store.ListBudgets(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	names := s.categoryNames(r)
	out := make([]budgetResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBudgetResponse(b, names))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	b, err := s.deps.Store.GetBudget(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, s.categoryNames(r)))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req budgetUpdateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := optionalMoney(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u := core.BudgetUpdate{Amount: amount, Month: req.Month, Year: req.Year}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		u.Category = &c
	}

	b, err := s.deps.Store.UpdateBudget(r.Context(), id, u)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b, s.categoryNames(r)))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Store.DeleteBudget(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	st, err := s.deps.Summaries.BudgetStatus(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetStatusResponse(st))
}
