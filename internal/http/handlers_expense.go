package http

import (
	"net/http"
	"strings"

	"expensetracker/internal/core"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseCreateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := moneyFromFloat(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	in := core.NewExpense{
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
	}
	if req.CreatedAt != nil {
		in.CreatedAt = req.CreatedAt.UTC()
	}

	e, err := s.deps.Expenses.CreateExpense(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(e, s.categoryNames(r)))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	items, err := s.deps.Expenses.ListExpenses(r.Context(), category)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	names := s.categoryNames(r)
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseResponse(e, names))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	e, err := s.deps.Expenses.GetExpense(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(e, s.categoryNames(r)))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req expenseUpdateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	amount, err := optionalMoney(req.Amount)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	u := core.ExpenseUpdate{Amount: amount}
	if req.Description != nil {
		d := sanitizeInput(*req.Description)
		u.Description = &d
	}
	if req.Category != nil {
		c := sanitizeInput(*req.Category)
		u.Category = &c
	}

	e, err := s.deps.Expenses.UpdateExpense(r.Context(), id, u)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(e, s.categoryNames(r)))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Expenses.DeleteExpense(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
