package http

import (
	"net/http"

	"spendwise/internal/core"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, user *core.User) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := req.toExpense()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	created, err := s.deps.Expenses.Create(r.Context(), user.ID, e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, user *core.User) {
	f, err := parseExpenseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.deps.Expenses.List(r.Context(), user.ID, f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, user *core.User) {
	summary, err := s.deps.Expenses.Summarize(r.Context(), user.ID, core.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, user *core.User) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.deps.Expenses.Update(r.Context(), user.ID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, user *core.User) {
	if err := s.deps.Expenses.Delete(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Deleted")
}
