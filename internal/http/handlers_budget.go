package http

import (
	"net/http"

	"spendwise/internal/core"
)

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, user *core.User) {
	cats, err := s.deps.Categories.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request, user *core.User) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cats, err := s.deps.Categories.Add(r.Context(), user.ID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"categories": cats})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, user *core.User) {
	cats, err := s.deps.Categories.Remove(r.Context(), user.ID, r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, user *core.User) {
	budgets, err := s.deps.Budgets.List(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request, user *core.User) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := req.toBudget()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	budgets, err := s.deps.Budgets.Set(r.Context(), user.ID, b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"budgets": budgets})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request, user *core.User) {
	alerts, err := s.deps.Budgets.Alerts(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}
