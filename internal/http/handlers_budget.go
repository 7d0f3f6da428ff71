package http

import (
	"net/http"

	"bilan/internal/core"
)

type budgetResponse struct {
	Period  core.Period       `json:"period"`
	Items   []core.BudgetItem `json:"items"`
	Summary core.Summary      `json:"summary"`
}

// scope reads the owner and the query period shared by most routes.
func (s *Server) scope(r *http.Request) (string, core.Period, error) {
	owner, err := ownerID(r)
	if err != nil {
		return "", core.Period{}, err
	}
	p, err := ParsePeriodParams(r.URL.Query(), s.now())
	if err != nil {
		return "", core.Period{}, err
	}
	return owner, p, nil
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.budget.Items(r.Context(), owner, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.BudgetItem{}
	}
	writeJSON(w, http.StatusOK, budgetResponse{Period: p, Items: items, Summary: core.Aggregate(items)})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.budget.Summary(r.Context(), owner, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req itemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := req.toItem(owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.budget.AddItem(r.Context(), item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req itemPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.budget.EditItem(r.Context(), owner, p, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.budget.DeleteItem(r.Context(), owner, p, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	moved, err := s.budget.Reorder(r.Context(), owner, core.NewPeriod(req.Year, req.Month),
		req.ParentID, core.Kind(req.Kind), req.From, req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": moved})
}
