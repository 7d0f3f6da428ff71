package http

import (
	"net/http"

	"bilan/internal/core"
	"bilan/internal/services"
)

func (s *Server) handleListRevenues(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.revenues.List(r.Context(), owner, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateRevenue(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req revenueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, r, core.Invalid("amount", err))
		return
	}
	start, err := req.startDate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.revenues.Add(r.Context(), services.RevenueRequest{
		OwnerID:     owner,
		Period:      core.NewPeriod(req.Year, req.Month),
		Description: req.Description,
		Amount:      amount,
		Kind:        core.RecurrenceKind(req.RecurrenceKind),
		StartDate:   start,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"revenues": created})
}

func (s *Server) handleDeleteRevenue(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.revenues.Delete(r.Context(), owner, p, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner, p, err := s.scope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.revenues.Balance(r.Context(), owner, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
