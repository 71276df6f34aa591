package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ufitech/infoscreen-bridge/internal/customer"
)

// customerID parses the id route parameter.
func customerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.customers.ListCustomers(r.Context())
	if err != nil {
		s.logger.Error("failed to list customers", "error", err)
		writeInternalError(w, "failed to list customers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"count":     len(customers),
	})
}

// createCustomerRequest is the request body for POST /customers.
type createCustomerRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name is required")
		return
	}

	cust := &customer.Customer{Name: req.Name}
	if err := s.customers.CreateCustomer(r.Context(), cust); err != nil {
		s.logger.Error("failed to create customer", "name", req.Name, "error", err)
		writeInternalError(w, "failed to create customer")
		return
	}

	writeJSON(w, http.StatusCreated, cust)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(r)
	if !ok {
		writeBadRequest(w, "invalid customer id")
		return
	}

	cust, err := s.customers.GetCustomer(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrCustomerNotFound) {
			writeNotFound(w, "customer not found")
			return
		}
		s.logger.Error("failed to load customer", "customer_id", id, "error", err)
		writeInternalError(w, "failed to load customer")
		return
	}

	writeJSON(w, http.StatusOK, cust)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(r)
	if !ok {
		writeBadRequest(w, "invalid customer id")
		return
	}

	if err := s.customers.DeleteCustomer(r.Context(), id); err != nil {
		if errors.Is(err, customer.ErrCustomerNotFound) {
			writeNotFound(w, "customer not found")
			return
		}
		s.logger.Error("failed to delete customer", "customer_id", id, "error", err)
		writeInternalError(w, "failed to delete customer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(r)
	if !ok {
		writeBadRequest(w, "invalid customer id")
		return
	}

	codes, err := s.customers.ListCodes(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list codes", "customer_id", id, "error", err)
		writeInternalError(w, "failed to list codes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"codes": codes,
		"count": len(codes),
	})
}

// createCodeRequest is the request body for POST /customers/{id}/codes.
// An empty code requests a generated one.
type createCodeRequest struct {
	Code         string `json:"code"`
	StartURL     string `json:"start_url"`
	AutoApprove  bool   `json:"auto_approve"`
	KioskMode    bool   `json:"kiosk_mode"`
	KeepScreenOn bool   `json:"keep_screen_on"`
}

func (s *Server) handleCreateCode(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(r)
	if !ok {
		writeBadRequest(w, "invalid customer id")
		return
	}

	var req createCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	code := &customer.Code{
		Code:         req.Code,
		CustomerID:   id,
		StartURL:     req.StartURL,
		AutoApprove:  req.AutoApprove,
		KioskMode:    req.KioskMode,
		KeepScreenOn: req.KeepScreenOn,
	}
	if err := s.customers.CreateCode(r.Context(), code); err != nil {
		switch {
		case errors.Is(err, customer.ErrCodeExists):
			writeConflict(w, "code already in use")
		case errors.Is(err, customer.ErrCodeExhausted):
			writeInternalError(w, "could not generate an unused code")
		default:
			s.logger.Error("failed to create code", "customer_id", id, "error", err)
			writeInternalError(w, "failed to create code")
		}
		return
	}

	writeJSON(w, http.StatusCreated, code)
}

func (s *Server) handleDeleteCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := s.customers.DeleteCode(r.Context(), code); err != nil {
		if errors.Is(err, customer.ErrCodeNotFound) {
			writeNotFound(w, "code not found")
			return
		}
		s.logger.Error("failed to delete code", "code", code, "error", err)
		writeInternalError(w, "failed to delete code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": code})
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(r)
	if !ok {
		writeBadRequest(w, "invalid customer id")
		return
	}

	assignments, err := s.customers.ListAssignments(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list assignments", "customer_id", id, "error", err)
		writeInternalError(w, "failed to list assignments")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": assignments,
		"count":   len(assignments),
	})
}
