package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"parcelpoint.app/cloud/internal/logger"
	"parcelpoint.app/cloud/models"
)

type CustomerRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	UserID  string `json:"user_id"`
}

func (cr CustomerRequest) validate() error {
	if cr.Name == "" {
		return fmt.Errorf("name required")
	}
	if cr.Email == "" {
		return fmt.Errorf("email required")
	}
	return nil
}

func (s *Server) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.Storage.ListCustomers(r.Context())
	if err != nil {
		logger.Error("failed to list customers", map[string]any{"error": err.Error()})
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list customers")
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.Storage.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load customer")
		return
	}
	if customer == nil {
		writeErrorResponse(w, http.StatusNotFound, "customer not found")
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (s *Server) SaveCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	customer := &models.Customer{
		ID:        req.ID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if customer.ID == "" {
		customer.ID = uuid.Must(uuid.NewRandom()).String()
	} else if existing, err := s.Storage.GetCustomer(r.Context(), customer.ID); err == nil && existing != nil {
		customer.CreatedAt = existing.CreatedAt
	}

	if err := s.Storage.SaveCustomer(r.Context(), customer); err != nil {
		logger.Error("failed to save customer", map[string]any{
			"customer_id": customer.ID,
			"error":       err.Error(),
		})
		writeErrorResponse(w, http.StatusInternalServerError, "failed to save customer")
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

func (s *Server) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to delete customer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Storage.ListOrdersByCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
