package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"parcelpoint.app/cloud/models"
)

type LocationRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	LockerCount int    `json:"locker_count"`
	Active      *bool  `json:"active"`
}

func (lr LocationRequest) validate() error {
	if lr.Name == "" {
		return fmt.Errorf("name required")
	}
	if lr.LockerCount < 0 {
		return fmt.Errorf("locker_count cannot be negative")
	}
	return nil
}

func (s *Server) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.Storage.ListLocations(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) GetLocation(w http.ResponseWriter, r *http.Request) {
	location, err := s.Storage.GetLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load location")
		return
	}
	if location == nil {
		writeErrorResponse(w, http.StatusNotFound, "location not found")
		return
	}
	writeJSON(w, http.StatusOK, location)
}

func (s *Server) SaveLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	location := &models.Location{
		ID:          req.ID,
		Name:        req.Name,
		Address:     req.Address,
		City:        req.City,
		LockerCount: req.LockerCount,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Active != nil {
		location.Active = *req.Active
	}
	if location.ID == "" {
		location.ID = uuid.Must(uuid.NewRandom()).String()
	} else if existing, err := s.Storage.GetLocation(r.Context(), location.ID); err == nil && existing != nil {
		location.CreatedAt = existing.CreatedAt
	}

	if err := s.Storage.SaveLocation(r.Context(), location); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to save location")
		return
	}

	writeJSON(w, http.StatusOK, location)
}

func (s *Server) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to delete location")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) ListLocationOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Storage.ListOrdersByLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type EmployeeRequest struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

func (er EmployeeRequest) validate() error {
	if er.Name == "" {
		return fmt.Errorf("name required")
	}
	if er.LocationID == "" {
		return fmt.Errorf("location_id required")
	}
	return nil
}

func (s *Server) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := s.Storage.ListEmployeesByLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list employees")
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

func (s *Server) GetEmployee(w http.ResponseWriter, r *http.Request) {
	employee, err := s.Storage.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load employee")
		return
	}
	if employee == nil {
		writeErrorResponse(w, http.StatusNotFound, "employee not found")
		return
	}
	writeJSON(w, http.StatusOK, employee)
}

func (s *Server) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	employee := &models.Employee{
		ID:         req.ID,
		LocationID: req.LocationID,
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if employee.ID == "" {
		employee.ID = uuid.Must(uuid.NewRandom()).String()
	}

	if err := s.Storage.SaveEmployee(r.Context(), employee); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, employee)
}

func (s *Server) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to delete employee")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
