package handlers

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"parcelpoint.app/cloud/internal/logger"
	"parcelpoint.app/cloud/models"
)

type OrderRequest struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	LocationID     string `json:"location_id"`
	LockerNumber   int    `json:"locker_number"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type OrderStatusRequest struct {
	Status string `json:"status"`
}

func (or OrderRequest) validate() error {
	if or.CustomerID == "" {
		return fmt.Errorf("customer_id required")
	}
	if or.LocationID == "" {
		return fmt.Errorf("location_id required")
	}
	return nil
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.Storage.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order == nil {
		writeErrorResponse(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) SaveOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	order := &models.Order{
		ID:             req.ID,
		CustomerID:     req.CustomerID,
		LocationID:     req.LocationID,
		LockerNumber:   req.LockerNumber,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		PickupCode:     generatePickupCode(),
		Status:         models.OrderPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if order.ID == "" {
		order.ID = uuid.Must(uuid.NewRandom()).String()
	}

	if err := s.Storage.SaveOrder(r.Context(), order); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("order created", map[string]any{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"location_id": order.LocationID,
	})
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validOrderStatus(req.Status) {
		writeErrorResponse(w, http.StatusBadRequest, "unknown order status")
		return
	}

	order, err := s.Storage.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order == nil {
		writeErrorResponse(w, http.StatusNotFound, "order not found")
		return
	}

	now := time.Now()
	order.Status = req.Status
	order.UpdatedAt = now
	switch req.Status {
	case models.OrderInLocker:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case models.OrderPickedUp:
		if order.PickedUpAt == nil {
			order.PickedUpAt = &now
		}
	}

	if err := s.Storage.SaveOrder(r.Context(), order); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to save order")
		return
	}

	logger.Info("order status updated", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	writeJSON(w, http.StatusOK, order)
}

func validOrderStatus(status string) bool {
	switch status {
	case models.OrderPending, models.OrderInLocker, models.OrderPickedUp,
		models.OrderExpired, models.OrderReturned:
		return true
	}
	return false
}

// generatePickupCode returns a 6-digit code, short enough to type on
// a locker keypad. Codes are only honored while the order sits in a
// locker, so the collision window stays narrow.
func generatePickupCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
