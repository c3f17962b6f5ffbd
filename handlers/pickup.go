package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"parcelpoint.app/cloud/internal/logger"
	"parcelpoint.app/cloud/internal/version"
	"parcelpoint.app/cloud/models"
)

type PickupRequest struct {
	PickupCode string `json:"pickup_code"`
	AppVersion string `json:"app_version"`
}

type PickupResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
}

func (pr PickupRequest) validate() error {
	if pr.PickupCode == "" {
		return fmt.Errorf("pickup_code required")
	}
	// Empty app_version is rejected by the compatibility check.
	return nil
}

// ValidatePickup is called by the locker terminal when someone enters
// a code. A valid code releases the package: the order is marked picked
// up in the same request, so replaying the code afterwards fails.
func (s *Server) ValidatePickup(w http.ResponseWriter, r *http.Request) {
	var req PickupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "empty body")
		return
	}
	if err := req.validate(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	compatible, err := version.IsCompatible(s.version, req.AppVersion)
	if err != nil {
		respondWithPickup(w, false, "invalid version format", "")
		return
	}
	if !compatible {
		respondWithPickup(w, false, "terminal software too old for this service", "")
		return
	}

	order, err := s.Storage.FindOrderByPickupCode(r.Context(), req.PickupCode)
	if err != nil {
		logger.Error("pickup code lookup failed", map[string]any{
			"error": err.Error(),
		})
		writeErrorResponse(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if order == nil {
		respondWithPickup(w, false, "pickup code not found", "")
		return
	}
	if order.Status != models.OrderInLocker {
		respondWithPickup(w, false, "package not available for pickup", "")
		return
	}

	now := time.Now()
	order.Status = models.OrderPickedUp
	order.PickedUpAt = &now
	order.UpdatedAt = now
	if err := s.Storage.SaveOrder(r.Context(), order); err != nil {
		logger.Error("failed to mark order picked up", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		writeErrorResponse(w, http.StatusInternalServerError, "failed to complete pickup")
		return
	}

	logger.Info("package picked up", map[string]any{
		"order_id":    order.ID,
		"location_id": order.LocationID,
	})
	respondWithPickup(w, true, "package released", order.ID)
}

func respondWithPickup(w http.ResponseWriter, valid bool, message, orderID string) {
	writeJSON(w, http.StatusOK, PickupResponse{
		Valid:   valid,
		Message: message,
		OrderID: orderID,
	})
}
