package handlers

import (
	"encoding/json"
	"net/http"

	"parcelpoint.app/cloud/billing"
	"parcelpoint.app/cloud/internal/logger"
)

type PlanRequest struct {
	Plan string `json:"plan"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

func (s *Server) SubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Billing.CurrentStatus(r.Context(), userFrom(r))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodePlan(w, r)
	if !ok {
		return
	}

	url, err := s.Billing.CreateCheckoutSession(r.Context(), userFrom(r), plan)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{URL: url})
}

func (s *Server) Upgrade(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodePlan(w, r)
	if !ok {
		return
	}

	user := userFrom(r)
	result, err := s.Billing.Upgrade(r.Context(), user, plan)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	logger.Info("subscription upgraded", map[string]any{
		"user_id": user.ID,
		"plan":    string(plan),
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) Downgrade(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodePlan(w, r)
	if !ok {
		return
	}

	user := userFrom(r)
	result, err := s.Billing.Downgrade(r.Context(), user, plan)
	if err != nil {
		writeBillingError(w, err)
		return
	}

	logger.Info("subscription downgrade scheduled", map[string]any{
		"user_id":      user.ID,
		"plan":         string(plan),
		"effective_at": result.EffectiveAt,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) Cancel(w http.ResponseWriter, r *http.Request) {
	result, err := s.Billing.Cancel(r.Context(), userFrom(r))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) Reactivate(w http.ResponseWriter, r *http.Request) {
	result, err := s.Billing.Reactivate(r.Context(), userFrom(r))
	if err != nil {
		writeBillingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodePlan(w http.ResponseWriter, r *http.Request) (billing.Plan, bool) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}

	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return plan, true
}
