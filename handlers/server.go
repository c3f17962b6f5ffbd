package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/atomic"

	"parcelpoint.app/cloud/billing"
	"parcelpoint.app/cloud/internal/email"
	"parcelpoint.app/cloud/internal/ratelimit"
	"parcelpoint.app/cloud/storage"
)

type Server struct {
	Router  chi.Router
	Storage storage.Storage
	Billing *billing.Service
	Mailer  *email.Mailer

	webhookSecret string
	limiter       ratelimit.RateLimit
	requests      atomic.Int64
	version       string
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Requests  int64     `json:"requests"`
	Timestamp time.Time `json:"timestamp"`
}

func NewServer(db storage.Storage, billingService *billing.Service, mailer *email.Mailer, webhookSecret, version string) *Server {
	s := &Server{
		Storage:       db,
		Billing:       billingService,
		Mailer:        mailer,
		webhookSecret: webhookSecret,
		limiter:       ratelimit.New(60, time.Minute),
		version:       version,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*.parcelpoint.app", "http://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Auth-User"},
	}))
	r.Use(s.countRequests)

	r.Get("/health", s.Health)
	r.Post("/api/v1/webhooks/stripe", s.rateLimited(s.StripeWebhook))
	r.Post("/api/v1/pickups/validate", s.rateLimited(s.ValidatePickup))

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/v1/billing/subscription", s.SubscriptionStatus)
		r.Post("/api/v1/billing/checkout", s.CreateCheckout)
		r.Post("/api/v1/billing/upgrade", s.Upgrade)
		r.Post("/api/v1/billing/downgrade", s.Downgrade)
		r.Post("/api/v1/billing/cancel", s.Cancel)
		r.Post("/api/v1/billing/reactivate", s.Reactivate)

		r.Get("/api/v1/customers", s.ListCustomers)
		r.Post("/api/v1/customers", s.SaveCustomer)
		r.Get("/api/v1/customers/{id}", s.GetCustomer)
		r.Delete("/api/v1/customers/{id}", s.DeleteCustomer)
		r.Get("/api/v1/customers/{id}/orders", s.ListCustomerOrders)
		r.Get("/api/v1/customers/{id}/notes", s.ListNotes)
		r.Post("/api/v1/customers/{id}/notes", s.SaveNote)
		r.Delete("/api/v1/notes/{id}", s.DeleteNote)
		r.Get("/api/v1/customers/{id}/trusted-contacts", s.ListTrustedContacts)
		r.Post("/api/v1/customers/{id}/trusted-contacts", s.SaveTrustedContact)
		r.Delete("/api/v1/trusted-contacts/{id}", s.DeleteTrustedContact)

		r.Get("/api/v1/locations", s.ListLocations)
		r.Post("/api/v1/locations", s.SaveLocation)
		r.Get("/api/v1/locations/{id}", s.GetLocation)
		r.Delete("/api/v1/locations/{id}", s.DeleteLocation)
		r.Get("/api/v1/locations/{id}/orders", s.ListLocationOrders)
		r.Get("/api/v1/locations/{id}/employees", s.ListEmployees)

		r.Post("/api/v1/employees", s.SaveEmployee)
		r.Get("/api/v1/employees/{id}", s.GetEmployee)
		r.Delete("/api/v1/employees/{id}", s.DeleteEmployee)

		r.Post("/api/v1/orders", s.SaveOrder)
		r.Get("/api/v1/orders/{id}", s.GetOrder)
		r.Put("/api/v1/orders/{id}/status", s.UpdateOrderStatus)
		r.Get("/api/v1/orders/{id}/comments", s.ListComments)
		r.Post("/api/v1/orders/{id}/comments", s.SaveComment)
		r.Delete("/api/v1/comments/{id}", s.DeleteComment)

		r.Get("/api/v1/analytics/orders-by-status", s.OrdersByStatus)
		r.Get("/api/v1/analytics/daily-volume", s.DailyVolume)
		r.Get("/api/v1/analytics/location-throughput", s.LocationThroughput)
	})

	s.Router = r
	return s
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Version:   s.version,
		Requests:  s.requests.Load(),
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
