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

type CommentRequest struct {
	ParentID string `json:"parent_id"`
	Body     string `json:"body"`
}

type NoteRequest struct {
	Body string `json:"body"`
}

type TrustedContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (s *Server) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.Storage.ListCommentsByOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) SaveComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		writeErrorResponse(w, http.StatusBadRequest, "body required")
		return
	}

	orderID := chi.URLParam(r, "id")
	order, err := s.Storage.GetOrder(r.Context(), orderID)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order == nil {
		writeErrorResponse(w, http.StatusNotFound, "order not found")
		return
	}

	now := time.Now()
	comment := &models.Comment{
		ID:        uuid.Must(uuid.NewRandom()).String(),
		OrderID:   orderID,
		AuthorID:  userFrom(r).ID,
		ParentID:  req.ParentID,
		Body:      req.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Storage.SaveComment(r.Context(), comment); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.DeleteComment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.Storage.ListNotesByCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) SaveNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		writeErrorResponse(w, http.StatusBadRequest, "body required")
		return
	}

	now := time.Now()
	note := &models.Note{
		ID:         uuid.Must(uuid.NewRandom()).String(),
		CustomerID: chi.URLParam(r, "id"),
		AuthorID:   userFrom(r).ID,
		Body:       req.Body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Storage.SaveNote(r.Context(), note); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (s *Server) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to delete note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) ListTrustedContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.Storage.ListTrustedContactsByCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to list trusted contacts")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) SaveTrustedContact(w http.ResponseWriter, r *http.Request) {
	var req TrustedContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeErrorResponse(w, http.StatusBadRequest, "name required")
		return
	}

	customerID := chi.URLParam(r, "id")
	customer, err := s.Storage.GetCustomer(r.Context(), customerID)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to load customer")
		return
	}
	if customer == nil {
		writeErrorResponse(w, http.StatusNotFound, "customer not found")
		return
	}

	now := time.Now()
	contact := &models.TrustedContact{
		ID:         uuid.Must(uuid.NewRandom()).String(),
		CustomerID: customerID,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Storage.SaveTrustedContact(r.Context(), contact); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// The contact is saved either way; the notification is best effort.
	if contact.Email != "" {
		body := fmt.Sprintf(`Hello %s,

%s added you as a trusted pickup contact at ParcelPoint. You can now
collect their packages at any of their locations by showing a valid ID
at the counter or entering the pickup code they share with you.

If you did not expect this, reply to this email and we will remove you.

The ParcelPoint Team`, contact.Name, customer.Name)

		if err := s.Mailer.Send(contact.Email, "You were added as a trusted contact", body); err != nil {
			logger.Warn("trusted contact notification not sent", map[string]any{
				"contact_id": contact.ID,
				"error":      err.Error(),
			})
		}
	}

	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) DeleteTrustedContact(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.DeleteTrustedContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "failed to delete trusted contact")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
