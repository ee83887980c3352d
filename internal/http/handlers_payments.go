package http

import (
	"net/http"

	"ateria/internal/core"
)

type savePaymentRequest struct {
	ID     string `json:"id,omitempty"` // set to overwrite an existing entry
	UserID string `json:"userId"`
	Date   string `json:"date"`   // YYYY-MM-DD
	Amount string `json:"amount"` // decimal euros, signed; charges negative
	Label  string `json:"label"`
}

func (s *Server) handleSavePayment(w http.ResponseWriter, r *http.Request) {
	var req savePaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "malformed request body"})
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "invalid date"})
		return
	}
	cents, err := core.ParseSignedDecimalToCents(req.Amount)
	if err != nil {
		respondFailure(w, r, err, "saving the payment failed")
		return
	}

	entry := core.NewIndividualPayment(req.ID, req.UserID, date,
		core.Money{Cents: cents}, req.Label)

	payments, err := s.svc.SavePayment(r.Context(), entry)
	if err != nil {
		respondFailure(w, r, err, "saving the payment failed")
		return
	}
	respond(w, r, http.StatusOK, payments)
}

func (s *Server) handleGetPayments(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "invalid year"})
		return
	}

	payments, err := s.svc.PaymentsOfYear(r.Context(), r.PathValue("id"), year)
	if err != nil {
		respondFailure(w, r, err, "fetching payments failed")
		return
	}
	respond(w, r, http.StatusOK, payments)
}
