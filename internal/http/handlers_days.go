package http

import (
	"net/http"

	"ateria/internal/core"
)

type saveDayRequest struct {
	Lunch  *core.FoodRecord `json:"lunch,omitempty"`
	Coffee *core.FoodRecord `json:"coffee,omitempty"`
	Dinner *core.FoodRecord `json:"dinner,omitempty"`
}

func (s *Server) handleSaveDay(w http.ResponseWriter, r *http.Request) {
	year, errY := pathInt(r, "year")
	month, errM := pathInt(r, "month")
	day, errD := pathInt(r, "day")
	if errY != nil || errM != nil || errD != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "invalid date path"})
		return
	}

	var req saveDayRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "malformed request body"})
		return
	}

	reg := core.NewRegistration(r.PathValue("id"), year, month, day,
		req.Lunch, req.Coffee, req.Dinner)

	view, err := s.svc.SaveDay(r.Context(), reg)
	if err != nil {
		respondFailure(w, r, err, "saving the registration failed")
		return
	}
	respond(w, r, http.StatusOK, view)
}

func (s *Server) handleUserMonth(w http.ResponseWriter, r *http.Request) {
	year, errY := pathInt(r, "year")
	month, errM := pathInt(r, "month")
	if errY != nil || errM != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "invalid month path"})
		return
	}

	view, err := s.svc.UserMonth(r.Context(), r.PathValue("id"), year, month)
	if err != nil {
		respondFailure(w, r, err, "fetching the month failed")
		return
	}
	respond(w, r, http.StatusOK, view)
}

func (s *Server) handleKitchenDay(w http.ResponseWriter, r *http.Request) {
	year, errY := pathInt(r, "year")
	month, errM := pathInt(r, "month")
	day, errD := pathInt(r, "day")
	if errY != nil || errM != nil || errD != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "invalid date path"})
		return
	}

	view, err := s.svc.KitchenDay(r.Context(), year, month, day)
	if err != nil {
		respondFailure(w, r, err, "fetching the kitchen day failed")
		return
	}
	respond(w, r, http.StatusOK, view)
}
