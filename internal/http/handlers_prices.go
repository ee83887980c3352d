package http

import (
	"net/http"

	"ateria/internal/core"
)

type addPriceRequest struct {
	Slot    string `json:"slot"`
	Start   string `json:"start"` // YYYY-MM-DD, inclusive
	End     string `json:"end"`   // YYYY-MM-DD, inclusive
	Normal  string `json:"normal"`
	Young   string `json:"young"`
	Child   string `json:"child"`
	Special bool   `json:"special"`
	Time    string `json:"time,omitempty"`
	Label   string `json:"label,omitempty"`
}

func (s *Server) handleAddPrice(w http.ResponseWriter, r *http.Request) {
	var req addPriceRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "malformed request body"})
		return
	}

	rule, err := parsePriceRule(req)
	if err != nil {
		respondFailure(w, r, err, "adding the price rule failed")
		return
	}

	rules, err := s.svc.AddPriceRule(r.Context(), rule)
	if err != nil {
		respondFailure(w, r, err, "adding the price rule failed")
		return
	}
	respond(w, r, http.StatusOK, rules)
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "invalid year"})
		return
	}

	rules, err := s.svc.PriceRulesByYear(r.Context(), year)
	if err != nil {
		respondFailure(w, r, err, "fetching price rules failed")
		return
	}
	respond(w, r, http.StatusOK, rules)
}

func parsePriceRule(req addPriceRequest) (core.PriceRule, error) {
	start, err := core.ParseDate(req.Start)
	if err != nil {
		return core.PriceRule{}, core.ErrInvalidDateRange
	}
	end, err := core.ParseDate(req.End)
	if err != nil {
		return core.PriceRule{}, core.ErrInvalidDateRange
	}

	prices := make([]core.Money, 3)
	for i, raw := range []string{req.Normal, req.Young, req.Child} {
		cents, err := core.ParseDecimalToCents(raw)
		if err != nil {
			return core.PriceRule{}, err
		}
		prices[i] = core.Money{Cents: cents}
	}

	return core.NewPriceRule(core.MealSlot(req.Slot), start, end,
		prices[0], prices[1], prices[2], req.Special, req.Time, req.Label)
}
