package http

import (
	"net/http"

	"ateria/internal/core"
)

type addUserRequest struct {
	Name            string                `json:"name"`
	ArchivedBalance string                `json:"archivedBalance,omitempty"` // decimal euros, signed
	Profiles        []core.AllergyProfile `json:"profiles,omitempty"`
}

// userResponse flattens the profile map into a list for clients.
type userResponse struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	ArchivedBalance core.Money            `json:"archivedBalance"`
	Profiles        []core.AllergyProfile `json:"allergyProfiles,omitempty"`
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "malformed request body"})
		return
	}

	var balance core.Money
	if req.ArchivedBalance != "" {
		cents, err := core.ParseSignedDecimalToCents(req.ArchivedBalance)
		if err != nil {
			respondFailure(w, r, err, "adding the user failed")
			return
		}
		balance = core.Money{Cents: cents}
	}

	users, err := s.svc.AddUser(r.Context(), req.Name, balance, req.Profiles)
	if err != nil {
		respondFailure(w, r, err, "adding the user failed")
		return
	}
	respond(w, r, http.StatusOK, users)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users(r.Context())
	if err != nil {
		respondFailure(w, r, err, "listing users failed")
		return
	}
	respond(w, r, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.UserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondFailure(w, r, err, "fetching the user failed")
		return
	}
	respond(w, r, http.StatusOK, userResponse{
		ID:              user.ID,
		Name:            user.Name,
		ArchivedBalance: user.ArchivedBalance,
		Profiles:        user.SortedProfiles(),
	})
}

func (s *Server) handleAddAllergy(w http.ResponseWriter, r *http.Request) {
	var profile core.AllergyProfile
	if err := decodeBody(r, &profile); err != nil {
		respond(w, r, http.StatusBadRequest, failure{Message: "malformed request body"})
		return
	}

	users, err := s.svc.AddUserAllergy(r.Context(), r.PathValue("id"), profile)
	if err != nil {
		respondFailure(w, r, err, "adding the allergy profile failed")
		return
	}
	respond(w, r, http.StatusOK, users)
}
