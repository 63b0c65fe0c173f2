package controllers

import (
	"net/http"

	"github.com/codmtracker/codm-backend/api/middleware"
	"github.com/codmtracker/codm-backend/api/responses"
	"github.com/codmtracker/codm-backend/api/validators"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/pkg/logger"
)

type registerRequest struct {
	PaymentMethod  string `json:"payment_method" validate:"max=50"`
	Action         string `json:"action" validate:"team_action"`
	InvitationCode string `json:"invitation_code" validate:"invitation_code"`
}

// TournamentList is public; signed-in viewers also see which tournaments
// they entered.
func TournamentList(svc tournaments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := svc.List(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func TournamentRegister(svc tournaments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tournamentID, err := uuidParam(r, "tournamentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Register(r.Context(), tournaments.RegisterInput{
			UserID:         userID,
			TournamentID:   tournamentID,
			PaymentMethod:  payload.PaymentMethod,
			Action:         payload.Action,
			InvitationCode: payload.InvitationCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func TournamentRegistration(svc tournaments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tournamentID, err := uuidParam(r, "tournamentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.RegistrationStatus(r.Context(), userID, tournamentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
