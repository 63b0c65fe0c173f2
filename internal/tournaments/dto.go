package tournaments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	UserID         uuid.UUID
	TournamentID   uuid.UUID
	PaymentMethod  string
	Action         string
	InvitationCode string
}

// RegistrationResult summarizes a successful registration.
type RegistrationResult struct {
	TournamentID     uuid.UUID       `json:"tournament_id"`
	AmountCharged    decimal.Decimal `json:"amount_charged"`
	PaymentReference string          `json:"payment_reference"`
	Team             *TeamStatus     `json:"team,omitempty"`
}

// TeamStatus is the team view shown to one of its members.
type TeamStatus struct {
	Code          string      `json:"code"`
	IsCreator     bool        `json:"is_creator"`
	MemberCount   int         `json:"member_count"`
	RequiredCount int         `json:"required_count"`
	Complete      bool        `json:"complete"`
	Members       []MemberDTO `json:"members"`
}

type MemberDTO struct {
	ProfileID uuid.UUID `json:"profile_id"`
	GamerTag  string    `json:"gamer_tag"`
	IsCreator bool      `json:"is_creator"`
	JoinedAt  time.Time `json:"joined_at"`
}

// RegistrationStatus answers whether the user entered a tournament.
type RegistrationStatus struct {
	IsRegistered bool        `json:"is_registered"`
	Team         *TeamStatus `json:"team,omitempty"`
}

type TournamentDTO struct {
	ID             uuid.UUID            `json:"id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Mode           enums.TournamentMode `json:"mode"`
	Type           enums.TournamentType `json:"type,omitempty"`
	StartsAt       time.Time            `json:"starts_at"`
	EndsAt         time.Time            `json:"ends_at"`
	Reward         string               `json:"reward"`
	EntryPrice     decimal.Decimal      `json:"entry_price"`
	PricePerPlayer decimal.Decimal      `json:"price_per_player"`
	RequiredSize   int                  `json:"required_size"`
	HasOpenTeams   bool                 `json:"has_open_teams"`
	IsRegistered   bool                 `json:"is_registered"`
}

// Listing splits tournaments by their position relative to now.
type Listing struct {
	Ongoing  []TournamentDTO `json:"ongoing"`
	Upcoming []TournamentDTO `json:"upcoming"`
	Past     []TournamentDTO `json:"past"`
}

func toTournamentDTO(t models.Tournament) TournamentDTO {
	return TournamentDTO{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Mode:           t.Mode,
		Type:           t.Type,
		StartsAt:       t.StartsAt,
		EndsAt:         t.EndsAt,
		Reward:         t.Reward,
		EntryPrice:     t.EntryPrice,
		PricePerPlayer: t.PricePerPlayer(),
		RequiredSize:   t.RequiredTeamSize(),
	}
}
