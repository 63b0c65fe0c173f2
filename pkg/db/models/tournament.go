package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/enums"
)

type Tournament struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Title       string               `gorm:"column:title;not null"`
	Description string               `gorm:"column:description"`
	Mode        enums.TournamentMode `gorm:"column:mode;type:text;not null"`
	Type        enums.TournamentType `gorm:"column:type;type:text"`
	StartsAt    time.Time            `gorm:"column:starts_at;not null"`
	EndsAt      time.Time            `gorm:"column:ends_at;not null"`
	Reward      string               `gorm:"column:reward"`
	EntryPrice  decimal.Decimal      `gorm:"column:entry_price;type:numeric(12,2);not null"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (Tournament) TableName() string { return "tournaments" }

// RequiredTeamSize is 5 for multiplayer, otherwise the battle royale format size.
func (t Tournament) RequiredTeamSize() int {
	if t.Mode == enums.TournamentModeMultiplayer {
		return 5
	}
	return t.Type.TeamSize()
}

// PricePerPlayer splits the entry price evenly across the team.
func (t Tournament) PricePerPlayer() decimal.Decimal {
	size := t.RequiredTeamSize()
	if size <= 1 {
		return t.EntryPrice
	}
	return t.EntryPrice.Div(decimal.NewFromInt(int64(size))).Round(2)
}

// Team groups participants of a multi-player tournament.
type Team struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TournamentID     uuid.UUID `gorm:"column:tournament_id;type:uuid;not null;index"`
	InvitationCode   string    `gorm:"column:invitation_code;not null;uniqueIndex"`
	CreatorProfileID uuid.UUID `gorm:"column:creator_profile_id;type:uuid;not null"`
	Complete         bool      `gorm:"column:complete;not null;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`

	Members []Participant `gorm:"foreignKey:TeamID"`
}

func (Team) TableName() string { return "tournament_teams" }

// Participant registers a player profile for one tournament.
type Participant struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	TournamentID uuid.UUID  `gorm:"column:tournament_id;type:uuid;not null;uniqueIndex:idx_participants_tournament_profile"`
	ProfileID    uuid.UUID  `gorm:"column:profile_id;type:uuid;not null;uniqueIndex:idx_participants_tournament_profile"`
	TeamID       *uuid.UUID `gorm:"column:team_id;type:uuid;index"`
	Paid         bool       `gorm:"column:paid;not null;default:false"`
	JoinedAt     time.Time  `gorm:"column:joined_at;autoCreateTime"`

	Profile *PlayerProfile `gorm:"foreignKey:ProfileID"`
	Team    *Team          `gorm:"foreignKey:TeamID"`
}

func (Participant) TableName() string { return "tournament_participants" }
