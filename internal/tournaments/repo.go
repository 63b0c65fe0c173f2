package tournaments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/db"
	"github.com/codmtracker/codm-backend/pkg/db/models"
)

// Repository persists tournaments, teams and participants.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	var t models.Tournament
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTournaments returns every tournament ordered by start time.
func (r *Repository) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	var rows []models.Tournament
	if err := r.db.WithContext(ctx).Order("starts_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindParticipant returns nil when the profile is not registered.
func (r *Repository) FindParticipant(ctx context.Context, tournamentID, profileID uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	err := r.db.WithContext(ctx).
		Where("tournament_id = ? AND profile_id = ?", tournamentID, profileID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisteredTournamentIDs lists the tournaments the profile entered.
func (r *Repository) RegisteredTournamentIDs(ctx context.Context, profileID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("profile_id = ?", profileID).
		Pluck("tournament_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *Repository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) CreateTeam(ctx context.Context, team *models.Team) error {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(team).Error
}

// CodeExists checks the code against every team of every tournament.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("invitation_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// LockTeamByCode loads the team holding code within the tournament and keeps
// it row-locked until the transaction ends.
func (r *Repository) LockTeamByCode(ctx context.Context, tournamentID uuid.UUID, code string) (*models.Team, error) {
	var team models.Team
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("tournament_id = ? AND invitation_code = ?", tournamentID, code).
		First(&team).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *Repository) FindTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).First(&team, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *Repository) CountMembers(ctx context.Context, teamID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("team_id = ?", teamID).
		Count(&count).Error
	return int(count), err
}

// ListMembers returns team members with profiles, in joining order.
func (r *Repository) ListMembers(ctx context.Context, teamID uuid.UUID) ([]models.Participant, error) {
	var rows []models.Participant
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkComplete sets the completion flag. It never clears it.
func (r *Repository) MarkComplete(ctx context.Context, teamID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ? AND complete = ?", teamID, false).
		Update("complete", true).Error
}

// TournamentsWithOpenTeams reports which of ids still have a forming team.
func (r *Repository) TournamentsWithOpenTeams(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var open []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Team{}).
		Distinct("tournament_id").
		Where("tournament_id IN ? AND complete = ?", ids, false).
		Pluck("tournament_id", &open).Error
	if err != nil {
		return nil, err
	}
	for _, id := range open {
		out[id] = true
	}
	return out, nil
}

// UpsertTournamentByTitle creates the tournament or refreshes the one with the
// same title. Registrations are untouched.
func (r *Repository) UpsertTournamentByTitle(ctx context.Context, t *models.Tournament) (*models.Tournament, error) {
	var existing models.Tournament
	err := r.db.WithContext(ctx).Where("title = ?", t.Title).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"description": t.Description,
			"mode":        t.Mode,
			"type":        t.Type,
			"starts_at":   t.StartsAt,
			"ends_at":     t.EndsAt,
			"reward":      t.Reward,
			"entry_price": t.EntryPrice,
		}
		if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return r.FindTournament(ctx, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}
