package tournaments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/internal/users"
	"github.com/codmtracker/codm-backend/pkg/db"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/metrics"
)

const (
	pastTournamentsShown = 5
	soloAction           = "solo"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileLoader interface {
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.PlayerProfile, error)
}

// Service runs tournament registration and team formation.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*RegistrationResult, error)
	RegistrationStatus(ctx context.Context, userID, tournamentID uuid.UUID) (*RegistrationStatus, error)
	// List splits tournaments into ongoing, upcoming and recent past. A
	// viewer other than uuid.Nil marks the tournaments they entered.
	List(ctx context.Context, viewer uuid.UUID) (*Listing, error)
}

type ServiceParams struct {
	Repo     *Repository
	Profiles profileLoader
	TxRunner txRunner
	Gateway  EntryFeeGateway
	Metrics  *metrics.RegistrationMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	profiles profileLoader
	tx       txRunner
	gateway  EntryFeeGateway
	metrics  *metrics.RegistrationMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the registration workflow. The entry fee gateway must be
// supplied explicitly.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tournaments repository required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile loader required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("entry fee gateway required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		profiles: params.Profiles,
		tx:       params.TxRunner,
		gateway:  params.Gateway,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func alreadyRegistered() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "you are already registered for this tournament").
		WithReason(pkgerrors.ReasonAlreadyRegistered)
}

func invalidCode() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid invitation code").
		WithReason(pkgerrors.ReasonInvalidCode)
}

func teamComplete() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "this team is already complete").
		WithReason(pkgerrors.ReasonTeamComplete)
}

// completeTeamError aborts a join and carries the team whose flag needs repair.
type completeTeamError struct {
	teamID uuid.UUID
	repair bool
}

func (e *completeTeamError) Error() string { return "team complete" }

func (s *service) loadProfile(ctx context.Context, userID uuid.UUID) (*models.PlayerProfile, error) {
	profile, err := s.profiles.FindProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrProfileNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load player profile")
	}
	return profile, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*RegistrationResult, error) {
	profile, err := s.loadProfile(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "create your player profile first").
			WithReason(pkgerrors.ReasonMissingProfile)
	}
	paymentMethod := strings.TrimSpace(input.PaymentMethod)
	if paymentMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	tournament, err := s.repo.FindTournament(ctx, input.TournamentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tournament not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tournament")
	}
	existing, err := s.repo.FindParticipant(ctx, tournament.ID, profile.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check registration")
	}
	if existing != nil {
		return nil, alreadyRegistered()
	}
	if s.now().After(tournament.EndsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "this tournament has ended").
			WithReason(pkgerrors.ReasonTournamentEnded)
	}

	size := tournament.RequiredTeamSize()
	action := soloAction
	if size > 1 {
		parsed, err := enums.ParseTeamAction(strings.ToLower(strings.TrimSpace(input.Action)))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "action must be create or join")
		}
		action = parsed.String()
	}

	var result *RegistrationResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		switch action {
		case soloAction:
			if err := s.createParticipant(ctx, repo, tournament.ID, profile.ID, nil); err != nil {
				return err
			}
			receipt, err := s.charge(ctx, tournament, profile, tournament.EntryPrice, paymentMethod)
			if err != nil {
				return err
			}
			result = &RegistrationResult{TournamentID: tournament.ID, AmountCharged: tournament.EntryPrice, PaymentReference: receipt.Reference}
			return nil
		case enums.TeamActionCreate.String():
			team, receipt, err := s.createTeam(ctx, repo, tournament, profile, paymentMethod)
			if err != nil {
				return err
			}
			status, err := s.teamStatus(ctx, repo, team, profile.ID, size)
			if err != nil {
				return err
			}
			result = &RegistrationResult{TournamentID: tournament.ID, AmountCharged: tournament.PricePerPlayer(), PaymentReference: receipt.Reference, Team: status}
			return nil
		default:
			team, receipt, err := s.joinTeam(ctx, repo, tournament, profile, input.InvitationCode, paymentMethod)
			if err != nil {
				return err
			}
			status, err := s.teamStatus(ctx, repo, team, profile.ID, size)
			if err != nil {
				return err
			}
			result = &RegistrationResult{TournamentID: tournament.ID, AmountCharged: tournament.PricePerPlayer(), PaymentReference: receipt.Reference, Team: status}
			return nil
		}
	})
	if err != nil {
		var full *completeTeamError
		if errors.As(err, &full) {
			if full.repair {
				if repairErr := s.repo.MarkComplete(ctx, full.teamID); repairErr != nil && s.logg != nil {
					s.logg.Error(ctx, "tournaments.team_flag_repair_failed", repairErr)
				}
			}
			return nil, teamComplete()
		}
		return nil, err
	}

	s.metrics.IncRegistration(tournament.Mode.String(), action)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"tournament_id": tournament.ID.String(),
			"profile_id":    profile.ID.String(),
			"action":        action,
		})
		s.logg.Info(logCtx, "tournaments.registered")
	}
	return result, nil
}

func (s *service) charge(ctx context.Context, t *models.Tournament, profile *models.PlayerProfile, amount decimal.Decimal, method string) (*EntryFeeReceipt, error) {
	receipt, err := s.gateway.Charge(ctx, EntryFeeCharge{
		TournamentID:  t.ID,
		ProfileID:     profile.ID,
		Amount:        amount,
		PaymentMethod: method,
	})
	if err != nil {
		if errors.Is(err, ErrChargeDeclined) {
			return nil, pkgerrors.Wrap(pkgerrors.CodePayment, err, "the entry fee payment was declined").
				WithReason(pkgerrors.ReasonPaymentDeclined)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "entry fee payment could not be processed")
	}
	if receipt == nil {
		receipt = &EntryFeeReceipt{}
	}
	return receipt, nil
}

func (s *service) createParticipant(ctx context.Context, repo *Repository, tournamentID, profileID uuid.UUID, teamID *uuid.UUID) error {
	err := repo.CreateParticipant(ctx, &models.Participant{
		TournamentID: tournamentID,
		ProfileID:    profileID,
		TeamID:       teamID,
		Paid:         true,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return alreadyRegistered()
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participant")
	}
	return nil
}

func (s *service) uniqueCode(ctx context.Context, repo *Repository) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := NewInvitationCode()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invitation code")
		}
		taken, err := repo.CodeExists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check invitation code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate an invitation code")
}

func (s *service) createTeam(ctx context.Context, repo *Repository, t *models.Tournament, profile *models.PlayerProfile, method string) (*models.Team, *EntryFeeReceipt, error) {
	code, err := s.uniqueCode(ctx, repo)
	if err != nil {
		return nil, nil, err
	}
	team := &models.Team{
		TournamentID:     t.ID,
		InvitationCode:   code,
		CreatorProfileID: profile.ID,
	}
	if err := repo.CreateTeam(ctx, team); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create team")
	}
	if err := s.createParticipant(ctx, repo, t.ID, profile.ID, &team.ID); err != nil {
		return nil, nil, err
	}
	if err := s.completeIfFull(ctx, repo, team, t.RequiredTeamSize()); err != nil {
		return nil, nil, err
	}
	receipt, err := s.charge(ctx, t, profile, t.PricePerPlayer(), method)
	if err != nil {
		return nil, nil, err
	}
	return team, receipt, nil
}

func (s *service) joinTeam(ctx context.Context, repo *Repository, t *models.Tournament, profile *models.PlayerProfile, rawCode, method string) (*models.Team, *EntryFeeReceipt, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "an invitation code is required to join a team").
			WithReason(pkgerrors.ReasonInvalidCode)
	}
	team, err := repo.LockTeamByCode(ctx, t.ID, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, invalidCode()
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}

	size := t.RequiredTeamSize()
	if team.Complete {
		return nil, nil, &completeTeamError{teamID: team.ID}
	}
	members, err := repo.CountMembers(ctx, team.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count team members")
	}
	if members >= size {
		return nil, nil, &completeTeamError{teamID: team.ID, repair: true}
	}

	if err := s.createParticipant(ctx, repo, t.ID, profile.ID, &team.ID); err != nil {
		return nil, nil, err
	}
	if err := s.completeIfFull(ctx, repo, team, size); err != nil {
		return nil, nil, err
	}
	receipt, err := s.charge(ctx, t, profile, t.PricePerPlayer(), method)
	if err != nil {
		return nil, nil, err
	}
	return team, receipt, nil
}

func (s *service) completeIfFull(ctx context.Context, repo *Repository, team *models.Team, size int) error {
	members, err := repo.CountMembers(ctx, team.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count team members")
	}
	if members < size {
		return nil
	}
	if err := repo.MarkComplete(ctx, team.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark team complete")
	}
	team.Complete = true
	return nil
}

func (s *service) teamStatus(ctx context.Context, repo *Repository, team *models.Team, viewerProfileID uuid.UUID, size int) (*TeamStatus, error) {
	members, err := repo.ListMembers(ctx, team.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list team members")
	}
	status := &TeamStatus{
		Code:          team.InvitationCode,
		IsCreator:     team.CreatorProfileID == viewerProfileID,
		MemberCount:   len(members),
		RequiredCount: size,
		Complete:      team.Complete,
		Members:       make([]MemberDTO, 0, len(members)),
	}
	for _, m := range members {
		member := MemberDTO{
			ProfileID: m.ProfileID,
			IsCreator: m.ProfileID == team.CreatorProfileID,
			JoinedAt:  m.JoinedAt,
		}
		if m.Profile != nil {
			member.GamerTag = m.Profile.GamerTag
		}
		status.Members = append(status.Members, member)
	}
	return status, nil
}

func (s *service) RegistrationStatus(ctx context.Context, userID, tournamentID uuid.UUID) (*RegistrationStatus, error) {
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &RegistrationStatus{IsRegistered: false}, nil
	}
	tournament, err := s.repo.FindTournament(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tournament not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tournament")
	}
	participant, err := s.repo.FindParticipant(ctx, tournament.ID, profile.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check registration")
	}
	if participant == nil {
		return &RegistrationStatus{IsRegistered: false}, nil
	}
	out := &RegistrationStatus{IsRegistered: true}
	if participant.TeamID == nil {
		return out, nil
	}
	team, err := s.repo.FindTeam(ctx, *participant.TeamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load team")
	}
	out.Team, err = s.teamStatus(ctx, s.repo, team, profile.ID, tournament.RequiredTeamSize())
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) List(ctx context.Context, viewer uuid.UUID) (*Listing, error) {
	rows, err := s.repo.ListTournaments(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tournaments")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, t := range rows {
		ids = append(ids, t.ID)
	}
	open, err := s.repo.TournamentsWithOpenTeams(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open teams")
	}
	registered := map[uuid.UUID]bool{}
	if viewer != uuid.Nil {
		profile, err := s.loadProfile(ctx, viewer)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			if registered, err = s.repo.RegisteredTournamentIDs(ctx, profile.ID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load registrations")
			}
		}
	}

	now := s.now()
	listing := &Listing{Ongoing: []TournamentDTO{}, Upcoming: []TournamentDTO{}, Past: []TournamentDTO{}}
	for _, t := range rows {
		dto := toTournamentDTO(t)
		dto.HasOpenTeams = open[t.ID]
		dto.IsRegistered = registered[t.ID]
		switch {
		case now.Before(t.StartsAt):
			listing.Upcoming = append(listing.Upcoming, dto)
		case now.After(t.EndsAt):
			listing.Past = append(listing.Past, dto)
		default:
			listing.Ongoing = append(listing.Ongoing, dto)
		}
	}
	sort.SliceStable(listing.Past, func(i, j int) bool {
		return listing.Past[i].EndsAt.After(listing.Past[j].EndsAt)
	})
	if len(listing.Past) > pastTournamentsShown {
		listing.Past = listing.Past[:pastTournamentsShown]
	}
	return listing, nil
}
