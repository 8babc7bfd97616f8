package services

import (
	"context"
	"fmt"
	"strings"

	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

type tournamentService struct {
	tournamentRepo interfaces.TournamentRepository
	marketRepo     interfaces.MarketRepository
	betRepo        interfaces.BetRepository
	ledger         interfaces.LedgerService
	eventPublisher interfaces.EventPublisher
	clock          clockwork.Clock
	validate       *validator.Validate
}

// NewTournamentService creates a new tournament service.
// The user and balance history repositories refund bets voided by a market cancellation.
func NewTournamentService(
	tournamentRepo interfaces.TournamentRepository,
	marketRepo interfaces.MarketRepository,
	betRepo interfaces.BetRepository,
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		marketRepo:     marketRepo,
		betRepo:        betRepo,
		ledger:         NewLedgerService(userRepo, balanceHistoryRepo, eventPublisher, clock),
		eventPublisher: eventPublisher,
		clock:          clock,
		validate:       validator.New(),
	}
}

func requireAdmin(principal entities.Principal) error {
	if !principal.IsAdmin {
		return domain.NewError(domain.CodeForbidden, "admin privileges required")
	}
	return nil
}

func (s *tournamentService) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.NewError(domain.CodeInvalidInput, "invalid request").Wrap(err)
	}
	return nil
}

// CreateTournament stores the tournament and its overall-winner market
func (s *tournamentService) CreateTournament(ctx context.Context, principal entities.Principal, req entities.CreateTournamentRequest) (*entities.Tournament, *entities.Market, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateRequest(req); err != nil {
		return nil, nil, err
	}
	if err := entities.ValidateTeams(req.Teams); err != nil {
		return nil, nil, err
	}

	tournament := &entities.Tournament{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      entities.TournamentStatusUpcoming,
		Teams:       req.Teams,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	market := entities.NewOverallWinnerMarket(tournament)
	if err := s.marketRepo.Create(ctx, market); err != nil {
		return nil, nil, fmt.Errorf("failed to create overall winner market: %w", err)
	}

	tournament.OverallWinnerMarketID = &market.ID
	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, nil, fmt.Errorf("failed to link overall winner market: %w", err)
	}

	log.WithFields(log.Fields{
		"tournamentID": tournament.ID,
		"marketID":     market.ID,
		"teams":        len(tournament.Teams),
	}).Info("Tournament created")

	return tournament, market, nil
}

// UpdateTeams replaces the roster. Teams still referenced by a match market cannot be removed.
func (s *tournamentService) UpdateTeams(ctx context.Context, principal entities.Principal, tournamentID int64, teams []entities.Team) (*entities.Tournament, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if err := entities.ValidateTeams(teams); err != nil {
		return nil, err
	}

	tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament == nil {
		return nil, domain.NewError(domain.CodeNotFound, "tournament %d not found", tournamentID)
	}
	if tournament.IsFinished() {
		return nil, domain.NewError(domain.CodeAlreadySettled, "tournament %d is finished", tournamentID)
	}

	markets, err := s.marketRepo.GetByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get markets: %w", err)
	}
	updated := &entities.Tournament{Teams: teams}
	for _, m := range markets {
		if !m.IsMatch() || m.Status == entities.MarketStatusCancelled {
			continue
		}
		for _, team := range []*string{m.Team1, m.Team2} {
			if team != nil && !updated.HasTeam(*team) {
				return nil, domain.NewError(domain.CodeInvalidOptions, "team %q is still playing in market %d", *team, m.ID).
					WithDetail("marketId", m.ID)
			}
		}
	}

	if tournament.OverallWinnerMarketID != nil {
		market, err := s.marketRepo.GetByIDForUpdate(ctx, *tournament.OverallWinnerMarketID)
		if err != nil {
			return nil, fmt.Errorf("failed to get overall winner market: %w", err)
		}
		if market != nil {
			if err := market.SyncRosterOptions(teams); err != nil {
				return nil, err
			}
			if err := s.checkLiveSelections(ctx, market); err != nil {
				return nil, err
			}
			if err := s.marketRepo.ReplaceOptions(ctx, market.ID, market.Options); err != nil {
				return nil, fmt.Errorf("failed to update overall winner options: %w", err)
			}
		}
	}

	tournament.Teams = teams
	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}
	return tournament, nil
}

// CreateMatch opens a match market between two roster teams
func (s *tournamentService) CreateMatch(ctx context.Context, principal entities.Principal, req entities.CreateMatchRequest) (*entities.Market, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, req.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament == nil {
		return nil, domain.NewError(domain.CodeNotFound, "tournament %d not found", req.TournamentID)
	}
	if tournament.IsFinished() || tournament.Status == entities.TournamentStatusCancelled {
		return nil, domain.NewError(domain.CodeInvalidState, "tournament %d is %s", tournament.ID, tournament.Status)
	}
	if err := tournament.ValidateMatchup(req.Team1, req.Team2); err != nil {
		return nil, err
	}

	market := entities.NewMatchMarket(tournament.ID, req.Team1, req.Team2, strings.TrimSpace(req.Title), req.EventDate)
	if err := s.marketRepo.Create(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to create match market: %w", err)
	}

	log.WithFields(log.Fields{
		"tournamentID": tournament.ID,
		"marketID":     market.ID,
		"team1":        req.Team1,
		"team2":        req.Team2,
	}).Info("Match created")

	return market, nil
}

// DeclareMatchResult finishes a match market. The exclusive lock waits for in-flight bets.
func (s *tournamentService) DeclareMatchResult(ctx context.Context, principal entities.Principal, marketID int64, winner string, score *string) (*entities.Market, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}
	if !market.IsMatch() {
		return nil, domain.NewError(domain.CodeInvalidState, "market %d is not a match market", marketID)
	}

	if err := s.declare(ctx, market, winner, score); err != nil {
		return nil, err
	}
	return market, nil
}

func (s *tournamentService) declare(ctx context.Context, market *entities.Market, winner string, score *string) error {
	if err := market.DeclareResult(winner, score); err != nil {
		return err
	}
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return fmt.Errorf("failed to save market result: %w", err)
	}

	log.WithFields(log.Fields{
		"marketID": market.ID,
		"result":   winner,
	}).Info("Market result declared")

	if err := s.eventPublisher.Publish(events.MarketResultDeclaredEvent{
		MarketID:     market.ID,
		TournamentID: market.TournamentID,
		Result:       winner,
		Score:        score,
	}); err != nil {
		log.WithError(err).Error("Failed to publish market result declared event")
	}
	return nil
}

// DeclareTournamentResults stores final rankings and declares the rank 1 team on the overall-winner market
func (s *tournamentService) DeclareTournamentResults(ctx context.Context, principal entities.Principal, tournamentID int64, rankings []entities.Ranking) (*entities.Tournament, *entities.Market, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, nil, err
	}

	tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, tournamentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament == nil {
		return nil, nil, domain.NewError(domain.CodeNotFound, "tournament %d not found", tournamentID)
	}
	if tournament.IsFinished() {
		return nil, nil, domain.NewError(domain.CodeAlreadySettled, "tournament %d already has final rankings", tournamentID)
	}
	if err := tournament.ValidateRankings(rankings); err != nil {
		return nil, nil, err
	}
	winner, _ := entities.Winner(rankings)

	var market *entities.Market
	if tournament.OverallWinnerMarketID != nil {
		market, err = s.marketRepo.GetByIDForUpdate(ctx, *tournament.OverallWinnerMarketID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get overall winner market: %w", err)
		}
	}
	if market == nil {
		return nil, nil, domain.NewError(domain.CodeMarketNotFound, "tournament %d has no overall winner market", tournamentID)
	}
	if err := s.declare(ctx, market, winner, nil); err != nil {
		return nil, nil, err
	}

	tournament.FinalRankings = rankings
	tournament.Status = entities.TournamentStatusFinished
	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, nil, fmt.Errorf("failed to save final rankings: %w", err)
	}

	if err := s.eventPublisher.Publish(events.TournamentFinishedEvent{
		TournamentID: tournament.ID,
		Winner:       winner,
		Rankings:     rankings,
	}); err != nil {
		log.WithError(err).Error("Failed to publish tournament finished event")
	}

	return tournament, market, nil
}

// DeleteTournament removes a tournament once none of its markets hold active bets
func (s *tournamentService) DeleteTournament(ctx context.Context, principal entities.Principal, tournamentID int64) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	tournament, err := s.tournamentRepo.GetByIDForUpdate(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament == nil {
		return domain.NewError(domain.CodeNotFound, "tournament %d not found", tournamentID)
	}

	// Keeps new bets out between the count and the delete
	if err := s.marketRepo.LockByTournament(ctx, tournamentID); err != nil {
		return fmt.Errorf("failed to lock markets: %w", err)
	}
	active, err := s.betRepo.CountActiveByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to count active bets: %w", err)
	}
	if active > 0 {
		return domain.NewError(domain.CodeActiveBetsExist, "tournament %d has %d active bets", tournamentID, active).
			WithDetail("activeBets", active)
	}

	if err := s.tournamentRepo.Delete(ctx, tournamentID); err != nil {
		return fmt.Errorf("failed to delete tournament: %w", err)
	}

	log.WithField("tournamentID", tournamentID).Info("Tournament deleted")
	return nil
}

// SetMarketOptions replaces a market's options, keeping the stake of options that remain
func (s *tournamentService) SetMarketOptions(ctx context.Context, principal entities.Principal, marketID int64, options []*entities.MarketOption) (*entities.Market, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}
	if err := market.SetOptions(options); err != nil {
		return nil, err
	}
	if err := s.checkLiveSelections(ctx, market); err != nil {
		return nil, err
	}
	if err := s.marketRepo.ReplaceOptions(ctx, marketID, market.Options); err != nil {
		return nil, fmt.Errorf("failed to save market options: %w", err)
	}
	return market, nil
}

// checkLiveSelections refuses an option set that drops a selection active bets still point at.
// Counting bets instead of stake also covers bets whose stake is not recorded yet.
func (s *tournamentService) checkLiveSelections(ctx context.Context, market *entities.Market) error {
	counts, err := s.betRepo.CountActiveBySelection(ctx, market.ID)
	if err != nil {
		return fmt.Errorf("failed to count active bets: %w", err)
	}
	for selection, count := range counts {
		if count == 0 {
			continue
		}
		if _, err := market.Option(selection); err != nil {
			return domain.NewError(domain.CodeInvalidOptions, "option %q has %d active bets and cannot be removed", selection, count).
				WithDetail("option", selection).
				WithDetail("activeBets", count)
		}
	}
	return nil
}

// SetMarketStatus moves a market between upcoming, active and cancelled.
// Cancelling voids and refunds every active bet in the same transaction.
func (s *tournamentService) SetMarketStatus(ctx context.Context, principal entities.Principal, marketID int64, status entities.MarketStatus) (*entities.Market, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	market, err := s.marketRepo.GetByIDForUpdate(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}
	if err := market.SetStatus(status); err != nil {
		return nil, err
	}
	if err := s.marketRepo.Update(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to save market status: %w", err)
	}

	voided := 0
	if status == entities.MarketStatusCancelled {
		if voided, err = s.voidActiveBets(ctx, market); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"marketID":   marketID,
		"status":     status,
		"voidedBets": voided,
	}).Info("Market status changed")
	return market, nil
}

// voidActiveBets refunds the active bets of a cancelled market and takes their recorded stake back out
func (s *tournamentService) voidActiveBets(ctx context.Context, market *entities.Market) (int, error) {
	bets, err := s.betRepo.GetActiveByMarket(ctx, market.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to get active bets: %w", err)
	}

	now := s.clock.Now()
	voided := 0
	for _, bet := range bets {
		updated, err := s.betRepo.CompareAndSetStatus(ctx, bet.ID, entities.BetStatusVoid, now)
		if err != nil {
			return voided, fmt.Errorf("failed to void bet %d: %w", bet.ID, err)
		}
		if updated == nil {
			continue
		}

		if _, err := s.ledger.Credit(ctx, updated.UserID, updated.Amount,
			entities.NewLedgerEntry(entities.TransactionTypeBetVoid, entities.RelatedTypeBet, updated.ID)); err != nil {
			return voided, err
		}

		if updated.StakeRecorded {
			if _, err := s.marketRepo.DecrementStake(ctx, market.ID, updated.Selection, updated.Amount); err != nil {
				return voided, fmt.Errorf("failed to reverse stake of bet %d: %w", updated.ID, err)
			}
			if _, err := market.ReverseStake(updated.Selection, updated.Amount); err != nil {
				log.WithFields(log.Fields{
					"betID":     updated.ID,
					"marketID":  market.ID,
					"selection": updated.Selection,
				}).WithError(err).Warn("Voided bet selection is not a market option")
			}
		}

		if err := s.eventPublisher.Publish(events.BetVoidedEvent{
			BetID:        updated.ID,
			UserID:       updated.UserID,
			MarketID:     market.ID,
			RefundAmount: updated.Amount,
		}); err != nil {
			log.WithError(err).Error("Failed to publish bet voided event")
		}
		voided++
	}
	return voided, nil
}

// GetTournament returns a tournament with all of its markets
func (s *tournamentService) GetTournament(ctx context.Context, tournamentID int64) (*entities.Tournament, []*entities.Market, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	if tournament == nil {
		return nil, nil, domain.NewError(domain.CodeNotFound, "tournament %d not found", tournamentID)
	}

	markets, err := s.marketRepo.GetByTournament(ctx, tournamentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get markets: %w", err)
	}
	return tournament, markets, nil
}
