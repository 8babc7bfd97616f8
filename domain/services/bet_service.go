package services

import (
	"context"
	"fmt"

	"coinbet/config"
	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

type betService struct {
	config         *config.Config
	betRepo        interfaces.BetRepository
	marketRepo     interfaces.MarketRepository
	userRepo       interfaces.UserRepository
	ledger         interfaces.LedgerService
	eventPublisher interfaces.EventPublisher
	clock          clockwork.Clock
	validate       *validator.Validate
}

// NewBetService creates a new bet service. All repositories must share one transaction.
func NewBetService(
	betRepo interfaces.BetRepository,
	marketRepo interfaces.MarketRepository,
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.BetService {
	return &betService{
		config:         config.Get(),
		betRepo:        betRepo,
		marketRepo:     marketRepo,
		userRepo:       userRepo,
		ledger:         NewLedgerService(userRepo, balanceHistoryRepo, eventPublisher, clock),
		eventPublisher: eventPublisher,
		clock:          clock,
		validate:       validator.New(),
	}
}

// PlaceBet debits the stake and stores an active bet at the option's current odds.
// Stake accumulators are updated afterwards by RecordStake.
func (s *betService) PlaceBet(ctx context.Context, principal entities.Principal, req entities.PlaceBetRequest) (*entities.PlaceBetResult, error) {
	if principal.IsBanned {
		return nil, domain.NewError(domain.CodeAccountBanned, "user %d is banned", principal.UserID)
	}

	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewError(domain.CodeInvalidInput, "invalid bet request").Wrap(err)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.betRepo.GetByIdempotencyKey(ctx, principal.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			if existing.MarketID != req.MarketID || existing.Selection != req.Selection || existing.Amount != req.Amount {
				return nil, domain.NewError(domain.CodeInvalidInput, "idempotency key %q was used for a different bet", req.IdempotencyKey).
					WithDetail("betId", existing.ID)
			}
			return s.replay(ctx, existing)
		}
	}

	// Shared lock keeps result declaration out until this bet is committed
	market, err := s.marketRepo.GetByIDForShare(ctx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", req.MarketID)
	}
	if !market.IsOpenForWagering() {
		return nil, domain.NewError(domain.CodeMarketClosed, "market %d is %s", market.ID, market.Status).
			WithDetail("status", market.Status)
	}

	option, err := market.Option(req.Selection)
	if err != nil {
		return nil, err
	}

	if req.Amount < s.config.MinimumStake {
		return nil, domain.NewError(domain.CodeBelowMinimumStake, "minimum stake is %d", s.config.MinimumStake).
			WithDetail("minimum", s.config.MinimumStake)
	}

	if err := s.checkNotBanned(ctx, principal.UserID); err != nil {
		return nil, err
	}

	bet := &entities.Bet{
		UserID:       principal.UserID,
		MarketID:     market.ID,
		TournamentID: market.TournamentID,
		Selection:    option.Name,
		Amount:       req.Amount,
		Odds:         option.Odds,
		PotentialWin: entities.CalculatePotentialWin(req.Amount, option.Odds),
		Status:       entities.BetStatusActive,
		CreatedAt:    s.clock.Now(),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		bet.IdempotencyKey = &key
	}

	if err := s.betRepo.Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	newBalance, err := s.ledger.Debit(ctx, principal.UserID, req.Amount,
		entities.NewLedgerEntry(entities.TransactionTypeBetPlaced, entities.RelatedTypeBet, bet.ID))
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"betID":     bet.ID,
		"userID":    bet.UserID,
		"marketID":  bet.MarketID,
		"selection": bet.Selection,
		"amount":    bet.Amount,
		"odds":      bet.Odds,
	}).Info("Bet placed")

	if err := s.eventPublisher.Publish(events.BetPlacedEvent{
		BetID:        bet.ID,
		UserID:       bet.UserID,
		MarketID:     bet.MarketID,
		Selection:    bet.Selection,
		Amount:       bet.Amount,
		Odds:         bet.Odds,
		PotentialWin: bet.PotentialWin,
	}); err != nil {
		log.WithError(err).Error("Failed to publish bet placed event")
	}

	return &entities.PlaceBetResult{Bet: bet, NewBalance: newBalance}, nil
}

// checkNotBanned re-reads the stored account so a ban applied after the caller authenticated still counts
func (s *betService) checkNotBanned(ctx context.Context, userID int64) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return domain.NewError(domain.CodeNotFound, "user %d not found", userID)
	}
	if user.IsBanned {
		return domain.NewError(domain.CodeAccountBanned, "user %d is banned", userID)
	}
	return nil
}

func (s *betService) replay(ctx context.Context, bet *entities.Bet) (*entities.PlaceBetResult, error) {
	user, err := s.userRepo.GetByID(ctx, bet.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, domain.NewError(domain.CodeNotFound, "user %d not found", bet.UserID)
	}
	return &entities.PlaceBetResult{Bet: bet, NewBalance: user.Balance, Replayed: true}, nil
}

// CancelBet refunds an active bet whose market has not started yet
func (s *betService) CancelBet(ctx context.Context, principal entities.Principal, betID int64) (*entities.CancelBetResult, error) {
	if principal.IsBanned {
		return nil, domain.NewError(domain.CodeAccountBanned, "user %d is banned", principal.UserID)
	}

	bet, err := s.betRepo.GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, domain.NewError(domain.CodeNotFound, "bet %d not found", betID)
	}
	if bet.UserID != principal.UserID {
		return nil, domain.NewError(domain.CodeForbidden, "bet %d belongs to another user", betID)
	}
	if !bet.IsActive() {
		return nil, domain.NewError(domain.CodeInvalidState, "bet %d is %s", betID, bet.Status).
			WithDetail("status", bet.Status)
	}
	if err := s.checkNotBanned(ctx, principal.UserID); err != nil {
		return nil, err
	}

	// Exclusive lock: the stake reversal below writes the market row
	market, err := s.marketRepo.GetByIDForUpdate(ctx, bet.MarketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", bet.MarketID)
	}
	if !market.AllowsCancellation() {
		return nil, domain.NewError(domain.CodeMarketStarted, "market %d is %s", market.ID, market.Status).
			WithDetail("status", market.Status)
	}

	cancelled, err := s.betRepo.CompareAndSetStatus(ctx, betID, entities.BetStatusCancelled, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel bet: %w", err)
	}
	if cancelled == nil {
		return nil, domain.NewError(domain.CodeInvalidState, "bet %d is no longer active", betID)
	}

	newBalance, err := s.ledger.Credit(ctx, bet.UserID, bet.Amount,
		entities.NewLedgerEntry(entities.TransactionTypeBetRefund, entities.RelatedTypeBet, bet.ID))
	if err != nil {
		return nil, err
	}

	if cancelled.StakeRecorded {
		removed, err := s.marketRepo.DecrementStake(ctx, market.ID, bet.Selection, bet.Amount)
		if err != nil {
			return nil, fmt.Errorf("failed to reverse stake: %w", err)
		}
		if removed != bet.Amount {
			log.WithFields(log.Fields{
				"betID":    bet.ID,
				"marketID": market.ID,
				"amount":   bet.Amount,
				"removed":  removed,
			}).Warn("Stake reversal was floored at zero")
		}
	}

	log.WithFields(log.Fields{
		"betID":    bet.ID,
		"userID":   bet.UserID,
		"marketID": bet.MarketID,
		"refund":   bet.Amount,
	}).Info("Bet cancelled")

	if err := s.eventPublisher.Publish(events.BetCancelledEvent{
		BetID:        bet.ID,
		UserID:       bet.UserID,
		MarketID:     bet.MarketID,
		RefundAmount: bet.Amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish bet cancelled event")
	}

	return &entities.CancelBetResult{Bet: cancelled, RefundAmount: bet.Amount, NewBalance: newBalance}, nil
}

// RecordStake adds an accepted bet to the market's stake accumulators.
// The stake_recorded flag makes repeated calls for the same bet a no-op.
func (s *betService) RecordStake(ctx context.Context, betID int64) (bool, error) {
	bet, err := s.betRepo.GetByID(ctx, betID)
	if err != nil {
		return false, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return false, domain.NewError(domain.CodeNotFound, "bet %d not found", betID)
	}
	if bet.StakeRecorded || !bet.IsActive() {
		return false, nil
	}

	// Market first, then the bet row, the same order cancellation uses
	market, err := s.marketRepo.GetByIDForUpdate(ctx, bet.MarketID)
	if err != nil {
		return false, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return false, domain.NewError(domain.CodeMarketNotFound, "market %d not found", bet.MarketID)
	}
	if err := market.ReplayStake(bet.Selection, bet.Amount); err != nil {
		return false, err
	}

	marked, err := s.betRepo.MarkStakeRecorded(ctx, betID)
	if err != nil {
		return false, fmt.Errorf("failed to mark stake recorded: %w", err)
	}
	if !marked {
		return false, nil
	}

	if err := s.marketRepo.IncrementStake(ctx, market.ID, bet.Selection, bet.Amount); err != nil {
		return false, fmt.Errorf("failed to record stake: %w", err)
	}

	return true, nil
}

// PrepareSettlement returns the market and the bets still waiting for settlement
func (s *betService) PrepareSettlement(ctx context.Context, marketID int64) (*entities.Market, []*entities.Bet, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}
	if !market.IsReadyToSettle() {
		return nil, nil, domain.NewError(domain.CodeNotReadyToSettle, "market %d is %s without a result", marketID, market.Status).
			WithDetail("status", market.Status)
	}

	bets, err := s.betRepo.GetActiveByMarket(ctx, marketID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get active bets: %w", err)
	}
	return market, bets, nil
}

// SettleBet resolves one bet. A bet that already left the active state is skipped.
func (s *betService) SettleBet(ctx context.Context, betID int64, result string) (*entities.BetSettlement, error) {
	bet, err := s.betRepo.GetByID(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil {
		return nil, domain.NewError(domain.CodeNotFound, "bet %d not found", betID)
	}

	status := bet.OutcomeFor(result)
	settled, err := s.betRepo.CompareAndSetStatus(ctx, betID, status, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to settle bet: %w", err)
	}
	if settled == nil {
		return &entities.BetSettlement{Bet: bet, Applied: false}, nil
	}

	payout := settled.PayoutFor(result)
	if payout > 0 {
		if _, err := s.ledger.Credit(ctx, settled.UserID, payout,
			entities.NewLedgerEntry(entities.TransactionTypeBetWin, entities.RelatedTypeBet, settled.ID)); err != nil {
			return nil, err
		}
	}

	if err := s.eventPublisher.Publish(events.BetSettledEvent{
		BetID:    settled.ID,
		UserID:   settled.UserID,
		MarketID: settled.MarketID,
		Status:   settled.Status,
		Payout:   payout,
	}); err != nil {
		log.WithError(err).Error("Failed to publish bet settled event")
	}

	return &entities.BetSettlement{Bet: settled, Payout: payout, Applied: true}, nil
}

// CompleteSettlement stamps the market and reports totals over every settled bet
func (s *betService) CompleteSettlement(ctx context.Context, marketID int64) (*entities.SettlementTotals, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}

	totals, err := s.betRepo.GetSettlementTotals(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement totals: %w", err)
	}

	if market.SettledAt == nil {
		if err := s.marketRepo.MarkSettled(ctx, marketID, s.clock.Now()); err != nil {
			return nil, fmt.Errorf("failed to mark market settled: %w", err)
		}
	}

	result := ""
	if market.Result != nil {
		result = *market.Result
	}
	if err := s.eventPublisher.Publish(events.MarketSettledEvent{
		MarketID: marketID,
		Result:   result,
		Totals:   *totals,
	}); err != nil {
		log.WithError(err).Error("Failed to publish market settled event")
	}

	return totals, nil
}

// GetUserBets returns a page of a user's bets, newest first
func (s *betService) GetUserBets(ctx context.Context, userID int64, filter entities.BetFilter, page entities.Page) (*entities.BetPage, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, domain.NewError(domain.CodeInvalidInput, "unknown bet status %q", *filter.Status)
	}
	page = page.Normalize()

	bets, total, err := s.betRepo.GetByUser(ctx, userID, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bets: %w", err)
	}
	if bets == nil {
		bets = []*entities.Bet{}
	}

	return &entities.BetPage{Bets: bets, Pagination: entities.NewPagination(page, total)}, nil
}

// GetMarketSummary aggregates a market's bets per option in option order
func (s *betService) GetMarketSummary(ctx context.Context, marketID int64) (*entities.MarketSummary, error) {
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, domain.NewError(domain.CodeMarketNotFound, "market %d not found", marketID)
	}

	rows, err := s.betRepo.GetOptionSummaries(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get option summaries: %w", err)
	}
	bySelection := make(map[string]*entities.OptionSummary, len(rows))
	for _, row := range rows {
		bySelection[row.Name] = row
	}

	summary := &entities.MarketSummary{
		MarketID: market.ID,
		Title:    market.Title,
		Status:   market.Status,
		Result:   market.Result,
		Options:  make([]*entities.OptionSummary, 0, len(market.Options)),
	}
	for _, opt := range market.Options {
		row, ok := bySelection[opt.Name]
		if !ok {
			row = &entities.OptionSummary{Name: opt.Name}
		}
		row.Odds = opt.Odds
		summary.TotalBets += row.Count
		summary.TotalAmount += row.Amount
		summary.Options = append(summary.Options, row)
	}

	return summary, nil
}
