package application

import (
	"context"
	"fmt"

	"coinbet/domain/entities"

	"github.com/jonboulle/clockwork"
)

// AdminHandler runs tournament and market administration in units of work.
// Authorization is checked by the domain services against the principal.
type AdminHandler struct {
	uowFactory UnitOfWorkFactory
	clock      clockwork.Clock
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(uowFactory UnitOfWorkFactory, clock clockwork.Clock) *AdminHandler {
	return &AdminHandler{
		uowFactory: uowFactory,
		clock:      clock,
	}
}

// CreateTournament stores a tournament together with its overall-winner market
func (h *AdminHandler) CreateTournament(ctx context.Context, principal entities.Principal, req entities.CreateTournamentRequest) (*entities.Tournament, *entities.Market, error) {
	var tournament *entities.Tournament
	var overall *entities.Market
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		tournament, overall, err = newTournamentService(uow, h.clock).CreateTournament(ctx, principal, req)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return tournament, overall, nil
}

func (h *AdminHandler) UpdateTeams(ctx context.Context, principal entities.Principal, tournamentID int64, teams []entities.Team) (*entities.Tournament, error) {
	var tournament *entities.Tournament
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		tournament, err = newTournamentService(uow, h.clock).UpdateTeams(ctx, principal, tournamentID, teams)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

func (h *AdminHandler) CreateMatch(ctx context.Context, principal entities.Principal, req entities.CreateMatchRequest) (*entities.Market, error) {
	return h.marketChange(ctx, func(uow UnitOfWork) (*entities.Market, error) {
		return newTournamentService(uow, h.clock).CreateMatch(ctx, principal, req)
	})
}

func (h *AdminHandler) SetMarketOptions(ctx context.Context, principal entities.Principal, marketID int64, options []*entities.MarketOption) (*entities.Market, error) {
	return h.marketChange(ctx, func(uow UnitOfWork) (*entities.Market, error) {
		return newTournamentService(uow, h.clock).SetMarketOptions(ctx, principal, marketID, options)
	})
}

func (h *AdminHandler) SetMarketStatus(ctx context.Context, principal entities.Principal, marketID int64, status entities.MarketStatus) (*entities.Market, error) {
	return h.marketChange(ctx, func(uow UnitOfWork) (*entities.Market, error) {
		return newTournamentService(uow, h.clock).SetMarketStatus(ctx, principal, marketID, status)
	})
}

func (h *AdminHandler) marketChange(ctx context.Context, fn func(uow UnitOfWork) (*entities.Market, error)) (*entities.Market, error) {
	var market *entities.Market
	err := runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		market, err = fn(uow)
		return err
	})
	if err != nil {
		return nil, err
	}
	return market, nil
}

// DeleteTournament removes a tournament that has no active bets
func (h *AdminHandler) DeleteTournament(ctx context.Context, principal entities.Principal, tournamentID int64) error {
	return runInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		return newTournamentService(uow, h.clock).DeleteTournament(ctx, principal, tournamentID)
	})
}

// GetTournament returns a tournament with its markets
func (h *AdminHandler) GetTournament(ctx context.Context, tournamentID int64) (*entities.Tournament, []*entities.Market, error) {
	var tournament *entities.Tournament
	var markets []*entities.Market
	err := readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		tournament, markets, err = newTournamentService(uow, h.clock).GetTournament(ctx, tournamentID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return tournament, markets, nil
}

// GetMarketSummary returns the per-option audit view of a market's bets
func (h *AdminHandler) GetMarketSummary(ctx context.Context, marketID int64) (*entities.MarketSummary, error) {
	var summary *entities.MarketSummary
	err := readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		summary, err = newBetService(uow, h.clock).GetMarketSummary(ctx, marketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ListUnsettled returns finished markets whose settlement has not completed
func (h *AdminHandler) ListUnsettled(ctx context.Context) ([]*entities.Market, error) {
	var markets []*entities.Market
	err := readInUnitOfWork(ctx, h.uowFactory, func(uow UnitOfWork) error {
		var err error
		markets, err = uow.MarketRepository().GetUnsettled(ctx)
		if err != nil {
			return fmt.Errorf("failed to get unsettled markets: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if markets == nil {
		markets = []*entities.Market{}
	}
	return markets, nil
}
