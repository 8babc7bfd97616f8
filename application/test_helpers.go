package application

import (
	"context"
	"sync"

	"coinbet/domain/interfaces"
	"coinbet/domain/testhelpers"
)

// MockRepositories holds the repository mocks shared by every unit of work of a MockUnitOfWorkFactory
type MockRepositories struct {
	UserRepo           *testhelpers.MockUserRepository
	BalanceHistoryRepo *testhelpers.MockBalanceHistoryRepository
	MarketRepo         *testhelpers.MockMarketRepository
	BetRepo            *testhelpers.MockBetRepository
	TournamentRepo     *testhelpers.MockTournamentRepository
	Publisher          *testhelpers.RecordingPublisher
}

// MockUnitOfWork is a UnitOfWork over repository mocks.
// Commit flushes the recording publisher and Rollback discards it, like the real one.
type MockUnitOfWork struct {
	repos      *MockRepositories
	commitErr  error
	committed  bool
	rolledBack bool
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error {
	return nil
}

func (u *MockUnitOfWork) Commit() error {
	if u.commitErr != nil {
		u.repos.Publisher.Discard()
		return u.commitErr
	}
	u.committed = true
	return u.repos.Publisher.Flush(context.Background())
}

func (u *MockUnitOfWork) Rollback() error {
	if u.committed || u.rolledBack {
		return nil
	}
	u.rolledBack = true
	u.repos.Publisher.Discard()
	return nil
}

func (u *MockUnitOfWork) UserRepository() interfaces.UserRepository {
	return u.repos.UserRepo
}

func (u *MockUnitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	return u.repos.BalanceHistoryRepo
}

func (u *MockUnitOfWork) MarketRepository() interfaces.MarketRepository {
	return u.repos.MarketRepo
}

func (u *MockUnitOfWork) BetRepository() interfaces.BetRepository {
	return u.repos.BetRepo
}

func (u *MockUnitOfWork) TournamentRepository() interfaces.TournamentRepository {
	return u.repos.TournamentRepo
}

func (u *MockUnitOfWork) EventBus() interfaces.EventPublisher {
	return u.repos.Publisher
}

// MockUnitOfWorkFactory hands out mock units of work and remembers them for assertions
type MockUnitOfWorkFactory struct {
	Repos *MockRepositories

	// CommitErr makes every commit fail when set
	CommitErr error

	mu    sync.Mutex
	units []*MockUnitOfWork
}

// NewMockUnitOfWorkFactory creates a factory with fresh mocks
func NewMockUnitOfWorkFactory() *MockUnitOfWorkFactory {
	return &MockUnitOfWorkFactory{
		Repos: &MockRepositories{
			UserRepo:           &testhelpers.MockUserRepository{},
			BalanceHistoryRepo: &testhelpers.MockBalanceHistoryRepository{},
			MarketRepo:         &testhelpers.MockMarketRepository{},
			BetRepo:            &testhelpers.MockBetRepository{},
			TournamentRepo:     &testhelpers.MockTournamentRepository{},
			Publisher:          testhelpers.NewRecordingPublisher(),
		},
	}
}

func (f *MockUnitOfWorkFactory) Create() UnitOfWork {
	f.mu.Lock()
	defer f.mu.Unlock()
	uow := &MockUnitOfWork{repos: f.Repos, commitErr: f.CommitErr}
	f.units = append(f.units, uow)
	return uow
}

// Commits returns how many units of work were committed
func (f *MockUnitOfWorkFactory) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.units {
		if u.committed {
			n++
		}
	}
	return n
}

// Rollbacks returns how many units of work were rolled back without committing
func (f *MockUnitOfWorkFactory) Rollbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.units {
		if u.rolledBack {
			n++
		}
	}
	return n
}
