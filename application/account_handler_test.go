package application

import (
	"context"
	"errors"
	"testing"

	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/services"
	"coinbet/domain/testhelpers"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testIP = "203.0.113.7"

func newTestAccountHandler() (*AccountHandler, *MockUnitOfWorkFactory, *testhelpers.MockCounterStore) {
	factory := NewMockUnitOfWorkFactory()
	counters := &testhelpers.MockCounterStore{}
	return NewAccountHandler(factory, counters, clockwork.NewFakeClockAt(services.TestNow)), factory, counters
}

func TestAccountHandler_Register(t *testing.T) {
	ctx := context.Background()
	key := services.RegistrationKey(testIP)

	t.Run("counts the address after commit", func(t *testing.T) {
		handler, factory, counters := newTestAccountHandler()
		repos := factory.Repos

		counters.On("Get", mock.Anything, key).Return(int64(1), nil)
		repos.UserRepo.On("GetByUsername", mock.Anything, "gambler").Return(nil, nil)
		repos.UserRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.User")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*entities.User).ID = services.TestUser1ID
			}).
			Return(nil)
		repos.BalanceHistoryRepo.On("Record", mock.Anything, mock.Anything).Return(nil)
		counters.On("Increment", mock.Anything, key, mock.Anything).Return(int64(2), nil)

		user, err := handler.Register(ctx, " gambler ", testIP)

		require.NoError(t, err)
		assert.Equal(t, services.TestUser1ID, user.ID)
		assert.Equal(t, services.TestInitialBalance, user.Balance)
		assert.Equal(t, 1, factory.Commits())
		assert.Len(t, repos.Publisher.Published(events.EventTypeBalanceChange), 1)
		counters.AssertExpectations(t)
	})

	t.Run("failed registration is not counted", func(t *testing.T) {
		handler, factory, counters := newTestAccountHandler()

		counters.On("Get", mock.Anything, key).Return(int64(0), nil)
		factory.Repos.UserRepo.On("GetByUsername", mock.Anything, "gambler").
			Return(&entities.User{ID: services.TestUser2ID, Username: "gambler"}, nil)

		_, err := handler.Register(ctx, "gambler", testIP)

		assert.True(t, domain.IsCode(err, domain.CodeUsernameTaken))
		assert.Zero(t, factory.Commits())
		counters.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("counter failure keeps the account", func(t *testing.T) {
		handler, factory, counters := newTestAccountHandler()
		repos := factory.Repos

		counters.On("Get", mock.Anything, key).Return(int64(0), nil)
		repos.UserRepo.On("GetByUsername", mock.Anything, "gambler").Return(nil, nil)
		repos.UserRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.User")).Return(nil)
		repos.BalanceHistoryRepo.On("Record", mock.Anything, mock.Anything).Return(nil)
		counters.On("Increment", mock.Anything, key, mock.Anything).Return(int64(0), errors.New("redis timeout"))

		user, err := handler.Register(ctx, "gambler", testIP)

		require.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, 1, factory.Commits())
	})
}

func TestAccountHandler_GetLeaderboard_Empty(t *testing.T) {
	ctx := context.Background()
	handler, factory, _ := newTestAccountHandler()

	factory.Repos.UserRepo.On("GetLeaderboard", mock.Anything, entities.Page{Page: 1, Limit: 20}).
		Return(nil, int64(0), nil)

	entries, pagination, err := handler.GetLeaderboard(ctx, entities.Page{})

	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Zero(t, pagination.Total)
}

func TestAccountHandler_BanUser(t *testing.T) {
	ctx := context.Background()
	handler, factory, _ := newTestAccountHandler()

	factory.Repos.UserRepo.On("GetByID", mock.Anything, services.TestUser1ID).
		Return(services.NewTestUser(services.TestUser1ID, 1000), nil)
	factory.Repos.UserRepo.On("SetBanned", mock.Anything, services.TestUser1ID, true, mock.Anything).Return(nil)

	require.NoError(t, handler.BanUser(ctx, services.AdminPrincipal(), services.TestUser1ID, "spam"))
	assert.Equal(t, 1, factory.Commits())

	err := handler.BanUser(ctx, services.UserPrincipal(services.TestUser2ID), services.TestUser1ID, "")
	assert.True(t, domain.IsCode(err, domain.CodeForbidden))
}
