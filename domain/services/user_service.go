package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"coinbet/config"
	"coinbet/domain"
	"coinbet/domain/entities"
	"coinbet/domain/interfaces"
	"coinbet/domain/utils"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
)

type userService struct {
	config             *config.Config
	userRepo           interfaces.UserRepository
	balanceHistoryRepo interfaces.BalanceHistoryRepository
	eventPublisher     interfaces.EventPublisher
	counters           interfaces.CounterStore
	clock              clockwork.Clock
}

// NewUserService creates a new user service
func NewUserService(
	userRepo interfaces.UserRepository,
	balanceHistoryRepo interfaces.BalanceHistoryRepository,
	eventPublisher interfaces.EventPublisher,
	counters interfaces.CounterStore,
	clock clockwork.Clock,
) interfaces.UserService {
	return &userService{
		config:             config.Get(),
		userRepo:           userRepo,
		balanceHistoryRepo: balanceHistoryRepo,
		eventPublisher:     eventPublisher,
		counters:           counters,
		clock:              clock,
	}
}

// RegistrationKey is the counter key tracking accounts created from one IP
func RegistrationKey(ip string) string {
	return "registrations:ip:" + ip
}

// Register creates a user with the starting balance and an initial history row
func (s *userService) Register(ctx context.Context, username string, ip string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return nil, domain.NewError(domain.CodeInvalidInput, "username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	}

	if ip != "" {
		count, err := s.counters.Get(ctx, RegistrationKey(ip))
		if err != nil {
			return nil, fmt.Errorf("failed to check registrations for ip: %w", err)
		}
		if count >= s.config.IPRegistrationLimit {
			return nil, domain.NewError(domain.CodeRegistrationLimit, "too many accounts registered from this address").
				WithDetail("limit", s.config.IPRegistrationLimit)
		}
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, domain.NewError(domain.CodeUsernameTaken, "username %q is already taken", username)
	}

	user := &entities.User{
		Username:       username,
		Balance:        s.config.StartingBalance,
		RegistrationIP: ip,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	history := &entities.BalanceHistory{
		UserID:              user.ID,
		BalanceBefore:       0,
		BalanceAfter:        user.Balance,
		ChangeAmount:        user.Balance,
		TransactionType:     entities.TransactionTypeInitial,
		TransactionMetadata: map[string]any{"username": username},
		CreatedAt:           s.clock.Now(),
	}
	if err := utils.RecordBalanceChange(ctx, s.balanceHistoryRepo, s.eventPublisher, history); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":   user.ID,
		"username": username,
		"balance":  user.Balance,
	}).Info("User registered")

	return user, nil
}

// RecordRegistration counts a committed registration against its IP
func (s *userService) RecordRegistration(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}
	if _, err := s.counters.Increment(ctx, RegistrationKey(ip), s.config.IPTrackingDuration); err != nil {
		return fmt.Errorf("failed to record registration: %w", err)
	}
	return nil
}

// BanUser blocks a user from betting
func (s *userService) BanUser(ctx context.Context, principal entities.Principal, userID int64, reason string) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}
	if userID == principal.UserID {
		return domain.NewError(domain.CodeInvalidInput, "cannot ban yourself")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return domain.NewError(domain.CodeNotFound, "user %d not found", userID)
	}
	if user.IsAdmin {
		return domain.NewError(domain.CodeForbidden, "admins cannot be banned")
	}

	var banReason *string
	if reason = strings.TrimSpace(reason); reason != "" {
		banReason = &reason
	}
	if err := s.userRepo.SetBanned(ctx, userID, true, banReason); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}

	log.WithFields(log.Fields{
		"userID": userID,
		"by":     principal.UserID,
		"reason": reason,
	}).Info("User banned")
	return nil
}

// UnbanUser lifts a ban
func (s *userService) UnbanUser(ctx context.Context, principal entities.Principal, userID int64) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return domain.NewError(domain.CodeNotFound, "user %d not found", userID)
	}
	if err := s.userRepo.SetBanned(ctx, userID, false, nil); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// GetLeaderboard ranks non-banned users by balance
func (s *userService) GetLeaderboard(ctx context.Context, page entities.Page) ([]*entities.LeaderboardEntry, entities.Pagination, error) {
	page = page.Normalize()

	entries, total, err := s.userRepo.GetLeaderboard(ctx, page)
	if err != nil {
		return nil, entities.Pagination{}, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	for i, entry := range entries {
		entry.Rank = page.Offset() + i + 1
		entry.WinRate = winRate(entry.WonBets, entry.LostBets)
	}
	return entries, entities.NewPagination(page, total), nil
}

// winRate is the percentage of decided bets that won, to two decimals
func winRate(won, lost int64) float64 {
	if won+lost == 0 {
		return 0
	}
	return math.Round(float64(won)/float64(won+lost)*10000) / 100
}
