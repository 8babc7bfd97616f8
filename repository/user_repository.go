package repository

import (
	"context"
	"fmt"

	"coinbet/database"
	"coinbet/domain/entities"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, balance, is_admin, is_banned, ban_reason, registration_ip, created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx Queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.IsAdmin,
		&user.IsBanned,
		&user.BanReason,
		&user.RegistrationIP,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*entities.User, error) {
	user, err := scanUser(r.q.QueryRow(ctx, query, arg))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user and locks the row for the rest of the transaction.
// NO KEY UPDATE leaves the key share locks taken by bet inserts compatible.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR NO KEY UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (username, balance, is_admin, registration_ip)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		user.Username,
		user.Balance,
		user.IsAdmin,
		user.RegistrationIP,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user %q: %w", user.Username, err)
	}
	return nil
}

// UpdateBalance updates a user's balance
func (r *UserRepository) UpdateBalance(ctx context.Context, id int64, newBalance int64) error {
	query := `
		UPDATE users
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, newBalance, id)
	if err != nil {
		return fmt.Errorf("failed to update balance for user %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// SetBanned updates the ban flag and reason
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool, reason *string) error {
	query := `
		UPDATE users
		SET is_banned = $1, ban_reason = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.q.Exec(ctx, query, banned, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update ban for user %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// GetLeaderboard returns non-banned users ordered by balance with their betting stats
func (r *UserRepository) GetLeaderboard(ctx context.Context, page entities.Page) ([]*entities.LeaderboardEntry, int64, error) {
	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE NOT is_banned`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leaderboard users: %w", err)
	}

	query := `
		SELECT
			u.id,
			u.username,
			u.balance,
			COALESCE(SUM(b.amount) FILTER (WHERE b.status NOT IN ('cancelled', 'void')), 0) AS total_staked,
			COUNT(b.id) FILTER (WHERE b.status NOT IN ('cancelled', 'void')) AS total_bets,
			COUNT(b.id) FILTER (WHERE b.status = 'won') AS won_bets,
			COUNT(b.id) FILTER (WHERE b.status = 'lost') AS lost_bets
		FROM users u
		LEFT JOIN bets b ON b.user_id = u.id
		WHERE NOT u.is_banned
		GROUP BY u.id
		ORDER BY u.balance DESC, u.id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.q.Query(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*entities.LeaderboardEntry
	for rows.Next() {
		var entry entities.LeaderboardEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.Balance,
			&entry.TotalStaked,
			&entry.TotalBets,
			&entry.WonBets,
			&entry.LostBets,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return entries, total, nil
}
