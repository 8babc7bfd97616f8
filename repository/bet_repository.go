package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinbet/database"
	"coinbet/domain/entities"
	"coinbet/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const betColumns = `id, user_id, market_id, tournament_id, selection, amount, odds, potential_win,
	status, stake_recorded, idempotency_key, created_at, settled_at`

type betRepository struct {
	q Queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) interfaces.BetRepository {
	return &betRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx Queryable) interfaces.BetRepository {
	return &betRepository{q: tx}
}

func scanBet(row pgx.Row) (*entities.Bet, error) {
	var bet entities.Bet
	err := row.Scan(
		&bet.ID,
		&bet.UserID,
		&bet.MarketID,
		&bet.TournamentID,
		&bet.Selection,
		&bet.Amount,
		&bet.Odds,
		&bet.PotentialWin,
		&bet.Status,
		&bet.StakeRecorded,
		&bet.IdempotencyKey,
		&bet.CreatedAt,
		&bet.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

func (r *betRepository) getOne(ctx context.Context, query string, args ...any) (*entities.Bet, error) {
	bet, err := scanBet(r.q.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return bet, err
}

func (r *betRepository) list(ctx context.Context, query string, args ...any) ([]*entities.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	var bets []*entities.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	return bets, nil
}

// Create inserts a new bet
func (r *betRepository) Create(ctx context.Context, bet *entities.Bet) error {
	query := `
		INSERT INTO bets (user_id, market_id, tournament_id, selection, amount, odds, potential_win,
		                  status, stake_recorded, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.UserID,
		bet.MarketID,
		bet.TournamentID,
		bet.Selection,
		bet.Amount,
		bet.Odds,
		bet.PotentialWin,
		bet.Status,
		bet.StakeRecorded,
		bet.IdempotencyKey,
		nullableTime(bet.CreatedAt),
	).Scan(&bet.ID, &bet.CreatedAt)
	if isUniqueViolation(err, "") {
		return interfaces.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

// GetByID retrieves a bet by its ID
func (r *betRepository) GetByID(ctx context.Context, id int64) (*entities.Bet, error) {
	bet, err := r.getOne(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet %d: %w", id, err)
	}
	return bet, nil
}

// GetByIdempotencyKey retrieves a user's bet by client key
func (r *betRepository) GetByIdempotencyKey(ctx context.Context, userID int64, key string) (*entities.Bet, error) {
	bet, err := r.getOne(ctx, `SELECT `+betColumns+` FROM bets WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet by idempotency key: %w", err)
	}
	return bet, nil
}

// GetByUser returns a page of a user's bets, newest first, and the total count
func (r *betRepository) GetByUser(ctx context.Context, userID int64, filter entities.BetFilter, page entities.Page) ([]*entities.Bet, int64, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.TournamentID != nil {
		args = append(args, *filter.TournamentID)
		conditions = append(conditions, fmt.Sprintf("tournament_id = $%d", len(args)))
	}
	if filter.MarketID != nil {
		args = append(args, *filter.MarketID)
		conditions = append(conditions, fmt.Sprintf("market_id = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM bets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bets of user %d: %w", userID, err)
	}

	query := fmt.Sprintf(`SELECT %s FROM bets WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		betColumns, where, len(args)+1, len(args)+2)
	bets, err := r.list(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return bets, total, nil
}

// GetActiveByMarket returns the active bets of a market in placement order
func (r *betRepository) GetActiveByMarket(ctx context.Context, marketID int64) ([]*entities.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE market_id = $1 AND status = 'active' ORDER BY created_at, id`
	return r.list(ctx, query, marketID)
}

// CountActiveByTournament counts active bets across a tournament's markets
func (r *betRepository) CountActiveByTournament(ctx context.Context, tournamentID int64) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM bets WHERE tournament_id = $1 AND status = 'active'`, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active bets of tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

// CountActiveBySelection counts the active bets of a market per selection, whether or not their stake is recorded
func (r *betRepository) CountActiveBySelection(ctx context.Context, marketID int64) (map[string]int64, error) {
	rows, err := r.q.Query(ctx,
		`SELECT selection, COUNT(*) FROM bets WHERE market_id = $1 AND status = 'active' GROUP BY selection`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active bets of market %d: %w", marketID, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var selection string
		var count int64
		if err := rows.Scan(&selection, &count); err != nil {
			return nil, fmt.Errorf("failed to scan active bet count: %w", err)
		}
		counts[selection] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active bet counts: %w", err)
	}
	return counts, nil
}

// CompareAndSetStatus moves an active bet to a terminal status.
// Returns nil when another transaction already moved it.
func (r *betRepository) CompareAndSetStatus(ctx context.Context, betID int64, status entities.BetStatus, at time.Time) (*entities.Bet, error) {
	query := `
		UPDATE bets
		SET status = $2, settled_at = $3
		WHERE id = $1 AND status = 'active'
		RETURNING ` + betColumns

	bet, err := r.getOne(ctx, query, betID, status, at)
	if err != nil {
		return nil, fmt.Errorf("failed to set status of bet %d: %w", betID, err)
	}
	return bet, nil
}

// MarkStakeRecorded flips stake_recorded for an active bet, reporting whether this call did it
func (r *betRepository) MarkStakeRecorded(ctx context.Context, betID int64) (bool, error) {
	result, err := r.q.Exec(ctx,
		`UPDATE bets SET stake_recorded = TRUE WHERE id = $1 AND status = 'active' AND NOT stake_recorded`,
		betID)
	if err != nil {
		return false, fmt.Errorf("failed to mark stake recorded for bet %d: %w", betID, err)
	}
	return result.RowsAffected() == 1, nil
}

// GetUnrecorded returns active bets placed before the cutoff whose stake is not yet recorded
func (r *betRepository) GetUnrecorded(ctx context.Context, before time.Time, limit int) ([]*entities.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE status = 'active' AND NOT stake_recorded AND created_at < $1
		ORDER BY id
		LIMIT $2
	`
	return r.list(ctx, query, before, limit)
}

// GetSettlementTotals aggregates the settled bets of a market
func (r *betRepository) GetSettlementTotals(ctx context.Context, marketID int64) (*entities.SettlementTotals, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status IN ('won', 'lost')),
			COUNT(*) FILTER (WHERE status = 'won'),
			COUNT(*) FILTER (WHERE status = 'lost'),
			COALESCE(SUM(potential_win) FILTER (WHERE status = 'won'), 0)
		FROM bets
		WHERE market_id = $1
	`

	var totals entities.SettlementTotals
	err := r.q.QueryRow(ctx, query, marketID).Scan(&totals.Settled, &totals.Won, &totals.Lost, &totals.TotalPayout)
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement totals of market %d: %w", marketID, err)
	}
	return &totals, nil
}

// GetOptionSummaries aggregates the bets of a market by selection, skipping refunded ones
func (r *betRepository) GetOptionSummaries(ctx context.Context, marketID int64) ([]*entities.OptionSummary, error) {
	query := `
		SELECT selection, COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(potential_win), 0)
		FROM bets
		WHERE market_id = $1 AND status NOT IN ('cancelled', 'void')
		GROUP BY selection
		ORDER BY selection
	`

	rows, err := r.q.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query option summaries of market %d: %w", marketID, err)
	}
	defer rows.Close()

	var summaries []*entities.OptionSummary
	for rows.Next() {
		var s entities.OptionSummary
		if err := rows.Scan(&s.Name, &s.Count, &s.Amount, &s.PotentialPayout); err != nil {
			return nil, fmt.Errorf("failed to scan option summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating option summaries: %w", err)
	}
	return summaries, nil
}
