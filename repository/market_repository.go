package repository

import (
	"context"
	"fmt"
	"time"

	"coinbet/database"
	"coinbet/domain/entities"
	"coinbet/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const marketColumns = `id, tournament_id, kind, status, title, description, event_date,
	team1, team2, total_stake, result, score, settled_at, created_at, updated_at`

type marketRepository struct {
	q Queryable
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *database.DB) interfaces.MarketRepository {
	return &marketRepository{q: db.Pool}
}

// newMarketRepositoryWithTx creates a new market repository with a transaction
func newMarketRepositoryWithTx(tx Queryable) interfaces.MarketRepository {
	return &marketRepository{q: tx}
}

func scanMarket(row pgx.Row) (*entities.Market, error) {
	var m entities.Market
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Kind,
		&m.Status,
		&m.Title,
		&m.Description,
		&m.EventDate,
		&m.Team1,
		&m.Team2,
		&m.TotalStake,
		&m.Result,
		&m.Score,
		&m.SettledAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts the market together with its options
func (r *marketRepository) Create(ctx context.Context, market *entities.Market) error {
	query := `
		INSERT INTO markets (tournament_id, kind, status, title, description, event_date, team1, team2)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, total_stake, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		market.TournamentID,
		market.Kind,
		market.Status,
		market.Title,
		market.Description,
		market.EventDate,
		market.Team1,
		market.Team2,
	).Scan(&market.ID, &market.TotalStake, &market.CreatedAt, &market.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}

	for i, opt := range market.Options {
		opt.MarketID = market.ID
		opt.Position = i
		if err := r.insertOption(ctx, opt); err != nil {
			return err
		}
	}
	return nil
}

func (r *marketRepository) insertOption(ctx context.Context, opt *entities.MarketOption) error {
	query := `
		INSERT INTO market_options (market_id, name, odds, stake, position)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.q.QueryRow(ctx, query, opt.MarketID, opt.Name, opt.Odds, opt.Stake, opt.Position).Scan(&opt.ID); err != nil {
		return fmt.Errorf("failed to create option %q for market %d: %w", opt.Name, opt.MarketID, err)
	}
	return nil
}

func (r *marketRepository) get(ctx context.Context, id int64, lockClause string) (*entities.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1 ` + lockClause

	market, err := scanMarket(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %d: %w", id, err)
	}

	options, err := r.getOptions(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	market.Options = options[id]
	return market, nil
}

// getOptions loads the options of several markets keyed by market ID
func (r *marketRepository) getOptions(ctx context.Context, marketIDs []int64) (map[int64][]*entities.MarketOption, error) {
	query := `
		SELECT id, market_id, name, odds, stake, position
		FROM market_options
		WHERE market_id = ANY($1)
		ORDER BY market_id, position, id
	`

	rows, err := r.q.Query(ctx, query, marketIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query market options: %w", err)
	}
	defer rows.Close()

	options := make(map[int64][]*entities.MarketOption, len(marketIDs))
	for rows.Next() {
		var opt entities.MarketOption
		if err := rows.Scan(&opt.ID, &opt.MarketID, &opt.Name, &opt.Odds, &opt.Stake, &opt.Position); err != nil {
			return nil, fmt.Errorf("failed to scan market option: %w", err)
		}
		options[opt.MarketID] = append(options[opt.MarketID], &opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market options: %w", err)
	}
	return options, nil
}

// GetByID retrieves a market with its ordered options
func (r *marketRepository) GetByID(ctx context.Context, id int64) (*entities.Market, error) {
	return r.get(ctx, id, "")
}

// GetByIDForShare blocks result declaration and cancellation while bets are being placed
func (r *marketRepository) GetByIDForShare(ctx context.Context, id int64) (*entities.Market, error) {
	return r.get(ctx, id, "FOR SHARE")
}

// GetByIDForUpdate retrieves a market holding an exclusive row lock
func (r *marketRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Market, error) {
	return r.get(ctx, id, "FOR NO KEY UPDATE")
}

func (r *marketRepository) list(ctx context.Context, query string, args ...any) ([]*entities.Market, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	var markets []*entities.Market
	var ids []int64
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, market)
		ids = append(ids, market.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markets: %w", err)
	}
	if len(markets) == 0 {
		return markets, nil
	}

	options, err := r.getOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range markets {
		m.Options = options[m.ID]
	}
	return markets, nil
}

// GetByTournament returns every market of a tournament in event order
func (r *marketRepository) GetByTournament(ctx context.Context, tournamentID int64) ([]*entities.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE tournament_id = $1 ORDER BY event_date, id`
	return r.list(ctx, query, tournamentID)
}

// LockByTournament takes exclusive locks on every market of a tournament in ID order
func (r *marketRepository) LockByTournament(ctx context.Context, tournamentID int64) error {
	query := `SELECT id FROM markets WHERE tournament_id = $1 ORDER BY id FOR UPDATE`

	rows, err := r.q.Query(ctx, query, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to lock markets of tournament %d: %w", tournamentID, err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock markets of tournament %d: %w", tournamentID, err)
	}
	return nil
}

// Update persists descriptive fields, status and result
func (r *marketRepository) Update(ctx context.Context, market *entities.Market) error {
	query := `
		UPDATE markets
		SET status = $2,
		    title = $3,
		    description = $4,
		    event_date = $5,
		    team1 = $6,
		    team2 = $7,
		    result = $8,
		    score = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		market.ID,
		market.Status,
		market.Title,
		market.Description,
		market.EventDate,
		market.Team1,
		market.Team2,
		market.Result,
		market.Score,
	).Scan(&market.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("market %d not found", market.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update market %d: %w", market.ID, err)
	}
	return nil
}

// ReplaceOptions synchronizes the option set by name
func (r *marketRepository) ReplaceOptions(ctx context.Context, marketID int64, options []*entities.MarketOption) error {
	names := make([]string, 0, len(options))
	for _, opt := range options {
		names = append(names, opt.Name)
	}

	_, err := r.q.Exec(ctx, `DELETE FROM market_options WHERE market_id = $1 AND NOT (name = ANY($2))`, marketID, names)
	if err != nil {
		return fmt.Errorf("failed to remove options of market %d: %w", marketID, err)
	}

	upsert := `
		INSERT INTO market_options (market_id, name, odds, stake, position)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (market_id, name) DO UPDATE
		SET odds = EXCLUDED.odds, position = EXCLUDED.position
		RETURNING id, stake
	`
	for i, opt := range options {
		opt.MarketID = marketID
		opt.Position = i
		if err := r.q.QueryRow(ctx, upsert, marketID, opt.Name, opt.Odds, i).Scan(&opt.ID, &opt.Stake); err != nil {
			return fmt.Errorf("failed to save option %q of market %d: %w", opt.Name, marketID, err)
		}
	}
	return nil
}

// UpdateOdds writes the odds of the given options in one statement
func (r *marketRepository) UpdateOdds(ctx context.Context, marketID int64, odds []entities.OptionOdds) error {
	if len(odds) == 0 {
		return nil
	}
	names := make([]string, 0, len(odds))
	values := make([]float64, 0, len(odds))
	for _, o := range odds {
		names = append(names, o.Name)
		values = append(values, o.Odds)
	}

	query := `
		UPDATE market_options mo
		SET odds = v.odds
		FROM unnest($2::text[], $3::float8[]) AS v(name, odds)
		WHERE mo.market_id = $1 AND mo.name = v.name
	`
	if _, err := r.q.Exec(ctx, query, marketID, names, values); err != nil {
		return fmt.Errorf("failed to update odds of market %d: %w", marketID, err)
	}
	return nil
}

// IncrementStake adds amount to the option and the market total.
// The markets row is written first to keep the markets then market_options lock order.
func (r *marketRepository) IncrementStake(ctx context.Context, marketID int64, option string, amount int64) error {
	result, err := r.q.Exec(ctx,
		`UPDATE markets SET total_stake = total_stake + $2, updated_at = NOW() WHERE id = $1`,
		marketID, amount)
	if err != nil {
		return fmt.Errorf("failed to increment total stake of market %d: %w", marketID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("market %d not found", marketID)
	}

	result, err = r.q.Exec(ctx,
		`UPDATE market_options SET stake = stake + $3 WHERE market_id = $1 AND name = $2`,
		marketID, option, amount)
	if err != nil {
		return fmt.Errorf("failed to increment stake of %q on market %d: %w", option, marketID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("option %q not found on market %d", option, marketID)
	}
	return nil
}

// DecrementStake removes up to amount from the option and the market total, never below zero
func (r *marketRepository) DecrementStake(ctx context.Context, marketID int64, option string, amount int64) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM markets WHERE id = $1 FOR NO KEY UPDATE`, marketID).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("market %d not found", marketID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock market %d: %w", marketID, err)
	}

	query := `
		WITH prev AS (
			SELECT id, stake FROM market_options
			WHERE market_id = $1 AND name = $2
			FOR UPDATE
		)
		UPDATE market_options mo
		SET stake = mo.stake - LEAST(prev.stake, $3)
		FROM prev
		WHERE mo.id = prev.id
		RETURNING LEAST(prev.stake, $3)
	`
	var removed int64
	err = r.q.QueryRow(ctx, query, marketID, option, amount).Scan(&removed)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("option %q not found on market %d", option, marketID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement stake of %q on market %d: %w", option, marketID, err)
	}

	_, err = r.q.Exec(ctx,
		`UPDATE markets SET total_stake = GREATEST(total_stake - $2, 0), updated_at = NOW() WHERE id = $1`,
		marketID, removed)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement total stake of market %d: %w", marketID, err)
	}
	return removed, nil
}

// MarkSettled stamps the settlement time once
func (r *marketRepository) MarkSettled(ctx context.Context, marketID int64, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE markets SET settled_at = $2, updated_at = NOW() WHERE id = $1 AND settled_at IS NULL`,
		marketID, at)
	if err != nil {
		return fmt.Errorf("failed to mark market %d settled: %w", marketID, err)
	}
	return nil
}

// GetUnsettled returns finished markets whose settlement has not completed
func (r *marketRepository) GetUnsettled(ctx context.Context) ([]*entities.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE status = 'finished' AND result IS NOT NULL AND settled_at IS NULL
		ORDER BY id
	`
	return r.list(ctx, query)
}
