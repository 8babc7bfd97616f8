package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"coinbet/database"
	"coinbet/domain/entities"
	"coinbet/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const tournamentColumns = `id, name, description, start_date, end_date, status, teams, final_rankings,
	overall_winner_market_id, created_at, updated_at`

type tournamentRepository struct {
	q Queryable
}

// NewTournamentRepository creates a new tournament repository
func NewTournamentRepository(db *database.DB) interfaces.TournamentRepository {
	return &tournamentRepository{q: db.Pool}
}

// newTournamentRepositoryWithTx creates a new tournament repository with a transaction
func newTournamentRepositoryWithTx(tx Queryable) interfaces.TournamentRepository {
	return &tournamentRepository{q: tx}
}

func scanTournament(row pgx.Row) (*entities.Tournament, error) {
	var t entities.Tournament
	var teamsJSON, rankingsJSON []byte
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.StartDate,
		&t.EndDate,
		&t.Status,
		&teamsJSON,
		&rankingsJSON,
		&t.OverallWinnerMarketID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(teamsJSON, &t.Teams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal teams: %w", err)
	}
	if err := json.Unmarshal(rankingsJSON, &t.FinalRankings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal final rankings: %w", err)
	}
	if len(t.FinalRankings) == 0 {
		t.FinalRankings = nil
	}
	return &t, nil
}

func marshalRoster(t *entities.Tournament) (teams []byte, rankings []byte, err error) {
	teamList := t.Teams
	if teamList == nil {
		teamList = []entities.Team{}
	}
	rankingList := t.FinalRankings
	if rankingList == nil {
		rankingList = []entities.Ranking{}
	}
	if teams, err = json.Marshal(teamList); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal teams: %w", err)
	}
	if rankings, err = json.Marshal(rankingList); err != nil {
		return nil, nil, fmt.Errorf("failed to marshal final rankings: %w", err)
	}
	return teams, rankings, nil
}

// Create inserts a tournament
func (r *tournamentRepository) Create(ctx context.Context, tournament *entities.Tournament) error {
	teams, rankings, err := marshalRoster(tournament)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tournaments (name, description, start_date, end_date, status, teams, final_rankings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err = r.q.QueryRow(ctx, query,
		tournament.Name,
		tournament.Description,
		tournament.StartDate,
		tournament.EndDate,
		tournament.Status,
		teams,
		rankings,
	).Scan(&tournament.ID, &tournament.CreatedAt, &tournament.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament %q: %w", tournament.Name, err)
	}
	return nil
}

func (r *tournamentRepository) get(ctx context.Context, id int64, lockClause string) (*entities.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 ` + lockClause

	tournament, err := scanTournament(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return tournament, nil
}

// GetByID retrieves a tournament
func (r *tournamentRepository) GetByID(ctx context.Context, id int64) (*entities.Tournament, error) {
	return r.get(ctx, id, "")
}

// GetByIDForUpdate retrieves a tournament holding an exclusive row lock
func (r *tournamentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Tournament, error) {
	return r.get(ctx, id, "FOR NO KEY UPDATE")
}

// Update persists every mutable field
func (r *tournamentRepository) Update(ctx context.Context, tournament *entities.Tournament) error {
	teams, rankings, err := marshalRoster(tournament)
	if err != nil {
		return err
	}

	query := `
		UPDATE tournaments
		SET name = $2,
		    description = $3,
		    start_date = $4,
		    end_date = $5,
		    status = $6,
		    teams = $7,
		    final_rankings = $8,
		    overall_winner_market_id = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.q.QueryRow(ctx, query,
		tournament.ID,
		tournament.Name,
		tournament.Description,
		tournament.StartDate,
		tournament.EndDate,
		tournament.Status,
		teams,
		rankings,
		tournament.OverallWinnerMarketID,
	).Scan(&tournament.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("tournament %d not found", tournament.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update tournament %d: %w", tournament.ID, err)
	}
	return nil
}

// Delete removes a tournament together with its markets and bets
func (r *tournamentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("tournament %d not found", id)
	}
	return nil
}

// List returns a page of tournaments, newest start date first
func (r *tournamentRepository) List(ctx context.Context, page entities.Page) ([]*entities.Tournament, int64, error) {
	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM tournaments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tournaments: %w", err)
	}

	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments
		ORDER BY start_date DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.q.Query(ctx, query, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*entities.Tournament
	for rows.Next() {
		tournament, err := scanTournament(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, tournament)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating tournaments: %w", err)
	}
	return tournaments, total, nil
}
