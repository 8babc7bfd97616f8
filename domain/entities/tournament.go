package entities

import (
	"strings"
	"time"

	"coinbet/domain"
)

// TournamentStatus represents the lifecycle state of a tournament
type TournamentStatus string

const (
	TournamentStatusUpcoming  TournamentStatus = "upcoming"
	TournamentStatusActive    TournamentStatus = "active"
	TournamentStatusFinished  TournamentStatus = "finished"
	TournamentStatusCancelled TournamentStatus = "cancelled"
)

// Team is a roster entry of a tournament
type Team struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// Ranking is a team's final placement
type Ranking struct {
	Rank     int    `json:"rank" validate:"gte=1"`
	TeamName string `json:"teamName" validate:"required"`
}

// Tournament groups markets under a team roster
type Tournament struct {
	ID                    int64            `db:"id"`
	Name                  string           `db:"name"`
	Description           string           `db:"description"`
	StartDate             time.Time        `db:"start_date"`
	EndDate               time.Time        `db:"end_date"`
	Status                TournamentStatus `db:"status"`
	Teams                 []Team           `db:"teams"`
	FinalRankings         []Ranking        `db:"final_rankings"`
	OverallWinnerMarketID *int64           `db:"overall_winner_market_id"`
	CreatedAt             time.Time        `db:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at"`
}

// CreateTournamentRequest is the input for creating a tournament
type CreateTournamentRequest struct {
	Name        string    `validate:"required,max=255"`
	Description string
	StartDate   time.Time `validate:"required"`
	EndDate     time.Time `validate:"required,gtefield=StartDate"`
	Teams       []Team    `validate:"required,min=2,dive"`
}

// HasTeam reports whether the roster contains a team with the given name
func (t *Tournament) HasTeam(name string) bool {
	for _, team := range t.Teams {
		if team.Name == name {
			return true
		}
	}
	return false
}

// IsFinished reports whether final rankings have been posted
func (t *Tournament) IsFinished() bool {
	return t.Status == TournamentStatusFinished
}

// ValidateTeams trims the roster names in place and checks them for empty and duplicate names
func ValidateTeams(teams []Team) error {
	if len(teams) < 2 {
		return domain.NewError(domain.CodeInvalidOptions, "a tournament needs at least two teams")
	}
	seen := make(map[string]bool, len(teams))
	for i := range teams {
		name := strings.TrimSpace(teams[i].Name)
		teams[i].Name = name
		if name == "" {
			return domain.NewError(domain.CodeInvalidOptions, "team names cannot be empty")
		}
		if name == DrawOption {
			return domain.NewError(domain.CodeInvalidOptions, "%q is reserved", DrawOption)
		}
		if seen[name] {
			return domain.NewError(domain.CodeInvalidOptions, "duplicate team %q", name)
		}
		seen[name] = true
	}
	return nil
}

// ValidateMatchup checks that both teams belong to the roster and differ
func (t *Tournament) ValidateMatchup(team1, team2 string) error {
	for _, name := range []string{team1, team2} {
		if !t.HasTeam(name) {
			return domain.NewError(domain.CodeUnknownTeam, "team %q is not part of tournament %d", name, t.ID).
				WithDetail("team", name)
		}
	}
	if team1 == team2 {
		return domain.NewError(domain.CodeDuplicateTeams, "team %q cannot play itself", team1)
	}
	return nil
}

// ValidateRankings checks final rankings against the roster.
// Every ranked team must exist, ranks and team names must be unique and a rank 1 must be present.
func (t *Tournament) ValidateRankings(rankings []Ranking) error {
	if len(rankings) == 0 {
		return domain.NewError(domain.CodeInvalidRanking, "rankings cannot be empty")
	}
	ranks := make(map[int]bool, len(rankings))
	teams := make(map[string]bool, len(rankings))
	for _, r := range rankings {
		if !t.HasTeam(r.TeamName) {
			return domain.NewError(domain.CodeUnknownTeam, "team %q is not part of tournament %d", r.TeamName, t.ID).
				WithDetail("team", r.TeamName)
		}
		if r.Rank < 1 {
			return domain.NewError(domain.CodeInvalidRanking, "rank %d for %q must be at least 1", r.Rank, r.TeamName)
		}
		if ranks[r.Rank] {
			return domain.NewError(domain.CodeInvalidRanking, "rank %d is assigned more than once", r.Rank)
		}
		if teams[r.TeamName] {
			return domain.NewError(domain.CodeInvalidRanking, "team %q is ranked more than once", r.TeamName)
		}
		ranks[r.Rank] = true
		teams[r.TeamName] = true
	}
	if !ranks[1] {
		return domain.NewError(domain.CodeInvalidRanking, "rankings must include a winner at rank 1")
	}
	return nil
}

// Winner returns the rank 1 team of the given rankings
func Winner(rankings []Ranking) (string, bool) {
	for _, r := range rankings {
		if r.Rank == 1 {
			return r.TeamName, true
		}
	}
	return "", false
}
