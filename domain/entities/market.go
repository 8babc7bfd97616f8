package entities

import (
	"fmt"
	"time"

	"coinbet/domain"
)

// MarketKind distinguishes match markets from the tournament overall-winner market
type MarketKind string

const (
	MarketKindMatch         MarketKind = "match"
	MarketKindOverallWinner MarketKind = "overall_winner"
)

// MarketStatus represents the lifecycle state of a market
type MarketStatus string

const (
	MarketStatusUpcoming  MarketStatus = "upcoming"
	MarketStatusActive    MarketStatus = "active"
	MarketStatusFinished  MarketStatus = "finished"
	MarketStatusCancelled MarketStatus = "cancelled"
)

const (
	// DrawOption is the third outcome of every match market
	DrawOption = "Draw"

	DefaultTeamOdds = 2.0
	DefaultDrawOdds = 3.0

	MinOdds = 1.01
	MaxOdds = 100.0
)

// MarketOption is one selectable outcome of a market
type MarketOption struct {
	ID       int64   `db:"id"`
	MarketID int64   `db:"market_id"`
	Name     string  `db:"name"`
	Odds     float64 `db:"odds"`
	Stake    int64   `db:"stake"`
	Position int     `db:"position"`
}

// Market is a bettable question with a fixed, ordered set of options
type Market struct {
	ID           int64           `db:"id"`
	TournamentID int64           `db:"tournament_id"`
	Kind         MarketKind      `db:"kind"`
	Status       MarketStatus    `db:"status"`
	Title        string          `db:"title"`
	Description  string          `db:"description"`
	EventDate    time.Time       `db:"event_date"`
	Team1        *string         `db:"team1"`
	Team2        *string         `db:"team2"`
	TotalStake   int64           `db:"total_stake"`
	Result       *string         `db:"result"`
	Score        *string         `db:"score"`
	SettledAt    *time.Time      `db:"settled_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
	Options      []*MarketOption `db:"-"`
}

// NewMatchMarket builds an upcoming match market with neutral starting odds
func NewMatchMarket(tournamentID int64, team1, team2, title string, eventDate time.Time) *Market {
	if title == "" {
		title = fmt.Sprintf("%s vs %s", team1, team2)
	}
	return &Market{
		TournamentID: tournamentID,
		Kind:         MarketKindMatch,
		Status:       MarketStatusUpcoming,
		Title:        title,
		EventDate:    eventDate,
		Team1:        &team1,
		Team2:        &team2,
		Options: []*MarketOption{
			{Name: team1, Odds: DefaultTeamOdds, Position: 0},
			{Name: team2, Odds: DefaultTeamOdds, Position: 1},
			{Name: DrawOption, Odds: DefaultDrawOdds, Position: 2},
		},
	}
}

// NewOverallWinnerMarket builds the overall-winner market mirroring the tournament roster
func NewOverallWinnerMarket(t *Tournament) *Market {
	m := &Market{
		TournamentID: t.ID,
		Kind:         MarketKindOverallWinner,
		Status:       MarketStatus(t.Status),
		Title:        fmt.Sprintf("%s - Overall Winner", t.Name),
		Description:  fmt.Sprintf("Bet on the overall winner of %s", t.Name),
		EventDate:    t.EndDate,
	}
	m.Options = rosterOptions(t.Teams)
	return m
}

func rosterOptions(teams []Team) []*MarketOption {
	options := make([]*MarketOption, 0, len(teams))
	for i, team := range teams {
		options = append(options, &MarketOption{Name: team.Name, Odds: DefaultTeamOdds, Position: i})
	}
	return options
}

// IsMatch returns true for match markets
func (m *Market) IsMatch() bool {
	return m.Kind == MarketKindMatch
}

// IsOpenForWagering reports whether new bets may be placed
func (m *Market) IsOpenForWagering() bool {
	return m.Status == MarketStatusUpcoming || m.Status == MarketStatusActive
}

// AllowsCancellation reports whether bets may still be withdrawn
func (m *Market) AllowsCancellation() bool {
	return m.Status == MarketStatusUpcoming
}

// IsReadyToSettle reports whether a result has been declared
func (m *Market) IsReadyToSettle() bool {
	return m.Status == MarketStatusFinished && m.Result != nil
}

// IsSettled reports whether settlement has completed for every bet
func (m *Market) IsSettled() bool {
	return m.SettledAt != nil
}

// Option returns the option with the given name
func (m *Market) Option(name string) (*MarketOption, error) {
	for _, opt := range m.Options {
		if opt.Name == name {
			return opt, nil
		}
	}
	return nil, domain.NewError(domain.CodeUnknownOption, "option %q does not exist on market %d", name, m.ID).
		WithDetail("marketId", m.ID).
		WithDetail("option", name)
}

// OptionNames returns option names in display order
func (m *Market) OptionNames() []string {
	names := make([]string, 0, len(m.Options))
	for _, opt := range m.Options {
		names = append(names, opt.Name)
	}
	return names
}

// RecordStake adds amount to the option and total stake of an open market
func (m *Market) RecordStake(name string, amount int64) error {
	if !m.IsOpenForWagering() {
		return domain.NewError(domain.CodeMarketClosed, "market %d is %s", m.ID, m.Status).
			WithDetail("status", m.Status)
	}
	return m.ReplayStake(name, amount)
}

// ReplayStake adds the stake of a bet that was accepted while the market was open.
// Unlike RecordStake it does not look at the current status, so lagging stake updates
// can still be applied after the market closed.
func (m *Market) ReplayStake(name string, amount int64) error {
	if amount <= 0 {
		return domain.NewError(domain.CodeInvalidAmount, "stake must be positive, got %d", amount)
	}
	opt, err := m.Option(name)
	if err != nil {
		return err
	}
	opt.Stake += amount
	m.TotalStake += amount
	return nil
}

// ReverseStake removes up to amount from the option, never going below zero.
// It returns the amount actually removed, which is also removed from the total.
func (m *Market) ReverseStake(name string, amount int64) (int64, error) {
	opt, err := m.Option(name)
	if err != nil {
		return 0, err
	}
	removed := min(amount, opt.Stake)
	if removed < 0 {
		removed = 0
	}
	opt.Stake -= removed
	m.TotalStake -= removed
	if m.TotalStake < 0 {
		m.TotalStake = 0
	}
	return removed, nil
}

// DeclareResult finishes the market with a winning option
func (m *Market) DeclareResult(winner string, score *string) error {
	if m.Status == MarketStatusFinished {
		return domain.NewError(domain.CodeAlreadySettled, "market %d already finished", m.ID)
	}
	if m.Status == MarketStatusCancelled {
		return domain.NewError(domain.CodeInvalidState, "market %d is cancelled", m.ID)
	}
	if _, err := m.Option(winner); err != nil {
		return domain.NewError(domain.CodeInvalidResult, "%q is not an option of market %d", winner, m.ID).
			WithDetail("options", m.OptionNames())
	}
	m.Status = MarketStatusFinished
	m.Result = &winner
	m.Score = score
	return nil
}

// SetOptions replaces the option list, keeping stakes of options that survive by name
func (m *Market) SetOptions(options []*MarketOption) error {
	if m.Status == MarketStatusFinished {
		return domain.NewError(domain.CodeAlreadySettled, "options of finished market %d cannot change", m.ID)
	}
	if len(options) < 2 {
		return domain.NewError(domain.CodeInvalidOptions, "a market needs at least two options")
	}

	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if opt.Name == "" {
			return domain.NewError(domain.CodeInvalidOptions, "option names cannot be empty")
		}
		if seen[opt.Name] {
			return domain.NewError(domain.CodeInvalidOptions, "duplicate option %q", opt.Name)
		}
		seen[opt.Name] = true
		if opt.Odds < MinOdds || opt.Odds > MaxOdds {
			return domain.NewError(domain.CodeInvalidOptions, "odds for %q must be between %.2f and %.2f", opt.Name, MinOdds, MaxOdds)
		}
	}

	if m.IsMatch() {
		if m.Team1 == nil || m.Team2 == nil || len(options) != 3 ||
			!seen[*m.Team1] || !seen[*m.Team2] || !seen[DrawOption] {
			return domain.NewError(domain.CodeInvalidOptions, "match options must be exactly the two teams and %s", DrawOption)
		}
	}

	for _, existing := range m.Options {
		if existing.Stake > 0 && !seen[existing.Name] {
			return domain.NewError(domain.CodeInvalidOptions, "option %q holds stakes and cannot be removed", existing.Name)
		}
	}

	replaced := make([]*MarketOption, 0, len(options))
	for i, opt := range options {
		next := &MarketOption{
			MarketID: m.ID,
			Name:     opt.Name,
			Odds:     opt.Odds,
			Position: i,
		}
		if existing, err := m.Option(opt.Name); err == nil {
			next.ID = existing.ID
			next.Stake = existing.Stake
		}
		replaced = append(replaced, next)
	}
	m.Options = replaced
	return nil
}

// SyncRosterOptions re-derives overall-winner options from the tournament teams
func (m *Market) SyncRosterOptions(teams []Team) error {
	if m.Kind != MarketKindOverallWinner {
		return domain.NewError(domain.CodeInvalidState, "market %d is not an overall-winner market", m.ID)
	}
	options := rosterOptions(teams)
	for _, opt := range options {
		if existing, err := m.Option(opt.Name); err == nil {
			opt.Odds = existing.Odds
		}
	}
	return m.SetOptions(options)
}

// SetStatus moves the market between the administrative states.
// Finishing a market only happens through DeclareResult.
func (m *Market) SetStatus(status MarketStatus) error {
	if m.Status == MarketStatusFinished {
		return domain.NewError(domain.CodeAlreadySettled, "market %d already finished", m.ID)
	}
	switch status {
	case MarketStatusUpcoming, MarketStatusActive, MarketStatusCancelled:
		m.Status = status
		return nil
	case MarketStatusFinished:
		return domain.NewError(domain.CodeInvalidState, "markets are finished by declaring a result")
	default:
		return domain.NewError(domain.CodeInvalidState, "unknown market status %q", status)
	}
}

// CheckStakeInvariant verifies the option stakes add up to the total stake
func (m *Market) CheckStakeInvariant() error {
	var sum int64
	for _, opt := range m.Options {
		sum += opt.Stake
	}
	if sum != m.TotalStake {
		return fmt.Errorf("market %d option stakes sum to %d but total stake is %d", m.ID, sum, m.TotalStake)
	}
	return nil
}

// OptionOdds is a point-in-time view of one option's odds
type OptionOdds struct {
	Name  string  `json:"name"`
	Odds  float64 `json:"odds"`
	Stake int64   `json:"stake"`
}

// OddsSnapshot is a point-in-time view of a market's odds
type OddsSnapshot struct {
	MarketID   int64        `json:"marketId"`
	TotalStake int64        `json:"totalStake"`
	Options    []OptionOdds `json:"options"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Snapshot captures the current odds of every option
func (m *Market) Snapshot(at time.Time) *OddsSnapshot {
	snapshot := &OddsSnapshot{
		MarketID:   m.ID,
		TotalStake: m.TotalStake,
		Options:    make([]OptionOdds, 0, len(m.Options)),
		UpdatedAt:  at,
	}
	for _, opt := range m.Options {
		snapshot.Options = append(snapshot.Options, OptionOdds{Name: opt.Name, Odds: opt.Odds, Stake: opt.Stake})
	}
	return snapshot
}

// CreateMatchRequest is the input for creating a match market
type CreateMatchRequest struct {
	TournamentID int64     `validate:"required,gt=0"`
	Team1        string    `validate:"required"`
	Team2        string    `validate:"required"`
	Title        string    `validate:"max=255"`
	EventDate    time.Time `validate:"required"`
}
