package entities

import (
	"time"
)

// User is a betting account holding a virtual coin balance
type User struct {
	ID             int64     `db:"id"`
	Username       string    `db:"username"`
	Balance        int64     `db:"balance"`
	IsAdmin        bool      `db:"is_admin"`
	IsBanned       bool      `db:"is_banned"`
	BanReason      *string   `db:"ban_reason"`
	RegistrationIP string    `db:"registration_ip"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// HasSufficientBalance checks if the user has sufficient balance for an amount
func (u *User) HasSufficientBalance(amount int64) bool {
	return u.Balance >= amount
}

// CalculateNewBalance calculates what the balance would be after a change
func (u *User) CalculateNewBalance(changeAmount int64) int64 {
	return u.Balance + changeAmount
}

// LeaderboardEntry is one row of the public ranking of non-banned users by balance
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	UserID      int64   `json:"userId"`
	Username    string  `json:"username"`
	Balance     int64   `json:"balance"`
	TotalStaked int64   `json:"totalStaked"`
	TotalBets   int64   `json:"totalBets"`
	WonBets     int64   `json:"wonBets"`
	LostBets    int64   `json:"lostBets"`
	WinRate     float64 `json:"winRate"`
}
