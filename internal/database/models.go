package database

import (
	"time"
)

// User represents a registered account
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize
	DisplayName  string     `json:"display_name,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserSession represents an active user session with refresh token
type UserSession struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	RefreshTokenHash string     `json:"-"` // Never serialize
	DeviceInfo       string     `json:"device_info,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	UserAgent        string     `json:"user_agent,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       time.Time  `json:"last_used_at"`
}

// WatchlistItem is one symbol on a user's scan list
type WatchlistItem struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Portfolio is a shared list of weighted positions visible to everyone
type Portfolio struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Positions   []PortfolioPosition `json:"positions"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// PortfolioPosition is one weighted entry of a shared portfolio
type PortfolioPosition struct {
	ID          int64     `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	Symbol      string    `json:"symbol"`
	WeightPct   float64   `json:"weight_pct"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
