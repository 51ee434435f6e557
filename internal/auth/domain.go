package auth

import "time"

// Account is the login view of a school admin.
type Account struct {
	ID           string
	SchoolID     string
	Name         string
	Email        string
	Role         string
	PasswordHash string
	IsPlatform   bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
