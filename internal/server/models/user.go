package models

import "time"

// User is a registered account. Email is unique across users.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
