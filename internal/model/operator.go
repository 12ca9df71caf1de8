package model

import "time"

// Operator is a staff account.  Operators sign in to the admin API
// with email and password and additionally receive WhatsApp fan-out
// for confirmations, reminders and check-ins on their Phone handle.
type Operator struct {
	ID           uint64    // operators.id
	Email        string    // operators.email
	PasswordHash string    // operators.password_hash (bcrypt)
	Phone        string    // WhatsApp handle used for notifications
	IsActive     bool      // operators.is_active
	CreatedAt    time.Time // operators.created_at
	UpdatedAt    time.Time // operators.updated_at
}
