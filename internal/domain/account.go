package domain

import "time"

// Account is a console login for an admin or proponent. Members submit
// tickets without an account; they never touch audited state.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Actor        ActorType `json:"actor"`
	CreatedAt    time.Time `json:"created_at"`
}
