package domain

import "time"

// User is an authenticated owner. Every storage operation in the system
// is scoped by the user's ID.
type User struct {
	ID        string
	GoogleID  string
	Email     string
	Name      string
	Picture   string
	CreatedAt time.Time
}

// ValidateUser checks required user fields.
func ValidateUser(u *User) error {
	if u.GoogleID == "" || u.Email == "" {
		return ErrMissingRequiredField
	}
	return nil
}
