package model

import "time"

// User is a panel account. Permissions is a level; higher levels include lower ones.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Permissions  int       `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
}

// Can reports whether the user's level satisfies required.
func (u *User) Can(required int) bool {
	return u != nil && u.Permissions >= required
}
