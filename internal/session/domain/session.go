package domain

import "time"

// Session is a logged-in session. Hash is the current rotation secret; it is
// replaced on every refresh and the row is deleted on logout.
type Session struct {
	ID        string
	UserID    string
	Hash      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
