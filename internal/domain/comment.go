package domain

import "time"

// Comment is a message in a ticket thread.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorRole Role
	Body       string
	Internal   bool
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// CountsAsResponse reports whether the comment satisfies the first-response target.
// Only public replies from support staff count.
func (c *Comment) CountsAsResponse() bool {
	if c == nil || c.Internal {
		return false
	}
	return c.AuthorRole == RoleAgent || c.AuthorRole == RoleAdmin
}
