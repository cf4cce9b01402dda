// Package authz decides whether a role may perform an action on a subject.
package authz

import (
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Action is the verb half of a permission.
type Action string

const (
	ActionCreate Action = "create"
	ActionView   Action = "view"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAssign Action = "assign"
	ActionClose  Action = "close"
	ActionManage Action = "manage"
)

// Subject is the record class an action targets.
type Subject string

const (
	SubjectTicket  Subject = "Ticket"
	SubjectComment Subject = "Comment"
	SubjectUser    Subject = "User"
)

var subjectPrefixes = map[Subject]string{
	SubjectTicket:  "tickets",
	SubjectComment: "comments",
	SubjectUser:    "users",
}

// ManageAll grants every permission.
const ManageAll = "*"

// Permission names accepted by the policy.
const (
	PermTicketsCreate  = "tickets.create"
	PermTicketsView    = "tickets.view"
	PermTicketsUpdate  = "tickets.update"
	PermTicketsDelete  = "tickets.delete"
	PermTicketsAssign  = "tickets.assign"
	PermTicketsClose   = "tickets.close"
	PermCommentsCreate = "comments.create"
	PermCommentsDelete = "comments.delete"
	PermUsersView      = "users.view"
	PermUsersManage    = "users.manage"
)

// PermissionFor builds the permission string for an action on a subject, or ""
// when the subject is unknown.
func PermissionFor(subject Subject, action Action) string {
	p, ok := subjectPrefixes[subject]
	if !ok || action == "" {
		return ""
	}
	return p + "." + string(action)
}

// ParseSubject accepts the canonical name or the permission prefix.
func ParseSubject(raw string) (Subject, bool) {
	for subject, p := range subjectPrefixes {
		if strings.EqualFold(raw, string(subject)) || strings.EqualFold(raw, p) {
			return subject, true
		}
	}
	return "", false
}

// Grant is one role's permission set as stored by a policy source.
type Grant struct {
	Role        domain.Role
	Permissions []string
	OwnerScoped bool
}

// Policy is an immutable role -> permission-set mapping.
type Policy struct {
	perms  map[domain.Role]map[string]struct{}
	scoped map[domain.Role]bool
}

// NewPolicy resolves grants into lookup sets.
func NewPolicy(grants ...Grant) *Policy {
	p := &Policy{
		perms:  make(map[domain.Role]map[string]struct{}, len(grants)),
		scoped: make(map[domain.Role]bool, len(grants)),
	}
	for _, g := range grants {
		set, ok := p.perms[g.Role]
		if !ok {
			set = make(map[string]struct{}, len(g.Permissions))
			p.perms[g.Role] = set
		}
		for _, perm := range g.Permissions {
			set[strings.TrimSpace(perm)] = struct{}{}
		}
		if g.OwnerScoped {
			p.scoped[g.Role] = true
		}
	}
	return p
}

// DefaultPolicy is the shipped role matrix.
func DefaultPolicy() *Policy {
	return NewPolicy(
		Grant{Role: domain.RoleAdmin, Permissions: []string{ManageAll}},
		Grant{Role: domain.RoleAgent, Permissions: []string{
			PermTicketsCreate,
			PermTicketsView,
			PermTicketsUpdate,
			PermTicketsAssign,
			PermTicketsClose,
			PermCommentsCreate,
			PermCommentsDelete,
		}},
		Grant{Role: domain.RoleUser, OwnerScoped: true, Permissions: []string{
			PermTicketsCreate,
			PermTicketsView,
			PermTicketsUpdate,
			PermCommentsCreate,
		}},
	)
}

// Has reports whether role holds perm directly or through ManageAll.
func (p *Policy) Has(role domain.Role, perm string) bool {
	set, ok := p.perms[role]
	if !ok || perm == "" {
		return false
	}
	if _, all := set[ManageAll]; all {
		return true
	}
	_, ok = set[perm]
	return ok
}

// OwnerScoped reports whether role is restricted to records it owns.
func (p *Policy) OwnerScoped(role domain.Role) bool {
	return p.scoped[role]
}

// Roles lists the roles known to the policy.
func (p *Policy) Roles() []domain.Role {
	roles := make([]domain.Role, 0, len(p.perms))
	for role := range p.perms {
		roles = append(roles, role)
	}
	return roles
}
