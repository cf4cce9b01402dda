package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// PolicyRepository reads the role/permission tables. It satisfies authz.PolicyLoader.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository builds repository.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// LoadPolicy builds a fresh policy snapshot. Roles without permissions are kept
// so that they resolve to an empty set rather than being unknown.
func (r *PolicyRepository) LoadPolicy(ctx context.Context) (*authz.Policy, error) {
	const query = `
        SELECT r.name, r.owner_scoped, p.name
        FROM roles r
        LEFT JOIN role_permissions rp ON rp.role_id = r.id
        LEFT JOIN permissions p ON p.id = rp.permission_id
        ORDER BY r.name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	defer rows.Close()

	grants := map[domain.Role]*authz.Grant{}
	var order []domain.Role
	for rows.Next() {
		var (
			role        domain.Role
			ownerScoped bool
			perm        *string
		)
		if err := rows.Scan(&role, &ownerScoped, &perm); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		g, ok := grants[role]
		if !ok {
			g = &authz.Grant{Role: role, OwnerScoped: ownerScoped}
			grants[role] = g
			order = append(order, role)
		}
		if perm != nil {
			g.Permissions = append(g.Permissions, *perm)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("load policy: no roles defined: %w", domain.ErrConfiguration)
	}

	list := make([]authz.Grant, 0, len(order))
	for _, role := range order {
		list = append(list, *grants[role])
	}
	return authz.NewPolicy(list...), nil
}

var _ authz.PolicyLoader = (*PolicyRepository)(nil)
