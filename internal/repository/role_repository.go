package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/security-service/internal/domain"
)

// RoleRepository defines persistence access for roles and their claims.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
	ListClaims(ctx context.Context, roleID string) ([]domain.Claim, error)
}

type roleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository returns a Postgres-backed implementation.
func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepository{pool: pool}
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	const query = `SELECT id, name, created_at FROM roles WHERE name=$1`

	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, name).Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

// ListForUser returns role names in assignment order, which the claims
// builder relies on when appending role claims.
func (r *roleRepository) ListForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `
        SELECT r.name FROM roles r
        JOIN user_roles ur ON ur.role_id = r.id
        WHERE ur.user_id=$1 ORDER BY ur.created_at, r.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *roleRepository) ListClaims(ctx context.Context, roleID string) ([]domain.Claim, error) {
	const query = `
        SELECT claim_key, claim_value FROM role_claims
        WHERE role_id=$1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var claim domain.Claim
		if err := rows.Scan(&claim.Key, &claim.Value); err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}
