package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tullo/trust/internal/database"
)

// DirectoryRepository checks content owned by the group and chat services
type DirectoryRepository struct {
	db database.Querier
}

func NewDirectoryRepository(db database.Querier) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GroupExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM groups WHERE id = $1)`, id)
}

func (r *DirectoryRepository) MessageExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id)
}

func (r *DirectoryRepository) exists(ctx context.Context, query string, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return exists, nil
}
