package repository

import (
	"context"
	"time"

	"github.com/resolveit/escalation-monitor/internal/domain"
)

func (r *Repository) InsertAction(action *domain.EscalationAction) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO escalation_actions (type, complaint_id, actor_id, detail, succeeded, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	args := []any{action.Type, action.ComplaintID, action.ActorID, action.Detail, action.Succeeded, action.Error, action.CreatedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&action.ID); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRecentActions(limit int) ([]*domain.EscalationAction, error) {
	query := `
		SELECT id, type, complaint_id, actor_id, detail, succeeded, error, created_at
		FROM escalation_actions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make([]*domain.EscalationAction, 0)
	for rows.Next() {
		action := &domain.EscalationAction{}
		dst := []any{&action.ID, &action.Type, &action.ComplaintID, &action.ActorID, &action.Detail, &action.Succeeded, &action.Error, &action.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return actions, nil
}
