package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/resolveit/escalation-monitor/internal/domain"
)

func (r *Repository) InsertSnapshot(snapshot domain.Snapshot) (*domain.SnapshotRecord, error) {
	candidates, err := json.Marshal(snapshot.Candidates)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO escalation_snapshots (seq, total, unassigned, assigned, overdue, candidates, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	record := &domain.SnapshotRecord{
		Seq:       snapshot.Seq,
		Stats:     snapshot.Stats,
		FetchedAt: snapshot.FetchedAt,
	}
	for _, c := range snapshot.Candidates {
		record.CandidateIDs = append(record.CandidateIDs, c.ID)
	}

	args := []any{int64(snapshot.Seq), snapshot.Stats.Total, snapshot.Stats.Unassigned, snapshot.Stats.Assigned, snapshot.Stats.Overdue, candidates, snapshot.FetchedAt}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&record.ID, &record.CreatedAt); err != nil {
		return nil, err
	}

	return record, nil
}

// GetRecentSnapshots 按拉取时间倒序返回最近的快照记录，只保留投诉 ID
func (r *Repository) GetRecentSnapshots(limit int) ([]*domain.SnapshotRecord, error) {
	query := `
		SELECT id, seq, total, unassigned, assigned, overdue, candidates, fetched_at, created_at
		FROM escalation_snapshots
		ORDER BY fetched_at DESC, id DESC
		LIMIT $1
	`

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.SnapshotRecord, 0)
	for rows.Next() {
		record := &domain.SnapshotRecord{}
		var (
			seq        int64
			candidates []byte
		)
		dst := []any{&record.ID, &seq, &record.Stats.Total, &record.Stats.Unassigned, &record.Stats.Assigned, &record.Stats.Overdue, &candidates, &record.FetchedAt, &record.CreatedAt}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		record.Seq = uint64(seq)

		var items []struct {
			ID domain.ID `json:"id"`
		}
		if err := json.Unmarshal(candidates, &items); err != nil {
			return nil, err
		}
		record.CandidateIDs = make([]domain.ID, 0, len(items))
		for _, item := range items {
			record.CandidateIDs = append(record.CandidateIDs, item.ID)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
