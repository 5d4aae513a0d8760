package store

import (
	"context"
	"database/sql"
	"strings"

	"bizportal/internal/models"
)

// Kept to types every supported driver understands.
const activityTableDDL = `CREATE TABLE IF NOT EXISTS activity_log (
  id VARCHAR(64) PRIMARY KEY,
  actor_id VARCHAR(64),
  action VARCHAR(64) NOT NULL,
  detail TEXT,
  client_ip VARCHAR(64),
  client_agent TEXT,
  success INTEGER NOT NULL,
  created_at TIMESTAMP NOT NULL
)`

func (s *Store) EnsureActivityTable(ctx context.Context) error {
	_, err := s.exec(ctx, activityTableDDL)
	return err
}

func (s *Store) InsertActivity(ctx context.Context, rec models.ActivityRecord) error {
	_, err := s.exec(ctx,
		`INSERT INTO activity_log(id,actor_id,action,detail,client_ip,client_agent,success,created_at) VALUES(?,?,?,?,?,?,?,?)`,
		rec.ID, nullString(rec.ActorID), rec.Action, nullString(rec.Detail), rec.ClientIP, rec.ClientAgent, boolToInt(rec.Success), rec.CreatedAt.UTC(),
	)
	return err
}

// ListActivity returns one page of records plus the total matching count.
// A database without the table yet reads as empty.
func (s *Store) ListActivity(ctx context.Context, q models.ActivityQuery) ([]models.ActivityRecord, int, error) {
	where, args := activityFilter(q)
	var total int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM activity_log`+where, args...).Scan(&total); err != nil {
		if IsMissingTable(err) {
			return []models.ActivityRecord{}, 0, nil
		}
		return nil, 0, err
	}

	order := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		order = "ASC"
	}
	pageArgs := append(append([]any{}, args...), q.Limit, q.Offset)
	rows, err := s.query(ctx,
		`SELECT id,actor_id,action,detail,client_ip,client_agent,success,created_at FROM activity_log`+where+
			` ORDER BY created_at `+order+`, id `+order+` LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]models.ActivityRecord, 0, q.Limit)
	for rows.Next() {
		var rec models.ActivityRecord
		var actor, detail, ip, agent sql.NullString
		if err := rows.Scan(&rec.ID, &actor, &rec.Action, &detail, &ip, &agent, &rec.Success, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		if actor.Valid {
			v := actor.String
			rec.ActorID = &v
		}
		if detail.Valid {
			v := detail.String
			rec.Detail = &v
		}
		rec.ClientIP = ip.String
		rec.ClientAgent = agent.String
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func activityFilter(q models.ActivityQuery) (string, []any) {
	var clauses []string
	var args []any
	if v := strings.TrimSpace(q.ActorID); v != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(q.Action); v != "" {
		clauses = append(clauses, "action=?")
		args = append(args, v)
	}
	if q.Success != nil {
		clauses = append(clauses, "success=?")
		args = append(args, boolToInt(*q.Success))
	}
	if !q.From.IsZero() {
		clauses = append(clauses, "created_at>=?")
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		clauses = append(clauses, "created_at<=?")
		args = append(args, q.To.UTC())
	}
	if v := strings.TrimSpace(q.Q); v != "" {
		like := "%" + strings.ToLower(v) + "%"
		clauses = append(clauses, "(LOWER(action) LIKE ? OR LOWER(COALESCE(detail,'')) LIKE ? OR LOWER(COALESCE(client_ip,'')) LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
