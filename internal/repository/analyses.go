package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

type AnalysisRepository interface {
	Record(ctx context.Context, rec entity.AnalysisRecord) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.AnalysisRecord, error)
}

type analysisRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewAnalysisRepository(db *DB, logger *slog.Logger) AnalysisRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &analysisRepository{db: db, logger: logger}
}

var analysisColumns = []string{
	"id", "user_id", "flow", "source", "status", "result", "error_kind", "error_message", "created_at",
}

// Record stores one outcome, assigning ID and CreatedAt when unset.
func (r *analysisRepository) Record(ctx context.Context, rec entity.AnalysisRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	var userID, result any
	if rec.UserID != nil {
		userID = rec.UserID.String()
	}
	if len(rec.Result) > 0 {
		result = string(rec.Result)
	}

	q, args := entsql.Dialect(r.db.dialect).
		Insert("analyses").
		Columns(analysisColumns...).
		Values(rec.ID.String(), userID, string(rec.Flow), rec.Source, string(rec.Status),
			result, rec.ErrorKind, rec.ErrorMessage, toMillis(rec.CreatedAt)).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to record analysis", "flow", rec.Flow, "source", rec.Source, "error", err)
		return common.KindError(common.ErrDatabase, err)
	}
	r.logger.Debug("analysis recorded", "id", rec.ID, "flow", rec.Flow, "status", rec.Status)
	return nil
}

// ListByUser returns the user's records, newest first. limit <= 0 means no limit.
func (r *analysisRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]entity.AnalysisRecord, error) {
	sel := entsql.Dialect(r.db.dialect).
		Select(analysisColumns...).
		From(entsql.Table("analyses")).
		Where(entsql.EQ("user_id", userID.String())).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to list analyses", "user_id", userID, "error", err)
		return nil, common.KindError(common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make([]entity.AnalysisRecord, 0)
	for rows.Next() {
		var (
			rec              entity.AnalysisRecord
			id, flow, status string
			uid, result      sql.NullString
			created          int64
		)
		if err := rows.Scan(&id, &uid, &flow, &rec.Source, &status, &result, &rec.ErrorKind, &rec.ErrorMessage, &created); err != nil {
			return nil, common.KindError(common.ErrDatabase, err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, common.KindError(common.ErrDatabase, err)
		}
		rec.ID = parsed
		if uid.Valid {
			if u, err := uuid.Parse(uid.String); err == nil {
				rec.UserID = &u
			}
		}
		rec.Flow = constants.Flow(flow)
		rec.Status = constants.AnalysisStatus(status)
		if result.Valid {
			rec.Result = json.RawMessage(result.String)
		}
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.KindError(common.ErrDatabase, err)
	}
	return out, nil
}
