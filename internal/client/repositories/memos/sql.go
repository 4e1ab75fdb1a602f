package memos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/memosync/internal/client/models"
	"github.com/dmitrijs2005/memosync/internal/common"
	"github.com/dmitrijs2005/memosync/internal/dbx"
)

const table = "memos"

var columns = []string{
	"identifier", "account_key", "remote_id", "content", "date", "visibility",
	"creator_id", "creator_name", "pinned", "archived", "is_deleted", "needs_sync",
	"last_modified", "last_synced_at",
}

// SQLRepository implements Repository over a DBTX for any supported dialect.
type SQLRepository struct {
	db dbx.DBTX
	sb sq.StatementBuilderType
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, sb: dialect.Builder()}
}

func (r *SQLRepository) GetByID(ctx context.Context, id, accountKey string) (*models.Memo, error) {
	return r.getOne(ctx, sq.Eq{"identifier": id, "account_key": accountKey})
}

func (r *SQLRepository) GetByRemoteID(ctx context.Context, remoteID, accountKey string) (*models.Memo, error) {
	return r.getOne(ctx, sq.Eq{"remote_id": remoteID, "account_key": accountKey})
}

func (r *SQLRepository) GetAll(ctx context.Context, accountKey string) ([]*models.Memo, error) {
	q := r.sb.Select(columns...).From(table).
		Where(sq.Eq{"account_key": accountKey, "is_deleted": false, "archived": false}).
		OrderBy("pinned DESC", "date DESC", "identifier")
	return r.list(ctx, q)
}

func (r *SQLRepository) GetArchived(ctx context.Context, accountKey string) ([]*models.Memo, error) {
	q := r.sb.Select(columns...).From(table).
		Where(sq.Eq{"account_key": accountKey, "is_deleted": false, "archived": true}).
		OrderBy("date DESC", "identifier")
	return r.list(ctx, q)
}

func (r *SQLRepository) GetAllForSync(ctx context.Context, accountKey string) ([]*models.Memo, error) {
	q := r.sb.Select(columns...).From(table).
		Where(sq.Eq{"account_key": accountKey}).
		OrderBy("date", "identifier")
	return r.list(ctx, q)
}

func (r *SQLRepository) Upsert(ctx context.Context, m *models.Memo) error {
	q, args, err := r.sb.Insert(table).Columns(columns...).
		Values(
			m.Identifier, m.AccountKey, dbx.NullString(m.RemoteID), m.Content,
			dbx.Millis(m.Date), string(m.Visibility), m.CreatorID, m.CreatorName,
			m.Pinned, m.Archived, m.IsDeleted, m.NeedsSync,
			dbx.Millis(m.LastModified), dbx.NullMillis(m.LastSyncedAt),
		).
		Suffix(`ON CONFLICT (identifier, account_key) DO UPDATE SET
			remote_id = excluded.remote_id,
			content = excluded.content,
			date = excluded.date,
			visibility = excluded.visibility,
			creator_id = excluded.creator_id,
			creator_name = excluded.creator_name,
			pinned = excluded.pinned,
			archived = excluded.archived,
			is_deleted = excluded.is_deleted,
			needs_sync = excluded.needs_sync,
			last_modified = excluded.last_modified,
			last_synced_at = excluded.last_synced_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to upsert memo %s: %w", m.Identifier, err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id, accountKey string) error {
	q, args, err := r.sb.Delete(table).
		Where(sq.Eq{"identifier": id, "account_key": accountKey}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to delete memo %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) CountPending(ctx context.Context, accountKey string) (int, error) {
	q, args, err := r.sb.Select("COUNT(*)").From(table).
		Where(sq.Eq{"account_key": accountKey, "needs_sync": true}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending memos: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) getOne(ctx context.Context, where sq.Eq) (*models.Memo, error) {
	q, args, err := r.sb.Select(columns...).From(table).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	m, err := scanMemo(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read memo: %w", err)
	}
	return m, nil
}

func (r *SQLRepository) list(ctx context.Context, b sq.SelectBuilder) ([]*models.Memo, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select memos: %w", err)
	}
	defer rows.Close()

	var result []*models.Memo
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memo row: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memo rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemo(s scanner) (*models.Memo, error) {
	var (
		m            models.Memo
		remoteID     sql.NullString
		visibility   string
		date, mod    int64
		lastSyncedAt sql.NullInt64
	)
	err := s.Scan(
		&m.Identifier, &m.AccountKey, &remoteID, &m.Content, &date, &visibility,
		&m.CreatorID, &m.CreatorName, &m.Pinned, &m.Archived, &m.IsDeleted, &m.NeedsSync,
		&mod, &lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	m.RemoteID = remoteID.String
	m.Visibility = models.Visibility(visibility)
	m.Date = dbx.FromMillis(date)
	m.LastModified = dbx.FromMillis(mod)
	m.LastSyncedAt = dbx.FromNullMillis(lastSyncedAt)
	return &m, nil
}
