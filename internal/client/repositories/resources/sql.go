package resources

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

const table = "resources"

var columns = []string{
	"identifier", "account_key", "remote_id", "date", "filename",
	"uri", "local_uri", "mime_type", "memo_id",
}

type SQLRepository struct {
	db dbx.DBTX
	sb sq.StatementBuilderType
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, sb: dialect.Builder()}
}

func (r *SQLRepository) GetByID(ctx context.Context, id, accountKey string) (*models.Resource, error) {
	q, args, err := r.sb.Select(columns...).From(table).
		Where(sq.Eq{"identifier": id, "account_key": accountKey}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	res, err := scanResource(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resource %s: %w", id, err)
	}
	return res, nil
}

func (r *SQLRepository) GetAll(ctx context.Context, accountKey string) ([]*models.Resource, error) {
	return r.list(ctx, r.sb.Select(columns...).From(table).
		Where(sq.Eq{"account_key": accountKey}).
		OrderBy("date DESC", "identifier"))
}

func (r *SQLRepository) GetByMemoID(ctx context.Context, memoID, accountKey string) ([]*models.Resource, error) {
	return r.list(ctx, r.sb.Select(columns...).From(table).
		Where(sq.Eq{"memo_id": memoID, "account_key": accountKey}).
		OrderBy("date", "identifier"))
}

func (r *SQLRepository) Upsert(ctx context.Context, res *models.Resource) error {
	q, args, err := r.sb.Insert(table).Columns(columns...).
		Values(
			res.Identifier, res.AccountKey, dbx.NullString(res.RemoteID), dbx.Millis(res.Date),
			res.Filename, res.URI, res.LocalURI, res.MimeType, dbx.NullStringPtr(res.MemoID),
		).
		Suffix(`ON CONFLICT (identifier, account_key) DO UPDATE SET
			remote_id = excluded.remote_id,
			date = excluded.date,
			filename = excluded.filename,
			uri = excluded.uri,
			local_uri = excluded.local_uri,
			mime_type = excluded.mime_type,
			memo_id = excluded.memo_id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to upsert resource %s: %w", res.Identifier, err)
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
		return fmt.Errorf("failed to delete resource %s: %w", id, err)
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

func (r *SQLRepository) ReassignMemo(ctx context.Context, fromMemoID, toMemoID, accountKey string) (int64, error) {
	q, args, err := r.sb.Update(table).
		Set("memo_id", toMemoID).
		Where(sq.Eq{"memo_id": fromMemoID, "account_key": accountKey}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign resources of %s: %w", fromMemoID, err)
	}
	return res.RowsAffected()
}

func (r *SQLRepository) list(ctx context.Context, b sq.SelectBuilder) ([]*models.Resource, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select resources: %w", err)
	}
	defer rows.Close()

	var result []*models.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resource rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(s scanner) (*models.Resource, error) {
	var (
		res      models.Resource
		remoteID sql.NullString
		memoID   sql.NullString
		date     int64
	)
	if err := s.Scan(
		&res.Identifier, &res.AccountKey, &remoteID, &date, &res.Filename,
		&res.URI, &res.LocalURI, &res.MimeType, &memoID,
	); err != nil {
		return nil, err
	}

	res.RemoteID = remoteID.String
	res.Date = dbx.FromMillis(date)
	res.MemoID = dbx.FromNullStringPtr(memoID)
	return &res, nil
}
