package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageWindow normalises page/size and returns the SQL LIMIT and OFFSET.
func pageWindow(page, size int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return size, (page - 1) * size
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// execAffecting runs a statement and returns sql.ErrNoRows when it touched nothing.
func execAffecting(ctx context.Context, db execer, op, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
