package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFromSchema bulk-inserts rows into a schema-qualified table using the
// PostgreSQL COPY protocol.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}
	return n, nil
}

// CopyFromFunc streams n rows built by next into schema.table, so large
// collections never need a second in-memory row slice.
func CopyFromFunc(ctx context.Context, pool Pool, schema, table string, columns []string, n int, next func(i int) ([]any, error)) (int64, error) {
	if n == 0 {
		return 0, nil
	}

	copied, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromSlice(n, next))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}
	return copied, nil
}
