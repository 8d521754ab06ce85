package source

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/pleiade/zoneshare/internal/db"
)

// validIdent guards table and column names that are interpolated into SQL.
var validIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SplitTable splits "schema.table" (schema defaults to public) and validates
// both parts.
func SplitTable(name string) (schema, table string, err error) {
	schema, table = "public", name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		schema, table = name[:i], name[i+1:]
	}
	if !validIdent.MatchString(schema) || !validIdent.MatchString(table) {
		return "", "", eris.Errorf("invalid table name %q", name)
	}
	return schema, table, nil
}

func loadPostGIS(ctx context.Context, pool db.Pool, s Spec) (*Collection, error) {
	schema, table, err := SplitTable(s.Table)
	if err != nil {
		return nil, unavailable(err, "source: %s", s.Name)
	}
	geomCol := s.GeomColumn
	if geomCol == "" {
		geomCol = "geom"
	}
	if !validIdent.MatchString(geomCol) {
		return nil, unavailable(nil, "source: %s: invalid geometry column %q", s.Name, geomCol)
	}

	c := &Collection{}

	cols, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, unavailable(err, "source: %s: query columns", s.Name)
	}
	hasGeom := false
	for cols.Next() {
		var name string
		if err := cols.Scan(&name); err != nil {
			cols.Close()
			return nil, unavailable(err, "source: %s: scan column", s.Name)
		}
		if name == geomCol {
			hasGeom = true
			continue
		}
		c.Fields = append(c.Fields, name)
	}
	cols.Close()
	if err := cols.Err(); err != nil {
		return nil, unavailable(err, "source: %s: iterate columns", s.Name)
	}
	if !hasGeom {
		return nil, unavailable(nil, "source: %s: table %s.%s has no column %s", s.Name, schema, table, geomCol)
	}

	var srid int
	if err := pool.QueryRow(ctx, `SELECT Find_SRID($1, $2, $3)`, schema, table, geomCol).Scan(&srid); err != nil {
		return nil, unavailable(err, "source: %s: find srid", s.Name)
	}
	c.CRS = CRS{SRID: srid}

	var proj4 string
	err = pool.QueryRow(ctx, `SELECT COALESCE(proj4text, '') FROM spatial_ref_sys WHERE srid = $1`, srid).Scan(&proj4)
	switch {
	case err == nil:
		c.CRS.Definition = strings.TrimSpace(proj4)
	case eris.Is(err, pgx.ErrNoRows):
	default:
		return nil, unavailable(err, "source: %s: spatial_ref_sys", s.Name)
	}

	ident := pgx.Identifier{schema, table}.Sanitize()
	rows, err := pool.Query(ctx, fmt.Sprintf(
		`SELECT ST_AsBinary(t.%s), (to_jsonb(t) - $1)::text FROM %s t`,
		pgx.Identifier{geomCol}.Sanitize(), ident,
	), geomCol)
	if err != nil {
		return nil, unavailable(err, "source: %s: query features", s.Name)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		var props string
		if err := rows.Scan(&raw, &props); err != nil {
			return nil, unavailable(err, "source: %s: scan feature", s.Name)
		}
		if len(raw) == 0 {
			continue
		}
		g, err := wkb.Unmarshal(raw)
		if err != nil {
			return nil, unavailable(err, "source: %s: decode wkb", s.Name)
		}
		if !isPolygonal(g) {
			continue
		}

		var m map[string]any
		if err := json.Unmarshal([]byte(props), &m); err != nil {
			return nil, unavailable(err, "source: %s: decode properties", s.Name)
		}
		attrs := make(map[string]string, len(m))
		for k, v := range m {
			attrs[k] = stringify(v)
		}
		c.Features = append(c.Features, Feature{Attrs: attrs, Geom: g})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "source: %s: iterate features", s.Name)
	}

	return c, nil
}
