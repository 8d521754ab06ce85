// Package importer copies a loaded geometry collection into a PostGIS table
// so it can later be read back as a postgis source.
package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/crs"
	"github.com/pleiade/zoneshare/internal/db"
	"github.com/pleiade/zoneshare/internal/source"
)

// GeomColumn is the name of the geometry column of imported tables.
const GeomColumn = "geom"

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// Options configures an import.
type Options struct {
	// Table is the target, "schema.table" or "table" (public schema).
	Table string
	// Replace drops an existing table first; otherwise rows are appended.
	Replace bool
	// SRID reprojects geometries before writing; zero keeps the source CRS.
	SRID int
}

// Importer writes collections to PostGIS.
type Importer struct {
	pool       db.Pool
	normalizer *crs.Normalizer
}

// New creates an Importer. normalizer is only needed when Options.SRID asks
// for reprojection.
func New(pool db.Pool, normalizer *crs.Normalizer) *Importer {
	return &Importer{pool: pool, normalizer: normalizer}
}

// Import creates the target table when missing and copies every feature of c
// in one transaction. It returns the number of rows written.
func (im *Importer) Import(ctx context.Context, c *source.Collection, opts Options) (int64, error) {
	schema, table, err := source.SplitTable(opts.Table)
	if err != nil {
		return 0, eris.Wrap(err, "importer")
	}

	geoms, srid, err := im.prepare(c, opts.SRID)
	if err != nil {
		return 0, err
	}
	columns := ColumnNames(c.Fields)

	log := zap.L().With(
		zap.String("component", "importer"),
		zap.String("source", c.Name),
		zap.String("table", schema+"."+table),
	)

	tx, err := im.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "importer: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, stmt := range createStatements(schema, table, columns, srid, opts.Replace) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, eris.Wrapf(err, "importer: %s", firstLine(stmt))
		}
	}

	copyCols := append(append([]string{}, columns...), GeomColumn)
	n, err := db.CopyFromFunc(ctx, tx, schema, table, copyCols, len(c.Features), func(i int) ([]any, error) {
		f := c.Features[i]
		row := make([]any, 0, len(copyCols))
		for _, field := range c.Fields {
			v, ok := f.Attrs[field]
			if !ok {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		data, err := ewkb.Marshal(geoms[i], ewkb.NDR)
		if err != nil {
			return nil, eris.Wrapf(err, "importer: encode feature %d", i)
		}
		return append(row, data), nil
	})
	if err != nil {
		return 0, eris.Wrap(err, "importer")
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("ANALYZE %s", pgx.Identifier{schema, table}.Sanitize())); err != nil {
		return 0, eris.Wrap(err, "importer: analyze")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "importer: commit tx")
	}

	log.Info("imported collection", zap.Int64("rows", n), zap.Int("srid", srid))
	return n, nil
}

// prepare converts every geometry to a MultiPolygon tagged with the target
// SRID, reprojecting when asked to.
func (im *Importer) prepare(c *source.Collection, targetSRID int) ([]geom.T, int, error) {
	from := c.CRS
	srid := from.SRID
	reproject := targetSRID > 0 && targetSRID != from.SRID
	if reproject {
		if im.normalizer == nil {
			return nil, 0, eris.New("importer: reprojection requested without a normalizer")
		}
		srid = targetSRID
	}
	to := source.CRS{SRID: srid}

	out := make([]geom.T, len(c.Features))
	for i, f := range c.Features {
		g := f.Geom
		if reproject {
			var err error
			g, err = im.normalizer.Align(g, from, to)
			if err != nil {
				return nil, 0, eris.Wrapf(err, "importer: reproject feature %d", i)
			}
		}
		mp, err := toMultiPolygon(g)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "importer: feature %d", i)
		}
		if srid > 0 {
			mp.SetSRID(srid)
		}
		out[i] = mp
	}
	return out, srid, nil
}

func toMultiPolygon(g geom.T) (*geom.MultiPolygon, error) {
	switch x := g.(type) {
	case *geom.MultiPolygon:
		return x.Clone(), nil
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(x.Layout())
		if err := mp.Push(x); err != nil {
			return nil, err
		}
		return mp, nil
	default:
		return nil, eris.Errorf("unsupported geometry type %T", g)
	}
}

// ColumnNames maps source field names to lower-case SQL identifiers, keeping
// them unique and away from the geometry column name.
func ColumnNames(fields []string) []string {
	used := map[string]bool{GeomColumn: true, "gid": true}
	out := make([]string, len(fields))
	for i, f := range fields {
		name := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(f), "_"), "_")
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			name = "f_" + name
		}
		base := name
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func createStatements(schema, table string, columns []string, srid int, replace bool) []string {
	ident := pgx.Identifier{schema, table}.Sanitize()

	geomType := "geometry(MultiPolygon)"
	if srid > 0 {
		geomType = fmt.Sprintf("geometry(MultiPolygon, %d)", srid)
	}

	defs := []string{"gid serial PRIMARY KEY"}
	for _, col := range columns {
		defs = append(defs, pgx.Identifier{col}.Sanitize()+" text")
	}
	defs = append(defs, pgx.Identifier{GeomColumn}.Sanitize()+" "+geomType)

	var stmts []string
	stmts = append(stmts, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{schema}.Sanitize()))
	if replace {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", ident))
	}
	stmts = append(stmts,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", ident, strings.Join(defs, ",\n\t")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
			pgx.Identifier{table + "_geom_idx"}.Sanitize(), ident, pgx.Identifier{GeomColumn}.Sanitize()),
	)
	return stmts
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
