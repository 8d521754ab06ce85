package source

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"
)

// loadGeoPackage reads one feature table of an OGC GeoPackage. Spec.Table
// selects the table; otherwise the first registered geometry table is used.
func loadGeoPackage(ctx context.Context, s Spec) (*Collection, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, unavailable(err, "source: %s: stat geopackage", s.Name)
	}

	conn, err := sql.Open("sqlite", "file:"+s.Path+"?mode=ro")
	if err != nil {
		return nil, unavailable(err, "source: %s: open geopackage", s.Name)
	}
	defer conn.Close() //nolint:errcheck

	table, geomCol, srsID, err := gpkgGeometryColumn(ctx, conn, s.Table)
	if err != nil {
		return nil, unavailable(err, "source: %s: geometry columns", s.Name)
	}

	c := &Collection{}
	c.CRS, err = gpkgCRS(ctx, conn, srsID)
	if err != nil {
		return nil, unavailable(err, "source: %s: spatial ref sys", s.Name)
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(table)))
	if err != nil {
		return nil, unavailable(err, "source: %s: query %s", s.Name, table)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, unavailable(err, "source: %s: columns", s.Name)
	}
	geomIdx := -1
	for i, col := range cols {
		if strings.EqualFold(col, geomCol) {
			geomIdx = i
			continue
		}
		c.Fields = append(c.Fields, col)
	}
	if geomIdx < 0 {
		return nil, unavailable(nil, "source: %s: geometry column %s missing from %s", s.Name, geomCol, table)
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, unavailable(err, "source: %s: scan row", s.Name)
		}

		blob, _ := values[geomIdx].([]byte)
		g, err := decodeGeoPackageGeometry(blob)
		if err != nil {
			return nil, unavailable(err, "source: %s: decode geometry", s.Name)
		}
		if g == nil || !isPolygonal(g) {
			continue
		}

		attrs := make(map[string]string, len(cols)-1)
		for i, col := range cols {
			if i == geomIdx {
				continue
			}
			attrs[col] = sqlValueString(values[i])
		}
		c.Features = append(c.Features, Feature{Attrs: attrs, Geom: g})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err, "source: %s: iterate rows", s.Name)
	}

	return c, nil
}

func gpkgGeometryColumn(ctx context.Context, conn *sql.DB, want string) (table, column string, srsID int, err error) {
	q := `SELECT table_name, column_name, srs_id FROM gpkg_geometry_columns`
	args := []any{}
	if want != "" {
		q += ` WHERE table_name = ?`
		args = append(args, want)
	}
	q += ` ORDER BY table_name LIMIT 1`

	if err := conn.QueryRowContext(ctx, q, args...).Scan(&table, &column, &srsID); err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return "", "", 0, eris.Errorf("no geometry table %q", want)
		}
		return "", "", 0, eris.Wrap(err, "query gpkg_geometry_columns")
	}
	return table, column, srsID, nil
}

func gpkgCRS(ctx context.Context, conn *sql.DB, srsID int) (CRS, error) {
	var org string
	var orgID int
	var def sql.NullString
	err := conn.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id, definition FROM gpkg_spatial_ref_sys WHERE srs_id = ?`,
		srsID,
	).Scan(&org, &orgID, &def)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return CRS{}, nil
		}
		return CRS{}, eris.Wrap(err, "query gpkg_spatial_ref_sys")
	}

	c := CRS{}
	if strings.EqualFold(org, "EPSG") && orgID > 0 {
		c.SRID = orgID
	}
	if def.Valid && def.String != "" && def.String != "undefined" {
		c.Definition = def.String
	}
	return c, nil
}

// decodeGeoPackageGeometry strips the GeoPackage binary header ("GP", version,
// flags, srs_id, optional envelope) and decodes the WKB body.
func decodeGeoPackageGeometry(blob []byte) (geom.T, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, eris.New("invalid geopackage geometry header")
	}

	flags := blob[3]
	if flags&0x10 != 0 {
		return nil, nil
	}

	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
		envelope = 0
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, eris.Errorf("invalid envelope indicator in flags 0x%02x", flags)
	}

	offset := 8 + envelope
	if len(blob) < offset {
		return nil, eris.New("truncated geopackage geometry")
	}

	g, err := wkb.Unmarshal(blob[offset:])
	if err != nil {
		return nil, eris.Wrap(err, "unmarshal wkb")
	}
	return g, nil
}

// encodeGeoPackageGeometry builds a header-only (no envelope) GeoPackage blob.
func encodeGeoPackageGeometry(g geom.T, srsID int) ([]byte, error) {
	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "marshal wkb")
	}
	header := make([]byte, 8, 8+len(body))
	header[0], header[1] = 'G', 'P'
	header[2] = 0
	header[3] = 0x01 // little-endian srs_id, no envelope
	binary.LittleEndian.PutUint32(header[4:], uint32(int32(srsID)))
	return append(header, body...), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case float64:
		return stringify(x)
	default:
		return fmt.Sprint(x)
	}
}
