package importer

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/pleiade/zoneshare/internal/crs"
	"github.com/pleiade/zoneshare/internal/source"
)

func square(x, y, size float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x, y, x, y + size, x + size, y + size, x + size, y, x, y,
	}, []int{10})
}

func zee(t *testing.T) *source.Collection {
	t.Helper()
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(square(20, 0, 10)))
	return &source.Collection{
		Name:   "zee",
		Fields: []string{"ZONA", "Descrição"},
		CRS:    source.CRS{SRID: 31982},
		Features: []source.Feature{
			{Attrs: map[string]string{"ZONA": "A1", "Descrição": "consolidada"}, Geom: square(0, 0, 10)},
			{Attrs: map[string]string{"ZONA": "B2"}, Geom: mp},
		},
	}
}

func expectImport(mock pgxmock.PgxPoolIface, replace bool, rows int64) {
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "zoning"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	if replace {
		mock.ExpectExec(`DROP TABLE IF EXISTS "zoning"."zee"`).WillReturnResult(pgxmock.NewResult("DROP", 0))
	}
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "zoning"."zee"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "zee_geom_idx"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"zoning", "zee"}, []string{"zona", "descri_o", "geom"}).WillReturnResult(rows)
	mock.ExpectExec(`ANALYZE "zoning"."zee"`).WillReturnResult(pgxmock.NewResult("ANALYZE", 0))
	mock.ExpectCommit()
}

func TestImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectImport(mock, false, 2)

	n, err := New(mock, nil).Import(context.Background(), zee(t), Options{Table: "zoning.zee"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_Replace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectImport(mock, true, 2)

	_, err = New(mock, nil).Import(context.Background(), zee(t), Options{Table: "zoning.zee", Replace: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_CopyFailsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE SCHEMA`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"zoning", "zee"}, []string{"zona", "descri_o", "geom"}).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = New(mock, nil).Import(context.Background(), zee(t), Options{Table: "zoning.zee"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO zoning.zee")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_InvalidTable(t *testing.T) {
	_, err := New(nil, nil).Import(context.Background(), zee(t), Options{Table: "zee; DROP TABLE car"})
	require.Error(t, err)
}

func TestImport_ReprojectWithoutNormalizer(t *testing.T) {
	_, err := New(nil, nil).Import(context.Background(), zee(t), Options{Table: "zee", SRID: 4674})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a normalizer")
}

func TestPrepare(t *testing.T) {
	geoms, srid, err := New(nil, nil).prepare(zee(t), 0)
	require.NoError(t, err)
	assert.Equal(t, 31982, srid)
	require.Len(t, geoms, 2)
	for _, g := range geoms {
		mp, ok := g.(*geom.MultiPolygon)
		require.True(t, ok)
		assert.Equal(t, 31982, mp.SRID())
		assert.Equal(t, 1, mp.NumPolygons())
	}
}

func TestPrepare_Reprojects(t *testing.T) {
	n, err := crs.NewNormalizer()
	require.NoError(t, err)

	c := &source.Collection{
		Name:     "car",
		CRS:      source.CRS{SRID: 4674},
		Features: []source.Feature{{Geom: square(-51, -10, 0.01)}},
	}
	geoms, srid, err := New(nil, n).prepare(c, 31982)
	require.NoError(t, err)
	assert.Equal(t, 31982, srid)

	b := geoms[0].Bounds()
	assert.InDelta(t, 500000, b.Min(0), 1000)
}

func TestColumnNames(t *testing.T) {
	got := ColumnNames([]string{"ZONA", "zona", "Área (ha)", "geom", "2020", "gid", ""})
	assert.Equal(t, []string{"zona", "zona_2", "rea_ha", "geom_2", "f_2020", "gid_2", "f_"}, got)
}
