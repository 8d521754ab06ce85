// Package analysis answers, for one parcel identifier, which share of the
// parcel falls in each zone of every configured reference layer.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pleiade/zoneshare/internal/catalog"
	"github.com/pleiade/zoneshare/internal/config"
	"github.com/pleiade/zoneshare/internal/crs"
	"github.com/pleiade/zoneshare/internal/overlay"
	"github.com/pleiade/zoneshare/internal/parcel"
	"github.com/pleiade/zoneshare/internal/report"
	"github.com/pleiade/zoneshare/internal/source"
)

// Loader loads a geometry collection.
type Loader interface {
	Load(ctx context.Context, s source.Spec) (*source.Collection, error)
}

// Recorder observes query and layer outcomes.
type Recorder interface {
	ObserveQuery(outcome string, d time.Duration)
	ObserveLayer(layer, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string, time.Duration)         {}
func (nopRecorder) ObserveLayer(string, string, time.Duration) {}

// Outcome labels passed to a Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithCatalog sets the zone catalog of a layer, replacing the configured one.
func WithCatalog(layer string, c *catalog.Catalog) Option {
	return func(a *Analyzer) {
		a.catalogs[layer] = c
	}
}

// Analyzer runs queries. It holds no per-query state: every call to Analyze
// loads its sources again.
type Analyzer struct {
	parcels    source.Spec
	layers     []config.LayerConfig
	loader     Loader
	locator    *parcel.Locator
	normalizer *crs.Normalizer
	engine     *overlay.Engine
	catalogs   map[string]*catalog.Catalog
	recorder   Recorder
}

// New creates an Analyzer from cfg. Zone catalogs named in the layer
// configuration are read once here.
func New(cfg *config.Config, loader Loader, opts ...Option) (*Analyzer, error) {
	normalizer, err := crs.NewNormalizer(
		crs.WithFallback(cfg.Projection.FallbackSRID),
		crs.WithDefinitions(cfg.Projection.Definitions),
		crs.WithCacheSize(cfg.Projection.CacheSize),
	)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: normalizer")
	}

	var locOpts []parcel.Option
	if cfg.Parcels.RejectDuplicates {
		locOpts = append(locOpts, parcel.RejectDuplicates())
	}

	a := &Analyzer{
		parcels:    source.SpecFromConfig("parcels", cfg.Parcels.Source),
		layers:     cfg.Layers,
		loader:     loader,
		locator:    parcel.NewLocator(parcel.Fields{ID: cfg.Parcels.IDField, Name: cfg.Parcels.NameField}, locOpts...),
		normalizer: normalizer,
		engine:     overlay.NewEngine(),
		catalogs:   make(map[string]*catalog.Catalog, len(cfg.Layers)),
		recorder:   nopRecorder{},
	}

	for _, l := range cfg.Layers {
		c, err := catalog.Load(l.Catalog)
		if err != nil {
			return nil, eris.Wrapf(err, "analysis: catalog for layer %s", l.Name)
		}
		a.catalogs[l.Name] = c
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze computes the zone shares of parcel id against every reference
// layer. A failing optional layer is reported inside the result; a failing
// required layer fails the query with a *QueryError whose Partial field holds
// the other layers.
func (a *Analyzer) Analyze(ctx context.Context, id string) (*Result, error) {
	start := time.Now()
	queryID := uuid.New().String()
	log := zap.L().With(
		zap.String("component", "analysis"),
		zap.String("query_id", queryID),
		zap.String("parcel", id),
	)

	res, err := a.analyze(ctx, queryID, id, log)
	outcome := OutcomeOK
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		log.Warn("query failed", zap.String("kind", outcome), zap.Error(err))
	} else {
		log.Info("query complete",
			zap.Float64("parcel_area_ha", res.ParcelAreaHa),
			zap.Int("layers", len(res.Layers)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	a.recorder.ObserveQuery(outcome, time.Since(start))
	return res, err
}

func (a *Analyzer) analyze(ctx context.Context, queryID, id string, log *zap.Logger) (*Result, error) {
	if id == "" {
		return nil, newQueryError(KindInvalidIdentifier, "", parcel.ErrEmptyIdentifier)
	}

	parcels, layers, err := a.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.locator.Check(parcels); err != nil {
		return nil, newQueryError(KindSourceUnavailable, parcels.Name, err)
	}
	schemaErrs := a.checkLayers(layers)

	p, err := a.locator.Locate(parcels, id)
	if err != nil {
		return nil, newQueryError(classify(err, KindParcelNotFound), "", err)
	}
	log.Debug("parcel located", zap.String("name", p.Name), zap.String("crs", p.CRS.String()))

	areaHa, err := a.parcelArea(p)
	if err != nil {
		return nil, err
	}

	reports := make([]LayerReport, len(a.layers))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range a.layers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			layerStart := time.Now()
			reports[i] = a.layerReport(p, areaHa, l, layers[i], schemaErrs[i])
			a.recorder.ObserveLayer(l.Name, layerOutcome(&reports[i]), time.Since(layerStart))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "analysis: layers")
	}

	res := &Result{
		QueryID:      queryID,
		ParcelID:     p.ID,
		ParcelName:   p.Name,
		ParcelAreaHa: areaHa,
		Layers:       reports,
	}

	for _, r := range reports {
		if r.Required && r.Error != nil {
			qe := *r.Error
			qe.Partial = res
			return nil, &qe
		}
	}
	return res, nil
}

// loadAll loads the parcel collection and every reference layer concurrently.
// Any unavailable source aborts the query.
func (a *Analyzer) loadAll(ctx context.Context) (*source.Collection, []*source.Collection, error) {
	var parcels *source.Collection
	layers := make([]*source.Collection, len(a.layers))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := a.loader.Load(gctx, a.parcels)
		if err != nil {
			return newQueryError(KindSourceUnavailable, a.parcels.Name, err)
		}
		parcels = c
		return nil
	})
	for i, l := range a.layers {
		g.Go(func() error {
			c, err := a.loader.Load(gctx, source.SpecFromConfig(l.Name, l.Source))
			if err != nil {
				return newQueryError(KindSourceUnavailable, l.Name, err)
			}
			layers[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if _, ok := AsQueryError(err); ok {
			return nil, nil, err
		}
		return nil, nil, newQueryError(KindSourceUnavailable, "", err)
	}
	return parcels, layers, nil
}

// parcelArea measures the parcel once, in its own system when that is planar
// and in the fallback system otherwise. Every layer divides by this value.
func (a *Analyzer) parcelArea(p *parcel.Parcel) (float64, error) {
	target := p.CRS
	projected, err := a.normalizer.IsProjected(p.CRS)
	if err != nil {
		return 0, newQueryError(classify(err, KindProjectionFailed), "", err)
	}
	if !projected {
		target = a.normalizer.Fallback()
	}

	g, err := a.normalizer.Align(p.Geom, p.CRS, target)
	if err != nil {
		return 0, newQueryError(classify(err, KindProjectionFailed), "", err)
	}
	areaHa, err := overlay.ParcelAreaHa(g)
	if err != nil {
		return 0, newQueryError(KindInvalidGeometry, "", err)
	}
	if areaHa <= 0 {
		return 0, newQueryError(KindInvalidGeometry, "", eris.Wrapf(report.ErrZeroArea, "analysis: parcel %s", p.ID))
	}
	return areaHa, nil
}

// checkLayers verifies that each layer carries its classification field.
func (a *Analyzer) checkLayers(layers []*source.Collection) []*QueryError {
	errs := make([]*QueryError, len(layers))
	for i, l := range a.layers {
		if _, ok := layers[i].Field(l.ClassField); ok {
			continue
		}
		errs[i] = &QueryError{
			Kind:    KindMissingClassificationField,
			Layer:   l.Name,
			Message: fmt.Sprintf("expected classification field %q not found", l.ClassField),
			Err:     eris.Wrapf(source.ErrSchemaMismatch, "analysis: layer %s", l.Name),
		}
	}
	return errs
}

// layerReport runs normalize, overlay and aggregate for one layer against the
// shared parcel area. It never returns an error; failures are recorded in the
// report.
func (a *Analyzer) layerReport(p *parcel.Parcel, areaHa float64, l config.LayerConfig, layer *source.Collection, schemaErr *QueryError) LayerReport {
	r := LayerReport{
		Name:     l.Name,
		Required: l.Required,
		Shares:   []report.ZoneShare{},
		Classes:  []string{},
	}
	if schemaErr != nil {
		r.Error = schemaErr
		return r
	}
	fail := func(fallback Kind, err error) LayerReport {
		r.Error = newQueryError(classify(err, fallback), l.Name, err)
		return r
	}

	norm, err := a.normalizer.Normalize(layer)
	if err != nil {
		return fail(KindProjectionFailed, err)
	}
	r.CRS = norm.CRS.String()

	pg, err := a.normalizer.Align(p.Geom, p.CRS, norm.CRS)
	if err != nil {
		return fail(KindProjectionFailed, err)
	}

	pieces, err := a.engine.Overlay(pg, norm, l.ClassField)
	if err != nil {
		return fail(KindInvalidGeometry, err)
	}

	if len(pieces) == 0 {
		r.Empty = true
		if l.Required {
			r.Message = fmt.Sprintf("parcel does not intersect any zone of layer %s", l.Name)
			r.Error = &QueryError{Kind: KindNoZoningIntersection, Layer: l.Name, Message: r.Message}
			return r
		}
		r.Message = l.EmptyMessage
		if r.Message == "" {
			r.Message = DefaultEmptyMessage
		}
		return r
	}

	shares, err := report.Aggregate(areaHa, pieces)
	if err != nil {
		return fail(KindInvalidGeometry, err)
	}
	r.Shares = shares
	r.Classes = report.Classes(shares)
	r.Descriptions = a.catalogs[l.Name].DescribeAll(r.Classes)
	return r
}

func layerOutcome(r *LayerReport) string {
	switch {
	case r.Error != nil:
		return string(r.Error.Kind)
	case r.Empty:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}
