package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"go.ngs.io/rectify/internal/adapter/store"
	"go.ngs.io/rectify/internal/domain"
	"go.ngs.io/rectify/internal/pkg/metrics"
	"go.ngs.io/rectify/internal/rectify"
)

// RectifyRequest encapsulates a rectification of a stored dataset.
type RectifyRequest struct {
	// Source dataset and where to write the result. An empty OutputID
	// generates one.
	DatasetID string `json:"dataset_id" binding:"required"`
	OutputID  string `json:"output_id"`
	Replace   bool   `json:"replace"`

	// Variable and coordinate selection; empty values are auto-detected.
	Vars  []string `json:"vars"`
	XName string   `json:"x_name"`
	YName string   `json:"y_name"`

	// Explicit output grid. BBox requires Res; Res alone keeps the source
	// extent.
	BBox *domain.BBox `json:"bbox"`
	Res  float64      `json:"res"`

	// Inferred output grid tuning, used when Res is zero.
	Oversampling float64 `json:"oversampling"`
	DenomX       int     `json:"denom_x"`
	DenomY       int     `json:"denom_y"`

	// Delta is the point-in-triangle tolerance; zero uses the default.
	Delta float64 `json:"delta"`
	// Fill replaces unmapped pixels; nil leaves them NaN.
	Fill *float64 `json:"fill"`
}

// RectifyResponse describes a finished rectification.
type RectifyResponse struct {
	DatasetID     string            `json:"dataset_id"`
	OutputID      string            `json:"output_id,omitempty"`
	Empty         bool              `json:"empty"`
	Geometry      *domain.ImageGeom `json:"geometry,omitempty"`
	Vars          []string          `json:"vars,omitempty"`
	LonNormalized bool              `json:"lon_normalized"`
	CacheHit      bool              `json:"cache_hit"`
	Coverage      float64           `json:"coverage"`
}

// Defaults are applied to request fields left at zero.
type Defaults struct {
	Delta        float64
	Workers      int
	Oversampling float64
}

// RectifyUseCase orchestrates dataset rectification.
type RectifyUseCase struct {
	store    store.DataStore
	cache    store.PixelMapCache
	defaults Defaults
	log      *slog.Logger

	// inflight collapses concurrent computations of the same pixel map.
	inflight singleflight.Group
}

// NewRectifyUseCase creates a new rectification use case. cache may be nil.
func NewRectifyUseCase(ds store.DataStore, cache store.PixelMapCache, defaults Defaults) *RectifyUseCase {
	if defaults.Workers < 1 {
		defaults.Workers = 1
	}
	if defaults.Oversampling <= 0 {
		defaults.Oversampling = 1.0
	}
	return &RectifyUseCase{
		store:    ds,
		cache:    cache,
		defaults: defaults,
		log:      slog.Default().With("component", "rectify"),
	}
}

// Validate checks if the request is valid.
func (r *RectifyRequest) Validate() error {
	if r.DatasetID == "" {
		return fmt.Errorf("%w: dataset_id is required", domain.ErrValidation)
	}
	if r.Res < 0 || math.IsNaN(r.Res) || math.IsInf(r.Res, 0) {
		return fmt.Errorf("%w: res must be positive, got %g", domain.ErrValidation, r.Res)
	}
	if r.Oversampling < 0 || math.IsNaN(r.Oversampling) {
		return fmt.Errorf("%w: oversampling must be positive, got %g", domain.ErrValidation, r.Oversampling)
	}
	if r.DenomX < 0 || r.DenomY < 0 {
		return fmt.Errorf("%w: denominators must be positive, got %d, %d", domain.ErrValidation, r.DenomX, r.DenomY)
	}
	if r.Delta < 0 || math.IsNaN(r.Delta) {
		return fmt.Errorf("%w: delta must not be negative, got %g", domain.ErrValidation, r.Delta)
	}
	if r.BBox != nil {
		if err := r.BBox.Validate(); err != nil {
			return err
		}
		if r.Res == 0 {
			return fmt.Errorf("%w: bbox requires res", domain.ErrValidation)
		}
	}
	return nil
}

// Execute rectifies the requested dataset and stores the result.
func (uc *RectifyUseCase) Execute(ctx context.Context, req RectifyRequest) (*RectifyResponse, error) {
	start := time.Now()
	resp, err := uc.execute(ctx, req)
	metrics.RectifyDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.Rectifications.WithLabelValues("error").Inc()
		uc.log.Warn("rectification failed", "dataset", req.DatasetID, "error", err)
	case resp.Empty:
		metrics.Rectifications.WithLabelValues("empty").Inc()
		uc.log.Info("no intersection with output grid", "dataset", req.DatasetID)
	default:
		metrics.Rectifications.WithLabelValues("ok").Inc()
		uc.log.Info("rectified dataset",
			"dataset", resp.DatasetID,
			"output", resp.OutputID,
			"width", resp.Geometry.Width,
			"height", resp.Geometry.Height,
			"res", resp.Geometry.Res,
			"vars", len(resp.Vars),
			"cache_hit", resp.CacheHit,
			"duration", time.Since(start))
	}
	return resp, err
}

func (uc *RectifyUseCase) execute(ctx context.Context, req RectifyRequest) (*RectifyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	src, err := uc.store.Open(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	gc, err := rectify.NewGeoCoding(src, req.XName, req.YName)
	if err != nil {
		return nil, err
	}

	delta := req.Delta
	if delta == 0 {
		delta = uc.defaults.Delta
	}
	fill := math.NaN()
	if req.Fill != nil {
		fill = *req.Fill
	}
	opts := rectify.Options{
		VarNames:    req.Vars,
		GeoCoding:   gc,
		GeomOptions: uc.geomOptions(req.Oversampling, req.DenomX, req.DenomY),
		Delta:       delta,
		UsePixelMap: true,
		FillValue:   fill,
		Workers:     uc.defaults.Workers,
	}
	if req.Res > 0 {
		geom, err := rectify.BBoxGeom(gc, req.BBox, req.Res, opts.GeomOptions)
		if err != nil {
			return nil, err
		}
		opts.OutputGeom = &geom
	}

	p, err := rectify.Prepare(src, opts)
	if err != nil {
		return nil, err
	}
	resp := &RectifyResponse{DatasetID: req.DatasetID, LonNormalized: gc.IsLonNormalized}
	if p == nil {
		resp.Empty = true
		return resp, nil
	}

	pm, hit, err := uc.pixelMap(ctx, p)
	if err != nil {
		return nil, err
	}
	out, err := p.RectifyWith(ctx, pm)
	if err != nil {
		return nil, err
	}
	id, err := uc.store.Write(ctx, req.OutputID, out, req.Replace)
	if err != nil {
		return nil, err
	}

	geom := p.Geom
	resp.OutputID = id
	resp.Geometry = &geom
	resp.CacheHit = hit
	resp.Coverage = float64(pm.Coverage()) / float64(geom.Width*geom.Height)
	for _, v := range p.Vars {
		resp.Vars = append(resp.Vars, v.Name)
	}
	return resp, nil
}

// pixelMap returns the cached map of p, computing and caching it on a miss.
// Concurrent misses on one key share a single computation. Cache failures
// are logged and never fail the rectification.
func (uc *RectifyUseCase) pixelMap(ctx context.Context, p *rectify.Prepared) (*rectify.PixelMap, bool, error) {
	key := store.PixelMapKey(p.GeoCoding, p.Geom, p.Delta(), false)
	if uc.cache != nil {
		pm, ok, err := uc.cache.Get(ctx, key)
		if err != nil {
			uc.log.Warn("pixel map cache read failed", "key", key, "error", err)
		}
		if ok && pm.Width == p.Geom.Width && pm.Height == p.Geom.Height {
			metrics.CacheHits.Inc()
			return pm, true, nil
		}
		metrics.CacheMisses.Inc()
	}

	v, err, _ := uc.inflight.Do(key, func() (any, error) {
		pm, err := p.PixelMap(false)
		if err != nil {
			return nil, err
		}
		if uc.cache != nil {
			if err := uc.cache.Put(ctx, key, pm); err != nil {
				uc.log.Warn("pixel map cache write failed", "key", key, "error", err)
			}
		}
		return pm, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*rectify.PixelMap), false, nil
}

func (uc *RectifyUseCase) geomOptions(oversampling float64, denomX, denomY int) rectify.GeomOptions {
	opts := rectify.DefaultGeomOptions()
	opts.Oversampling = uc.defaults.Oversampling
	if oversampling > 0 {
		opts.Oversampling = oversampling
	}
	if denomX > 0 {
		opts.DenomX = denomX
	}
	if denomY > 0 {
		opts.DenomY = denomY
	}
	return opts
}

// GeometryRequest selects the coordinates and tunes the inferred grid.
type GeometryRequest struct {
	Vars         []string `form:"vars"`
	XName        string   `form:"x_name"`
	YName        string   `form:"y_name"`
	Oversampling float64  `form:"oversampling"`
	DenomX       int      `form:"denom_x"`
	DenomY       int      `form:"denom_y"`
}

// GeometryResponse summarizes the coordinates of a dataset and the output
// grid a rectification would use.
type GeometryResponse struct {
	DatasetID     string           `json:"dataset_id"`
	XName         string           `json:"x_name"`
	YName         string           `json:"y_name"`
	SourceWidth   int              `json:"source_width"`
	SourceHeight  int              `json:"source_height"`
	LonNormalized bool             `json:"lon_normalized"`
	BBox          domain.BBox      `json:"bbox"`
	Geometry      domain.ImageGeom `json:"geometry"`
	Vars          []string         `json:"vars"`
}

// Geometry reports the coordinates of a stored dataset and its inferred
// output grid.
func (uc *RectifyUseCase) Geometry(ctx context.Context, id string, req GeometryRequest) (*GeometryResponse, error) {
	if id == "" {
		return nil, fmt.Errorf("invalid request: %w: dataset id is required", domain.ErrValidation)
	}
	if req.Oversampling < 0 || req.DenomX < 0 || req.DenomY < 0 {
		return nil, fmt.Errorf("invalid request: %w: oversampling and denominators must be positive", domain.ErrValidation)
	}

	src, err := uc.store.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := rectify.Prepare(src, rectify.Options{
		VarNames:    req.Vars,
		XName:       req.XName,
		YName:       req.YName,
		GeomOptions: uc.geomOptions(req.Oversampling, req.DenomX, req.DenomY),
	})
	if err != nil {
		return nil, err
	}

	resp := &GeometryResponse{
		DatasetID:     id,
		XName:         p.GeoCoding.XName,
		YName:         p.GeoCoding.YName,
		SourceWidth:   p.GeoCoding.Width(),
		SourceHeight:  p.GeoCoding.Height(),
		LonNormalized: p.GeoCoding.IsLonNormalized,
		BBox:          p.Geom.BBox(),
		Geometry:      p.Geom,
		Vars:          []string{},
	}
	for _, v := range p.Vars {
		resp.Vars = append(resp.Vars, v.Name)
	}
	return resp, nil
}

// ListDatasets returns the ids of all stored datasets.
func (uc *RectifyUseCase) ListDatasets(ctx context.Context) ([]string, error) {
	return uc.store.List(ctx)
}
