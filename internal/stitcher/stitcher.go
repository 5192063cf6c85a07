package stitcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/satstitch/pkg/tile"
)

// ErrInvertedBounds is returned by Request.Validate when the top-left corner
// is not north-west of the bottom-right corner.
var ErrInvertedBounds = errors.New("top-left must be north-west of bottom-right")

// Request contains all stitching parameters
type Request struct {
	TopLeft     tile.GeoPoint
	BottomRight tile.GeoPoint
	Zoom        int
	URLTemplate string
	Headers     map[string]string
	TileSize    int
	Channels    int // 3 = RGB, anything else RGBA
}

// Validate checks the request the way boundaries (CLI, HTTP) need it
// checked. Download itself only rejects what it cannot run.
func (r *Request) Validate() error {
	if err := r.TopLeft.Validate(); err != nil {
		return fmt.Errorf("top-left: %w", err)
	}
	if err := r.BottomRight.Validate(); err != nil {
		return fmt.Errorf("bottom-right: %w", err)
	}
	if err := tile.ValidateZoom(r.Zoom); err != nil {
		return err
	}
	if r.TileSize <= 0 {
		return tile.ErrInvalidTileSize
	}
	if err := tile.ValidateChannels(r.Channels); err != nil {
		return err
	}
	if r.TopLeft.Lat < r.BottomRight.Lat || r.TopLeft.Lon > r.BottomRight.Lon {
		return ErrInvertedBounds
	}
	return tile.ValidateTemplate(r.URLTemplate)
}

// Grid resolves the tile and pixel range of the request.
func (r *Request) Grid() tile.Grid {
	return tile.ResolveBounds(r.TopLeft, r.BottomRight, r.Zoom, r.TileSize)
}

// FailedTile represents a single failed tile download
type FailedTile struct {
	Index tile.TileIndex
	URL   string
	Err   error
}

// Result contains the stitching result
type Result struct {
	Raster *tile.Raster
	Grid   tile.Grid
	Zoom   int
	Total  int
	Done   int
	Failed []FailedTile
}

// Succeeded is the number of tiles that were fetched and decoded.
func (r *Result) Succeeded() int {
	return r.Done - len(r.Failed)
}

// Fetcher retrieves one decoded tile
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, channels int) (*tile.Raster, error)
}

// ProgressFunc is called once per processed tile, from a single goroutine
type ProgressFunc func(done, total int)

// Option configures a Stitcher
type Option func(*Stitcher)

// WithWorkers bounds the number of tile rows fetched concurrently.
func WithWorkers(n int) Option {
	return func(s *Stitcher) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithProgress installs a progress hook.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Stitcher) {
		s.onProgress = fn
	}
}

// WithFetcher replaces the tile fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Stitcher) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// Stitcher performs tile stitching operations
type Stitcher struct {
	fetcher    Fetcher
	workers    int
	onProgress ProgressFunc
}

// New creates a new stitcher instance
func New(opts ...Option) *Stitcher {
	s := &Stitcher{
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = tile.NewProcessor()
	}
	return s
}

type outcome struct {
	idx    tile.TileIndex
	url    string
	err    error
	placed bool
}

// Download fetches every tile covering the request and composites them into
// one raster. Tiles that fail to download or decode stay blank and are
// listed in Result.Failed; they never fail the call. An error is returned
// only for parameters that cannot be run and for ctx cancellation, in which
// case the partially filled Result is returned too.
func (s *Stitcher) Download(ctx context.Context, req Request) (*Result, error) {
	if err := tile.ValidateZoom(req.Zoom); err != nil {
		return nil, err
	}
	if req.TileSize <= 0 {
		return nil, tile.ErrInvalidTileSize
	}

	grid := req.Grid()
	if int64(grid.Width)*int64(grid.Height) > tile.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", tile.ErrRasterTooLarge, grid.Width, grid.Height)
	}

	log := tile.Logger()
	log.Info("resolved tile grid",
		"zoom", req.Zoom,
		"top_left_tile", grid.TopLeftTile.String(),
		"bottom_right_tile", grid.BottomRightTile.String(),
		"width", grid.Width,
		"height", grid.Height,
		"tiles", grid.Tiles())

	raster := tile.NewRaster(grid.Width, grid.Height, req.Channels)
	res := &Result{
		Raster: raster,
		Grid:   grid,
		Zoom:   req.Zoom,
		Total:  grid.Tiles(),
	}

	outcomes := make(chan outcome, max(grid.Cols(), 1))
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for o := range outcomes {
			res.Done++
			if o.err != nil {
				res.Failed = append(res.Failed, FailedTile{Index: o.idx, URL: o.url, Err: o.err})
				log.Debug("tile failed", "tile", o.idx.String(), "url", o.url, "error", o.err)
			} else if !o.placed {
				log.Debug("tile outside raster, skipped", "tile", o.idx.String())
			}
			if s.onProgress != nil {
				s.onProgress(res.Done, res.Total)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	origin := grid.Origin()
	for ty := grid.TopLeftTile.Y; ty <= grid.BottomRightTile.Y; ty++ {
		if gctx.Err() != nil {
			break
		}

		y0 := ty*req.TileSize - origin.Y
		band := raster.Band(y0, y0+req.TileSize)

		ty := ty
		g.Go(func() error {
			for tx := grid.TopLeftTile.X; tx <= grid.BottomRightTile.X; tx++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				idx := tile.TileIndex{X: tx, Y: ty}
				url := tile.BuildURL(req.URLTemplate, idx, req.Zoom)

				t, err := s.fetcher.Fetch(gctx, url, req.Headers, req.Channels)
				if err != nil {
					outcomes <- outcome{idx: idx, url: url, err: err}
					continue
				}

				placed := band.Composite(t, idx, req.TileSize, origin)
				outcomes <- outcome{idx: idx, url: url, placed: placed}
			}
			return nil
		})
	}

	err := g.Wait()
	close(outcomes)
	<-consumed

	// Fetches cut short by ctx end up in Failed like any other tile; a run
	// that was not complete when ctx ended is still an interruption.
	if err == nil && (res.Done < res.Total || len(res.Failed) > 0) {
		err = ctx.Err()
	}
	if err != nil {
		return res, fmt.Errorf("download interrupted after %d/%d tiles: %w", res.Done, res.Total, err)
	}

	if res.Total > 0 && len(res.Failed) == res.Total {
		log.Warn("every tile failed, raster is blank", "tiles", res.Total)
	}
	log.Info("download finished", "tiles", res.Total, "failed", len(res.Failed))

	return res, nil
}

// IsInterrupted reports whether err came from ctx cancellation or deadline.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
