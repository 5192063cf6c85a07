package stitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/browser"
	"github.com/schollz/progressbar/v3"

	"github.com/kiesman99/satstitch/internal/stitcher"
	"github.com/kiesman99/satstitch/pkg/tile"
)

// Options controls how a download is run and persisted
type Options struct {
	Output         string // explicit output file, overrides Dir
	Dir            string
	Format         tile.Format
	WriteWorldFile bool
	Open           bool
	Progress       bool
	Workers        int
	Timeout        time.Duration
	Deadline       time.Duration
}

// Stitcher handles the command line download flow
type Stitcher struct {
	options *Options
	stderr  io.Writer
	now     func() time.Time
	open    func(string) error
}

// NewStitcher creates a new stitcher instance
func NewStitcher(opts *Options, stderr io.Writer) *Stitcher {
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Stitcher{
		options: opts,
		stderr:  stderr,
		now:     time.Now,
		open:    browser.OpenFile,
	}
}

// OutputPath returns where the image will be written.
func (s *Stitcher) OutputPath() string {
	if s.options.Output != "" {
		return s.options.Output
	}
	name := fmt.Sprintf("img_%s%s", s.now().Format("20060102150405"), s.options.Format.Ext())
	return filepath.Join(s.options.Dir, name)
}

// Run downloads the requested area and saves it. It returns the path of
// the written image.
func (s *Stitcher) Run(ctx context.Context, req stitcher.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	grid := req.Grid()
	fmt.Fprintf(s.stderr, "==Geodetic Bounds  (EPSG:4326): %s to %s\n", req.TopLeft, req.BottomRight)
	fmt.Fprintf(s.stderr, "==Zoom Level: %d\n", req.Zoom)
	fmt.Fprintf(s.stderr, "==Upper Left Tile: x:%d y:%d\n", grid.TopLeftTile.X, grid.TopLeftTile.Y)
	fmt.Fprintf(s.stderr, "==Lower Right Tile: x:%d y:%d\n", grid.BottomRightTile.X, grid.BottomRightTile.Y)
	fmt.Fprintf(s.stderr, "==Raster Size: %dx%d\n", grid.Width, grid.Height)

	if grid.Empty() {
		return "", fmt.Errorf("%w: check that top-left is north-west of bottom-right", tile.ErrEmptyRaster)
	}

	if s.options.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.Deadline)
		defer cancel()
	}

	opts := []stitcher.Option{
		stitcher.WithWorkers(s.options.Workers),
		stitcher.WithFetcher(tile.NewProcessor(tile.WithTimeout(s.options.Timeout))),
	}
	var bar *progressbar.ProgressBar
	if s.options.Progress {
		bar = progressbar.NewOptions(grid.Tiles(),
			progressbar.OptionSetWriter(s.stderr),
			progressbar.OptionSetDescription("Downloading tiles"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		opts = append(opts, stitcher.WithProgress(func(done, total int) {
			_ = bar.Set(done)
		}))
	}

	res, err := stitcher.New(opts...).Download(ctx, req)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(s.stderr)
	}
	if err != nil {
		return "", err
	}

	if n := len(res.Failed); n > 0 {
		fmt.Fprintf(s.stderr, "Warning: %d of %d tiles could not be retrieved and are left blank\n", n, res.Total)
		for _, ft := range res.Failed {
			tile.Logger().Debug("missing tile", "tile", ft.Index.String(), "url", ft.URL, "error", ft.Err)
		}
	}

	path := s.OutputPath()
	if err := tile.WriteFile(path, res.Raster, s.options.Format); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", s.options.Format, err)
	}
	fmt.Fprintf(s.stderr, "Saved as %s\n", path)

	if s.options.WriteWorldFile {
		wfPath, err := tile.WriteWorldFile(path, s.options.Format, tile.NewWorldFile(res.Grid, req.Zoom))
		if err != nil {
			return path, fmt.Errorf("failed to write world file: %w", err)
		}
		fmt.Fprintf(s.stderr, "World file written to '%s'.\n", wfPath)
	}

	if s.options.Open {
		fmt.Fprintln(s.stderr, "Opening image in default viewer...")
		if err := s.open(path); err != nil {
			return path, fmt.Errorf("failed to open image in default viewer: %w", err)
		}
	}

	return path, nil
}

// ExitMessage turns a run error into a short user facing message.
func ExitMessage(err error) string {
	switch {
	case stitcher.IsInterrupted(err):
		return fmt.Sprintf("%v (nothing was saved)", err)
	case errors.Is(err, tile.ErrRasterTooLarge):
		return fmt.Sprintf("%v (lower the zoom level or shrink the area)", err)
	}
	return err.Error()
}
