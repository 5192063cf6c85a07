package stitcher

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiesman99/satstitch/pkg/tile"
)

type fetcherFunc func(ctx context.Context, url string, headers map[string]string, channels int) (*tile.Raster, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string, headers map[string]string, channels int) (*tile.Raster, error) {
	return f(ctx, url, headers, channels)
}

func tileColor(x, y int) color.NRGBA {
	return color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255}
}

// newTileServer serves solid tiles colored by tileColor
func newTileServer(t *testing.T, size int) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/{z}/{x}/{y}.png", func(w http.ResponseWriter, r *http.Request) {
		x, errX := strconv.Atoi(chi.URLParam(r, "x"))
		y, errY := strconv.Atoi(chi.URLParam(r, "y"))
		if errX != nil || errY != nil {
			http.Error(w, "bad tile", http.StatusBadRequest)
			return
		}

		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		c := tileColor(x, y)
		for py := 0; py < size; py++ {
			for px := 0; px < size; px++ {
				img.SetNRGBA(px, py, c)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func drontenRequest(template string) Request {
	return Request{
		TopLeft:     tile.GeoPoint{Lat: 52.70868, Lon: 5.68805},
		BottomRight: tile.GeoPoint{Lat: 52.55495, Lon: 5.87903},
		Zoom:        13,
		URLTemplate: template,
		TileSize:    256,
		Channels:    tile.ChannelsRGB,
	}
}

func isZero(px []byte) bool {
	for _, v := range px {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestDownloadDronten(t *testing.T) {
	srv := newTileServer(t, 256)
	req := drontenRequest(srv.URL + "/{z}/{x}/{y}.png")

	res, err := New(WithWorkers(4)).Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	grid := req.Grid()
	if res.Raster.Width() != grid.Width || res.Raster.Height() != grid.Height {
		t.Fatalf("raster %dx%d, want %dx%d", res.Raster.Width(), res.Raster.Height(), grid.Width, grid.Height)
	}
	if res.Raster.Channels != tile.ChannelsRGB {
		t.Errorf("channels = %d, want 3", res.Raster.Channels)
	}
	if res.Total != grid.Tiles() || res.Done != res.Total {
		t.Errorf("processed %d of %d tiles, grid has %d", res.Done, res.Total, grid.Tiles())
	}
	if len(res.Failed) != 0 {
		t.Errorf("%d tiles failed: %v", len(res.Failed), res.Failed[0].Err)
	}

	origin := grid.Origin()
	placed := 0
	for ty := grid.TopLeftTile.Y; ty <= grid.BottomRightTile.Y; ty++ {
		for tx := grid.TopLeftTile.X; tx <= grid.BottomRightTile.X; tx++ {
			off := image.Pt(tx*256-origin.X, ty*256-origin.Y)
			if off.X < 0 || off.Y < 0 || !off.In(res.Raster.Rect) {
				continue
			}
			c := tileColor(tx, ty)
			want := []byte{c.R, c.G, c.B}
			if got := res.Raster.At(off.X, off.Y); !bytes.Equal(got, want) {
				t.Errorf("tile %d/%d at %v = %v, want %v", tx, ty, off, got, want)
			}
			placed++
		}
	}
	if placed == 0 {
		t.Fatal("no tile boundary inside the raster")
	}

	// The top-left tile starts before the raster origin and is dropped.
	if off := grid.TopLeftTile.X*256 - origin.X; off < 0 {
		if got := res.Raster.At(0, 0); !isZero(got) {
			t.Errorf("pixel 0,0 = %v, want blank", got)
		}
	}
}

func TestDownloadAllTilesFail(t *testing.T) {
	failing := fetcherFunc(func(context.Context, string, map[string]string, int) (*tile.Raster, error) {
		return nil, errors.New("connection refused")
	})

	for _, channels := range []int{tile.ChannelsRGB, tile.ChannelsRGBA} {
		req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
		req.Channels = channels

		res, err := New(WithFetcher(failing)).Download(context.Background(), req)
		if err != nil {
			t.Fatalf("Download: %v", err)
		}

		grid := req.Grid()
		if res.Raster.Width() != grid.Width || res.Raster.Height() != grid.Height {
			t.Errorf("raster %dx%d, want %dx%d", res.Raster.Width(), res.Raster.Height(), grid.Width, grid.Height)
		}
		if res.Raster.Channels != channels {
			t.Errorf("channels = %d, want %d", res.Raster.Channels, channels)
		}
		if !isZero(res.Raster.Pix) {
			t.Error("raster has non-zero pixels")
		}
		if len(res.Failed) != res.Total || res.Succeeded() != 0 {
			t.Errorf("%d of %d tiles failed", len(res.Failed), res.Total)
		}
	}
}

func TestDownloadFailureManifest(t *testing.T) {
	srv := newTileServer(t, 256)
	bad := tile.TileIndex{X: 4227, Y: 2682}

	processor := tile.NewProcessor()
	fetcher := fetcherFunc(func(ctx context.Context, url string, headers map[string]string, channels int) (*tile.Raster, error) {
		if url == tile.BuildURL(srv.URL+"/{z}/{x}/{y}.png", bad, 13) {
			return nil, &tile.StatusError{URL: url, StatusCode: http.StatusNotFound, Status: "404 Not Found"}
		}
		return processor.Fetch(ctx, url, headers, channels)
	})

	req := drontenRequest(srv.URL + "/{z}/{x}/{y}.png")
	res, err := New(WithFetcher(fetcher)).Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	if len(res.Failed) != 1 {
		t.Fatalf("failed = %v, want exactly one tile", res.Failed)
	}
	if res.Failed[0].Index != bad {
		t.Errorf("failed tile = %s, want %s", res.Failed[0].Index, bad)
	}
	var statusErr *tile.StatusError
	if !errors.As(res.Failed[0].Err, &statusErr) {
		t.Errorf("failure error = %v, want StatusError", res.Failed[0].Err)
	}
	if res.Succeeded() != res.Total-1 {
		t.Errorf("succeeded = %d, want %d", res.Succeeded(), res.Total-1)
	}
}

func TestDownloadRGBA(t *testing.T) {
	srv := newTileServer(t, 256)
	req := drontenRequest(srv.URL + "/{z}/{x}/{y}.png")
	req.Channels = 7

	res, err := New().Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Raster.Channels != tile.ChannelsRGBA {
		t.Fatalf("channels = %d, want 4", res.Raster.Channels)
	}

	last := res.Raster.At(res.Raster.Width()-1, res.Raster.Height()-1)
	if last[3] != 255 {
		t.Errorf("pixel covered by a tile has alpha %d, want opaque", last[3])
	}
	if first := res.Raster.At(0, 0); first[3] != 0 {
		t.Errorf("uncovered pixel has alpha %d, want transparent", first[3])
	}
}

func TestDownloadProgress(t *testing.T) {
	fetcher := fetcherFunc(func(context.Context, string, map[string]string, int) (*tile.Raster, error) {
		return tile.NewRaster(256, 256, tile.ChannelsRGB), nil
	})

	var calls []int
	var total int
	progress := func(done, n int) {
		calls = append(calls, done)
		total = n
	}

	req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
	res, err := New(WithFetcher(fetcher), WithProgress(progress), WithWorkers(3)).Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	if len(calls) != res.Total || total != res.Total {
		t.Fatalf("progress called %d times with total %d, want %d", len(calls), total, res.Total)
	}
	for i, done := range calls {
		if done != i+1 {
			t.Fatalf("progress call %d reported %d, want %d", i, done, i+1)
		}
	}
}

func TestDownloadWorkerLimit(t *testing.T) {
	var active, peak int32
	fetcher := fetcherFunc(func(context.Context, string, map[string]string, int) (*tile.Raster, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return tile.NewRaster(256, 256, tile.ChannelsRGB), nil
	})

	req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
	if _, err := New(WithFetcher(fetcher), WithWorkers(2)).Download(context.Background(), req); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("%d concurrent fetches, want at most 2", p)
	}
}

func TestDownloadCancel(t *testing.T) {
	var started sync.Once
	ready := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context, _ string, _ map[string]string, _ int) (*tile.Raster, error) {
		started.Do(func() { close(ready) })
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-ready
		cancel()
	}()

	req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
	res, err := New(WithFetcher(fetcher), WithWorkers(1)).Download(ctx, req)
	if !IsInterrupted(err) {
		t.Fatalf("err = %v, want interruption", err)
	}
	if res == nil || res.Raster == nil {
		t.Fatal("interrupted download returned no partial result")
	}
	if res.Done >= res.Total {
		t.Errorf("done = %d of %d after cancel", res.Done, res.Total)
	}
}

func TestDownloadDeadline(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, _ string, _ map[string]string, _ int) (*tile.Raster, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
	_, err := New(WithFetcher(fetcher)).Download(ctx, req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestDownloadDeadlineLastTileOfEveryRow(t *testing.T) {
	fetcher := fetcherFunc(func(ctx context.Context, _ string, _ map[string]string, _ int) (*tile.Raster, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	// One column: every row has a single tile, so each worker is on its
	// last tile when the deadline fires.
	req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
	req.BottomRight.Lon = 5.69

	grid := req.Grid()
	if grid.Cols() != 1 || grid.Rows() < 2 {
		t.Fatalf("grid is %dx%d tiles, want a single column", grid.Cols(), grid.Rows())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := New(WithFetcher(fetcher), WithWorkers(16)).Download(ctx, req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if res == nil || res.Done != res.Total {
		t.Fatalf("result = %+v, want every tile processed", res)
	}
}

func TestDownloadRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Request)
		want   error
	}{
		{"zoom too high", func(r *Request) { r.Zoom = tile.MaxZoom + 1 }, tile.ErrInvalidZoom},
		{"negative zoom", func(r *Request) { r.Zoom = -1 }, tile.ErrInvalidZoom},
		{"zero tile size", func(r *Request) { r.TileSize = 0 }, tile.ErrInvalidTileSize},
		{"raster too large", func(r *Request) {
			r.TopLeft = tile.GeoPoint{Lat: 80, Lon: -170}
			r.BottomRight = tile.GeoPoint{Lat: -80, Lon: 170}
			r.Zoom = 18
		}, tile.ErrRasterTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
			tt.modify(&req)

			_, err := New().Download(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDownloadEmptyRaster(t *testing.T) {
	req := drontenRequest("http://tiles.invalid/{z}/{x}/{y}.png")
	req.BottomRight = req.TopLeft

	calls := int32(0)
	fetcher := fetcherFunc(func(context.Context, string, map[string]string, int) (*tile.Raster, error) {
		atomic.AddInt32(&calls, 1)
		return tile.NewRaster(256, 256, tile.ChannelsRGB), nil
	})

	res, err := New(WithFetcher(fetcher)).Download(context.Background(), req)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Raster.Width() != 0 || res.Raster.Height() != 0 {
		t.Errorf("raster %dx%d, want empty", res.Raster.Width(), res.Raster.Height())
	}
	if res.Total != 1 || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("single point fetched %d of %d tiles, want 1", calls, res.Total)
	}
}

func TestRequestValidate(t *testing.T) {
	valid := drontenRequest("https://tile.example.org/{z}/{x}/{y}.png")
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Request)
		want   error
	}{
		{"bad zoom", func(r *Request) { r.Zoom = 30 }, tile.ErrInvalidZoom},
		{"bad channels", func(r *Request) { r.Channels = 1 }, tile.ErrInvalidChannels},
		{"bad template", func(r *Request) { r.URLTemplate = "https://tile.example.org/{z}.png" }, tile.ErrInvalidTemplate},
		{"bad tile size", func(r *Request) { r.TileSize = -256 }, tile.ErrInvalidTileSize},
		{"inverted", func(r *Request) { r.TopLeft, r.BottomRight = r.BottomRight, r.TopLeft }, ErrInvertedBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			if err := req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
