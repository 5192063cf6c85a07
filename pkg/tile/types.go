package tile

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Zoom bounds accepted by the downloader
const (
	MinZoom = 0
	MaxZoom = 22
)

// Channel depths
const (
	ChannelsRGB  = 3
	ChannelsRGBA = 4
)

// DefaultTileSize is the pixel size of a standard slippy-map tile
const DefaultTileSize = 256

// MaxPixels caps the area of an output raster
const MaxPixels = 10000 * 10000

var (
	ErrInvalidZoom     = errors.New("zoom level out of range")
	ErrInvalidTileSize = errors.New("tile size must be positive")
	ErrInvalidChannels = errors.New("channels must be 3 or 4")
	ErrInvalidTemplate = errors.New("url template must contain {x}, {y} and {z}")
	ErrEmptyRaster     = errors.New("bounding box resolves to an empty raster")
	ErrRasterTooLarge  = errors.New("requested image size too large")
)

// GeoPoint is a WGS84 position in degrees
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the position as an orb point (lon, lat order).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.8f, %.8f", p.Lat, p.Lon)
}

// Validate checks the point against the WGS84 domain.
func (p GeoPoint) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", p.Lon)
	}
	return nil
}

// ProjectedPoint is a Web Mercator position in tile units.
// At zoom z the world spans [0, 2^z) on both axes.
type ProjectedPoint struct {
	X, Y float64
}

// TileIndex addresses one tile of the server grid at a given zoom
type TileIndex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (t TileIndex) String() string {
	return fmt.Sprintf("%d/%d", t.X, t.Y)
}

// NormalizeChannels maps a channel count to 3 (RGB) or 4 (RGBA).
// Only 3 selects RGB, everything else is RGBA.
func NormalizeChannels(channels int) int {
	if channels == ChannelsRGB {
		return ChannelsRGB
	}
	return ChannelsRGBA
}

// ValidateZoom reports whether zoom is within [MinZoom, MaxZoom].
func ValidateZoom(zoom int) error {
	if zoom < MinZoom || zoom > MaxZoom {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidZoom, zoom, MinZoom, MaxZoom)
	}
	return nil
}

// ValidateChannels accepts exactly 3 or 4.
func ValidateChannels(channels int) error {
	if channels != ChannelsRGB && channels != ChannelsRGBA {
		return fmt.Errorf("%w: got %d", ErrInvalidChannels, channels)
	}
	return nil
}

// ValidateTemplate checks that all tile placeholders are present.
func ValidateTemplate(template string) error {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(template, p) {
			return fmt.Errorf("%w: missing %s in %q", ErrInvalidTemplate, p, template)
		}
	}
	return nil
}

var numberPattern = regexp.MustCompile(`[+-]?(\d+\.?\d*|\.\d+)`)

// ParseGeoPoint reads a "lat, lon" pair. Any separator and surrounding
// decoration is accepted, e.g. "(52.70867, 5.68805)".
func ParseGeoPoint(s string) (GeoPoint, error) {
	nums := numberPattern.FindAllString(s, -1)
	if len(nums) != 2 {
		return GeoPoint{}, fmt.Errorf("invalid coordinates %q: expected latitude and longitude", s)
	}

	lat, err := strconv.ParseFloat(nums[0], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("invalid latitude %q: %w", nums[0], err)
	}
	lon, err := strconv.ParseFloat(nums[1], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("invalid longitude %q: %w", nums[1], err)
	}

	return GeoPoint{Lat: lat, Lon: lon}, nil
}
