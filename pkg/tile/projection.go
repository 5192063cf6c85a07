package tile

import (
	"image"
	"math"

	"github.com/paulmach/orb"
)

// sinLimit keeps the Mercator y finite at the poles
const sinLimit = 0.9999

// Scale returns the number of tiles per axis at zoom.
func Scale(zoom int) float64 {
	return float64(uint64(1) << uint(zoom))
}

// Project converts lat/lon to Web Mercator tile units at zoom.
// Out-of-range longitudes are extrapolated, not rejected.
func Project(p GeoPoint, zoom int) ProjectedPoint {
	return ProjectScale(p, Scale(zoom))
}

// ProjectScale is Project with an explicit tiles-per-axis scale.
func ProjectScale(p GeoPoint, scale float64) ProjectedPoint {
	siny := math.Sin(p.Lat * math.Pi / 180)
	siny = math.Min(math.Max(siny, -sinLimit), sinLimit)

	return ProjectedPoint{
		X: scale * (0.5 + p.Lon/360),
		Y: scale * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// Unproject converts tile units at zoom back to lat/lon.
func Unproject(p ProjectedPoint, zoom int) GeoPoint {
	n := Scale(zoom)
	lon := p.X/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*p.Y/n)))
	return GeoPoint{Lat: latRad * 180 / math.Pi, Lon: lon}
}

// Grid is the tile and pixel range covering a bounding box
type Grid struct {
	TileSize int

	TopLeftPixel     image.Point
	BottomRightPixel image.Point

	TopLeftTile     TileIndex
	BottomRightTile TileIndex

	Width  int
	Height int
}

// ResolveGrid derives the tile range and raster size for two projected
// corners. The top-left corner must be north-west of the bottom-right one;
// inverted corners still produce a positive size but an empty tile range.
func ResolveGrid(tl, br ProjectedPoint, tileSize int) Grid {
	ts := float64(tileSize)

	g := Grid{
		TileSize:         tileSize,
		TopLeftPixel:     image.Pt(int(tl.X*ts), int(tl.Y*ts)),
		BottomRightPixel: image.Pt(int(br.X*ts), int(br.Y*ts)),
		TopLeftTile:      TileIndex{X: int(tl.X), Y: int(tl.Y)},
		BottomRightTile:  TileIndex{X: int(br.X), Y: int(br.Y)},
	}
	g.Width = absInt(g.BottomRightPixel.X - g.TopLeftPixel.X)
	g.Height = absInt(g.BottomRightPixel.Y - g.TopLeftPixel.Y)

	return g
}

// ResolveBounds projects both corners at zoom and resolves the grid.
func ResolveBounds(topLeft, bottomRight GeoPoint, zoom, tileSize int) Grid {
	return ResolveGrid(Project(topLeft, zoom), Project(bottomRight, zoom), tileSize)
}

// Origin is the global pixel coordinate of the raster's top-left pixel.
func (g Grid) Origin() image.Point {
	return g.TopLeftPixel
}

// Cols is the number of tile columns iterated, zero for inverted corners.
func (g Grid) Cols() int {
	return max(g.BottomRightTile.X-g.TopLeftTile.X+1, 0)
}

// Rows is the number of tile rows iterated, zero for inverted corners.
func (g Grid) Rows() int {
	return max(g.BottomRightTile.Y-g.TopLeftTile.Y+1, 0)
}

// Tiles is the total number of tiles in the inclusive range.
func (g Grid) Tiles() int {
	return g.Cols() * g.Rows()
}

// Empty reports whether the raster has no pixels.
func (g Grid) Empty() bool {
	return g.Width == 0 || g.Height == 0
}

// Bound returns the geographic extent of the raster at zoom.
func (g Grid) Bound(zoom int) orb.Bound {
	ts := float64(g.TileSize)
	tl := Unproject(ProjectedPoint{
		X: float64(g.TopLeftPixel.X) / ts,
		Y: float64(g.TopLeftPixel.Y) / ts,
	}, zoom)
	br := Unproject(ProjectedPoint{
		X: float64(g.TopLeftPixel.X+g.Width) / ts,
		Y: float64(g.TopLeftPixel.Y+g.Height) / ts,
	}, zoom)

	return orb.MultiPoint{tl.Point(), br.Point()}.Bound()
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
