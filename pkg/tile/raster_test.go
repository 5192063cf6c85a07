package tile

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func solidRaster(w, h int, c ...byte) *Raster {
	r := NewRaster(w, h, len(c))
	for i := 0; i < len(r.Pix); i += len(c) {
		copy(r.Pix[i:], c)
	}
	return r
}

// countSet returns how many pixels of r are not all zero
func countSet(r *Raster) int {
	n := 0
	for y := r.Rect.Min.Y; y < r.Rect.Max.Y; y++ {
		for x := r.Rect.Min.X; x < r.Rect.Max.X; x++ {
			for _, v := range r.At(x, y) {
				if v != 0 {
					n++
					break
				}
			}
		}
	}
	return n
}

func TestNewRaster(t *testing.T) {
	r := NewRaster(3, 2, 5)
	if r.Channels != ChannelsRGBA {
		t.Errorf("channels = %d, want %d", r.Channels, ChannelsRGBA)
	}
	if len(r.Pix) != 3*2*4 || r.Stride != 12 {
		t.Errorf("unexpected layout: len %d stride %d", len(r.Pix), r.Stride)
	}
	if countSet(r) != 0 {
		t.Error("new raster is not zeroed")
	}

	rgb := NewRaster(3, 2, ChannelsRGB)
	if len(rgb.Pix) != 3*2*3 {
		t.Errorf("RGB raster has %d bytes, want 18", len(rgb.Pix))
	}
}

func TestCompositeInBounds(t *testing.T) {
	r := NewRaster(10, 10, ChannelsRGBA)
	tile := solidRaster(4, 4, 1, 2, 3, 255)

	if !r.Composite(tile, TileIndex{X: 1, Y: 1}, 4, image.Pt(2, 2)) {
		t.Fatal("tile at offset 2,2 was not placed")
	}

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			got := r.At(x, y)
			inside := x >= 2 && x < 6 && y >= 2 && y < 6
			switch {
			case inside && !bytes.Equal(got, []byte{1, 2, 3, 255}):
				t.Fatalf("pixel %d,%d = %v, want tile color", x, y, got)
			case !inside && !bytes.Equal(got, []byte{0, 0, 0, 0}):
				t.Fatalf("pixel %d,%d = %v, want untouched", x, y, got)
			}
		}
	}
}

func TestCompositeNegativeOffsetSkipped(t *testing.T) {
	r := NewRaster(10, 10, ChannelsRGB)
	tile := solidRaster(4, 4, 9, 9, 9)

	// Offset -2,-2: three quarters of the tile would be visible, but the
	// whole tile is dropped.
	if r.Composite(tile, TileIndex{X: 0, Y: 0}, 4, image.Pt(2, 2)) {
		t.Error("tile with negative offset reported as placed")
	}
	// Negative on one axis only.
	if r.Composite(tile, TileIndex{X: 2, Y: 0}, 4, image.Pt(2, 2)) {
		t.Error("tile with negative y offset reported as placed")
	}
	if n := countSet(r); n != 0 {
		t.Errorf("%d pixels written, want 0", n)
	}
}

func TestCompositeClipsPositiveSide(t *testing.T) {
	r := NewRaster(6, 6, ChannelsRGB)
	tile := solidRaster(4, 4, 7, 8, 9)

	if !r.Composite(tile, TileIndex{X: 1, Y: 1}, 4, image.Point{}) {
		t.Fatal("partially visible tile not placed")
	}
	if n := countSet(r); n != 4 {
		t.Errorf("%d pixels written, want 4", n)
	}
	if got := r.At(5, 5); !bytes.Equal(got, []byte{7, 8, 9}) {
		t.Errorf("corner pixel = %v", got)
	}

	// Entirely outside.
	if r.Composite(tile, TileIndex{X: 2, Y: 0}, 4, image.Point{}) {
		t.Error("tile beyond the raster reported as placed")
	}
}

func TestCompositeOverwrites(t *testing.T) {
	r := NewRaster(4, 4, ChannelsRGBA)
	r.Composite(solidRaster(4, 4, 10, 10, 10, 255), TileIndex{}, 4, image.Point{})
	r.Composite(solidRaster(4, 4, 20, 20, 20, 0), TileIndex{}, 4, image.Point{})

	if got := r.At(1, 1); !bytes.Equal(got, []byte{20, 20, 20, 0}) {
		t.Errorf("pixel = %v, want the later tile without blending", got)
	}
}

func TestCompositeConvertsChannels(t *testing.T) {
	r := NewRaster(2, 2, ChannelsRGBA)
	r.Composite(solidRaster(2, 2, 1, 2, 3), TileIndex{}, 2, image.Point{})
	if got := r.At(0, 0); !bytes.Equal(got, []byte{1, 2, 3, 255}) {
		t.Errorf("RGB into RGBA = %v", got)
	}

	rgb := NewRaster(2, 2, ChannelsRGB)
	rgb.Composite(solidRaster(2, 2, 4, 5, 6, 7), TileIndex{}, 2, image.Point{})
	if got := rgb.At(1, 1); !bytes.Equal(got, []byte{4, 5, 6}) {
		t.Errorf("RGBA into RGB = %v", got)
	}
}

func TestBand(t *testing.T) {
	r := NewRaster(4, 6, ChannelsRGB)
	band := r.Band(2, 4)

	if band.Rect != image.Rect(0, 2, 4, 4) {
		t.Fatalf("band rect = %v", band.Rect)
	}

	// Tile row 1 with tile size 2 lands on rows 2 and 3 of the parent.
	band.Composite(solidRaster(2, 2, 5, 5, 5), TileIndex{X: 0, Y: 1}, 2, image.Point{})
	for y := 0; y < 6; y++ {
		set := r.At(0, y)[0] != 0
		if want := y == 2 || y == 3; set != want {
			t.Errorf("row %d set = %v, want %v", y, set, want)
		}
	}

	// A taller tile is clipped to its band.
	band.Composite(solidRaster(2, 4, 6, 6, 6), TileIndex{X: 1, Y: 1}, 2, image.Point{})
	if r.At(2, 4)[0] != 0 {
		t.Error("oversized tile wrote outside its band")
	}

	if clipped := r.Band(-2, 1); clipped.Rect != image.Rect(0, 0, 4, 1) {
		t.Errorf("band above the raster = %v", clipped.Rect)
	}
	if empty := r.Band(6, 8); !empty.Rect.Empty() {
		t.Errorf("band below the raster = %v", empty.Rect)
	}
}

func TestFromImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 12, 12))
	for y := 10; y < 12; y++ {
		for x := 10; x < 12; x++ {
			src.Set(x, y, color.RGBA{R: 100, G: 150, B: 200, A: 255})
		}
	}

	rgba := FromImage(src, ChannelsRGBA)
	if rgba.Rect != image.Rect(0, 0, 2, 2) || rgba.Channels != ChannelsRGBA {
		t.Fatalf("unexpected raster %v/%d", rgba.Rect, rgba.Channels)
	}
	if got := rgba.At(1, 1); !bytes.Equal(got, []byte{100, 150, 200, 255}) {
		t.Errorf("RGBA pixel = %v", got)
	}

	rgb := FromImage(src, ChannelsRGB)
	if got := rgb.At(0, 0); !bytes.Equal(got, []byte{100, 150, 200}) {
		t.Errorf("RGB pixel = %v", got)
	}
}

func TestRasterImage(t *testing.T) {
	rgb := solidRaster(2, 2, 1, 2, 3)
	img, ok := rgb.Image().(*image.RGBA)
	if !ok {
		t.Fatalf("RGB raster image is %T", rgb.Image())
	}
	if c := img.RGBAAt(1, 1); c != (color.RGBA{R: 1, G: 2, B: 3, A: 255}) {
		t.Errorf("RGB image pixel = %v", c)
	}

	rgba := NewRaster(2, 2, ChannelsRGBA)
	nimg, ok := rgba.Image().(*image.NRGBA)
	if !ok {
		t.Fatalf("RGBA raster image is %T", rgba.Image())
	}
	if c := nimg.NRGBAAt(0, 0); c.A != 0 {
		t.Errorf("empty RGBA raster is not transparent: %v", c)
	}
}
