package tile

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Raster is an interleaved 8-bit pixel buffer with 3 (RGB) or 4 (RGBA,
// straight alpha) channels. It holds both decoded tiles and the stitched
// output. Pixel (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*Channels].
type Raster struct {
	Pix      []byte
	Stride   int
	Rect     image.Rectangle
	Channels int
}

// NewRaster allocates a zeroed raster. Zero means black for RGB and fully
// transparent for RGBA.
func NewRaster(width, height, channels int) *Raster {
	channels = NormalizeChannels(channels)
	width, height = max(width, 0), max(height, 0)
	return &Raster{
		Pix:      make([]byte, width*height*channels),
		Stride:   width * channels,
		Rect:     image.Rect(0, 0, width, height),
		Channels: channels,
	}
}

// FromImage converts any decoded image to a raster with the given depth.
// RGB drops alpha, RGBA keeps it un-premultiplied.
func FromImage(img image.Image, channels int) *Raster {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(nrgba, nrgba.Rect, img, b.Min, xdraw.Src)
	}

	channels = NormalizeChannels(channels)
	if channels == ChannelsRGBA {
		return &Raster{
			Pix:      nrgba.Pix,
			Stride:   nrgba.Stride,
			Rect:     nrgba.Rect,
			Channels: ChannelsRGBA,
		}
	}

	r := NewRaster(b.Dx(), b.Dy(), ChannelsRGB)
	for y := 0; y < b.Dy(); y++ {
		src := nrgba.Pix[y*nrgba.Stride:]
		dst := r.Pix[y*r.Stride:]
		for x := 0; x < b.Dx(); x++ {
			copy(dst[x*3:x*3+3], src[x*4:x*4+3])
		}
	}
	return r
}

func (r *Raster) Width() int  { return r.Rect.Dx() }
func (r *Raster) Height() int { return r.Rect.Dy() }

// PixOffset returns the index of the first byte of pixel (x, y).
func (r *Raster) PixOffset(x, y int) int {
	return (y-r.Rect.Min.Y)*r.Stride + (x-r.Rect.Min.X)*r.Channels
}

// At returns the channel values of pixel (x, y), nil outside Rect.
func (r *Raster) At(x, y int) []byte {
	if !(image.Point{X: x, Y: y}.In(r.Rect)) {
		return nil
	}
	i := r.PixOffset(x, y)
	return r.Pix[i : i+r.Channels : i+r.Channels]
}

// Band returns the rows [y0, y1) as a raster sharing r's pixels. Bands with
// disjoint row ranges can be written concurrently.
func (r *Raster) Band(y0, y1 int) *Raster {
	rect := image.Rect(r.Rect.Min.X, y0, r.Rect.Max.X, y1).Intersect(r.Rect)
	if rect.Empty() {
		return &Raster{Channels: r.Channels}
	}
	i := r.PixOffset(rect.Min.X, rect.Min.Y)
	j := r.PixOffset(rect.Max.X-1, rect.Max.Y-1) + r.Channels
	return &Raster{
		Pix:      r.Pix[i:j:j],
		Stride:   r.Stride,
		Rect:     rect,
		Channels: r.Channels,
	}
}

// Composite writes tile into r at (idx*tileSize - origin), in the
// coordinate space of the full output raster. A tile whose offset is
// negative on either axis is skipped as a whole, even when part of it
// would land inside r. On the positive side the copy is clipped to r.
// Pixels are overwritten channel for channel, without blending.
// It reports whether any pixel was written.
func (r *Raster) Composite(t *Raster, idx TileIndex, tileSize int, origin image.Point) bool {
	off := image.Pt(idx.X*tileSize-origin.X, idx.Y*tileSize-origin.Y)
	if off.X < 0 || off.Y < 0 {
		return false
	}

	dst := image.Rectangle{Min: off, Max: off.Add(t.Rect.Size())}.Intersect(r.Rect)
	if dst.Empty() {
		return false
	}

	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		sy := t.Rect.Min.Y + y - off.Y
		sx := t.Rect.Min.X + dst.Min.X - off.X
		drow := r.Pix[r.PixOffset(dst.Min.X, y):]
		srow := t.Pix[t.PixOffset(sx, sy):]

		if r.Channels == t.Channels {
			copy(drow[:dst.Dx()*r.Channels], srow)
			continue
		}
		for x := 0; x < dst.Dx(); x++ {
			d := drow[x*r.Channels : (x+1)*r.Channels]
			s := srow[x*t.Channels : (x+1)*t.Channels]
			copy(d[:3], s[:3])
			if r.Channels == ChannelsRGBA {
				d[3] = 0xff
			}
		}
	}
	return true
}

// Image exposes the raster as a standard image: *image.NRGBA for RGBA and
// an opaque *image.RGBA for RGB.
func (r *Raster) Image() image.Image {
	if r.Channels == ChannelsRGBA {
		return &image.NRGBA{Pix: r.Pix, Stride: r.Stride, Rect: r.Rect}
	}

	img := image.NewRGBA(r.Rect)
	for y := r.Rect.Min.Y; y < r.Rect.Max.Y; y++ {
		src := r.Pix[r.PixOffset(r.Rect.Min.X, y):]
		dst := img.Pix[img.PixOffset(r.Rect.Min.X, y):]
		for x := 0; x < r.Rect.Dx(); x++ {
			copy(dst[x*4:x*4+3], src[x*3:x*3+3])
			dst[x*4+3] = 0xff
		}
	}
	return img
}
