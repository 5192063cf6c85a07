package tile

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"golang.org/x/image/tiff"
)

// Format is an output encoding
type Format int

// Output format constants
const (
	FormatPNG Format = iota
	FormatJPEG
	FormatTIFF
)

// ParseFormat maps a format name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "tif", "tiff", "geotiff":
		return FormatTIFF, nil
	}
	return 0, fmt.Errorf("unknown format: %s", s)
}

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatTIFF:
		return "tiff"
	}
	return "png"
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tif"
	}
	return ".png"
}

// ContentType returns the MIME type.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatTIFF:
		return "image/tiff"
	}
	return "image/png"
}

// worldExt is the conventional world file extension for the format
func (f Format) worldExt() string {
	switch f {
	case FormatJPEG:
		return ".jgw"
	case FormatTIFF:
		return ".tfw"
	}
	return ".pgw"
}

// Encode writes the raster to w in the given format. JPEG drops alpha.
func Encode(w io.Writer, r *Raster, f Format) error {
	if r.Rect.Empty() {
		return ErrEmptyRaster
	}

	img := r.Image()
	switch f {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return png.Encode(w, img)
	}
}

// EncodeBytes is Encode into memory.
func EncodeBytes(r *Raster, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the raster to path, creating parent directories.
func WriteFile(path string, r *Raster, f Format) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Encode(file, r, f); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WorldFile holds the six affine parameters of an ESRI world file in
// EPSG:3857 metres. X and Y address the centre of the top-left pixel.
type WorldFile struct {
	PixelSizeX float64
	PixelSizeY float64
	X          float64
	Y          float64
}

// NewWorldFile georeferences the raster described by grid at zoom.
func NewWorldFile(g Grid, zoom int) WorldFile {
	b := g.Bound(zoom)
	tl := project.WGS84.ToMercator(orb.Point{b.Min[0], b.Max[1]})
	br := project.WGS84.ToMercator(orb.Point{b.Max[0], b.Min[1]})

	var wf WorldFile
	if g.Width > 0 {
		wf.PixelSizeX = (br[0] - tl[0]) / float64(g.Width)
	}
	if g.Height > 0 {
		wf.PixelSizeY = (tl[1] - br[1]) / float64(g.Height)
	}
	wf.X = tl[0] + wf.PixelSizeX/2
	wf.Y = tl[1] - wf.PixelSizeY/2
	return wf
}

// Bytes renders the world file text.
func (wf WorldFile) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%.10f\n", wf.PixelSizeX)
	fmt.Fprintf(&buf, "%.10f\n", 0.0)
	fmt.Fprintf(&buf, "%.10f\n", 0.0)
	fmt.Fprintf(&buf, "%.10f\n", -wf.PixelSizeY)
	fmt.Fprintf(&buf, "%.10f\n", wf.X)
	fmt.Fprintf(&buf, "%.10f\n", wf.Y)
	return buf.Bytes()
}

// WorldFilePath derives the sidecar path for an image path.
func WorldFilePath(imagePath string, f Format) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + f.worldExt()
}

// WriteWorldFile writes the sidecar next to imagePath and returns its path.
func WriteWorldFile(imagePath string, f Format, wf WorldFile) (string, error) {
	if imagePath == "" {
		return "", fmt.Errorf("can't write a worldfile when writing to stdout")
	}
	path := WorldFilePath(imagePath, f)
	if err := os.WriteFile(path, wf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
