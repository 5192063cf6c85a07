package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kiesman99/satstitch/internal/api"
	"github.com/kiesman99/satstitch/internal/stitcher"
	"github.com/kiesman99/satstitch/pkg/tile"
)

// Server implements the ServerInterface from the generated API
type Server struct {
	startTime time.Time
	version   string
	logger    *slog.Logger
	fetcher   stitcher.Fetcher
	stitchOps []stitcher.Option
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetcher sets the tile fetcher shared by all requests.
func WithFetcher(f stitcher.Fetcher) Option {
	return func(s *Server) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithStitcherOptions is passed to every stitcher the server creates.
func WithStitcherOptions(opts ...stitcher.Option) Option {
	return func(s *Server) {
		s.stitchOps = append(s.stitchOps, opts...)
	}
}

// NewServer creates a new server instance
func NewServer(version string, opts ...Option) *Server {
	s := &Server{
		startTime: time.Now(),
		version:   version,
		logger:    tile.Logger(),
		fetcher:   tile.NewProcessor(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// ResolveGrid reports the tile range and raster size of a bounding box
func (s *Server) ResolveGrid(w http.ResponseWriter, r *http.Request, params api.ResolveGridParams) {
	requestID := requestIDFrom(r)

	tileSize := tile.DefaultTileSize
	if params.TileSize != nil {
		tileSize = *params.TileSize
	}

	if err := tile.ValidateZoom(params.Zoom); err != nil {
		s.writeValidationErrorResponse(w, "zoom", err.Error(), &requestID)
		return
	}
	if tileSize <= 0 {
		s.writeValidationErrorResponse(w, "tile_size", tile.ErrInvalidTileSize.Error(), &requestID)
		return
	}

	grid := tile.ResolveBounds(
		tile.GeoPoint{Lat: params.Lat1, Lon: params.Lon1},
		tile.GeoPoint{Lat: params.Lat2, Lon: params.Lon2},
		params.Zoom, tileSize)

	w.Header().Set("X-Request-ID", requestID)
	s.writeJSON(w, http.StatusOK, gridResponse(grid, params.Zoom))
}

// CreateStitchedImage implements the main stitching endpoint
func (s *Server) CreateStitchedImage(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var body api.CreateStitchedImageJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	req, out, err := convertRequest(&body)
	if err != nil {
		s.writeValidationErrorResponse(w, "output", err.Error(), &requestID)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeValidationErrorResponse(w, "request", err.Error(), &requestID)
		return
	}
	if req.Grid().Empty() {
		s.writeValidationErrorResponse(w, "bottom_right", tile.ErrEmptyRaster.Error(), &requestID)
		return
	}

	res, err := s.newStitcher().Download(r.Context(), req)
	if err != nil {
		s.handleStitchingError(w, err, &requestID)
		return
	}

	data, err := tile.EncodeBytes(res.Raster, out.format)
	if err != nil {
		s.logger.Error("encoding stitched image", "request_id", requestID, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to encode output image", &requestID, nil)
		return
	}

	if out.worldFile {
		wf := tile.NewWorldFile(res.Grid, req.Zoom)
		w.Header().Set("X-World-File", base64.StdEncoding.EncodeToString(wf.Bytes()))
	}

	s.logger.Info("stitched image",
		"request_id", requestID,
		"tiles", res.Total,
		"failed", len(res.Failed),
		"width", res.Raster.Width(),
		"height", res.Raster.Height())

	w.Header().Set("Content-Type", out.format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Tiles-Total", strconv.Itoa(res.Total))
	w.Header().Set("X-Tiles-Failed", strconv.Itoa(len(res.Failed)))
	w.Header().Set("X-Raster-Size", fmt.Sprintf("%dx%d", res.Raster.Width(), res.Raster.Height()))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("writing response", "request_id", requestID, "error", err)
	}
}

// newStitcher builds a per-request stitcher around the shared fetcher, so
// tile connections are pooled across requests.
func (s *Server) newStitcher() *stitcher.Stitcher {
	opts := append([]stitcher.Option{stitcher.WithFetcher(s.fetcher)}, s.stitchOps...)
	return stitcher.New(opts...)
}

type outputOptions struct {
	format    tile.Format
	worldFile bool
}

// convertRequest converts the API request to stitcher parameters
func convertRequest(body *api.StitchRequest) (stitcher.Request, outputOptions, error) {
	req := stitcher.Request{
		TopLeft:     tile.GeoPoint{Lat: body.TopLeft.Lat, Lon: body.TopLeft.Lon},
		BottomRight: tile.GeoPoint{Lat: body.BottomRight.Lat, Lon: body.BottomRight.Lon},
		Zoom:        body.Zoom,
		URLTemplate: body.TileSource.Url,
		TileSize:    tile.DefaultTileSize,
		Channels:    tile.ChannelsRGBA,
	}
	out := outputOptions{format: tile.FormatPNG}

	if body.TileSource.Headers != nil {
		req.Headers = *body.TileSource.Headers
	}

	if o := body.Output; o != nil {
		if o.TileSize != nil {
			req.TileSize = *o.TileSize
		}
		if o.Channels != nil {
			req.Channels = int(*o.Channels)
		}
		if o.Format != nil {
			f, err := tile.ParseFormat(string(*o.Format))
			if err != nil {
				return req, out, err
			}
			out.format = f
		}
		if o.GenerateWorldfile != nil {
			out.worldFile = *o.GenerateWorldfile
		}
	}

	return req, out, nil
}

// handleStitchingError handles errors from the stitching process
func (s *Server) handleStitchingError(w http.ResponseWriter, err error, requestID *string) {
	switch {
	case errors.Is(err, tile.ErrRasterTooLarge):
		s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "RASTER_TOO_LARGE",
			err.Error(), requestID, map[string]interface{}{
				"max_pixels": tile.MaxPixels,
			})
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "TILE_SERVER_TIMEOUT",
			"Tile server requests timed out", requestID, nil)
	case errors.Is(err, context.Canceled):
		s.logger.Info("client went away", "request_id", *requestID)
	default:
		s.logger.Error("stitching failed", "request_id", *requestID, "error", err)
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", requestID, nil)
	}
}

// ParamErrorHandler renders parameter binding errors of the generated
// router as validation errors.
func (s *Server) ParamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFrom(r)

	field := "request"
	var required *api.RequiredParamError
	var invalid *api.InvalidParamFormatError
	switch {
	case errors.As(err, &required):
		field = required.ParamName
	case errors.As(err, &invalid):
		field = invalid.ParamName
	}

	s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response", "error", err)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, statusCode, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, field, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []struct {
			Code    *string `json:"code,omitempty"`
			Field   string  `json:"field"`
			Message string  `json:"message"`
		}{
			{
				Field:   field,
				Message: message,
			},
		},
	}

	s.writeJSON(w, http.StatusBadRequest, response)
}

func gridResponse(g tile.Grid, zoom int) api.GridResponse {
	return api.GridResponse{
		Zoom:            zoom,
		TileSize:        g.TileSize,
		TopLeftTile:     api.TileIndex{X: g.TopLeftTile.X, Y: g.TopLeftTile.Y},
		BottomRightTile: api.TileIndex{X: g.BottomRightTile.X, Y: g.BottomRightTile.Y},
		Origin:          api.PixelPoint{X: g.TopLeftPixel.X, Y: g.TopLeftPixel.Y},
		Width:           g.Width,
		Height:          g.Height,
		Tiles:           g.Tiles(),
	}
}

// requestIDFrom reuses the caller's X-Request-ID or generates one
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return "req_" + uuid.NewString()
}
