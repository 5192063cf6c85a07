package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kiesman99/satstitch/internal/stitch"
	"github.com/kiesman99/satstitch/internal/stitcher"
	"github.com/kiesman99/satstitch/pkg/tile"
)

// Version is set at build time.
var Version = "dev"

var cfgFile string

// defaultHeaders make tile requests look like they come from a desktop
// browser. Several imagery servers refuse anything else.
var defaultHeaders = map[string]string{
	"cache-control":             "max-age=0",
	"sec-ch-ua":                 `" Not A;Brand";v="99", "Chromium";v="99", "Google Chrome";v="99"`,
	"sec-ch-ua-mobile":          "?0",
	"sec-ch-ua-platform":        `"Windows"`,
	"sec-fetch-dest":            "document",
	"sec-fetch-mode":            "navigate",
	"sec-fetch-site":            "none",
	"sec-fetch-user":            "?1",
	"upgrade-insecure-requests": "1",
	"user-agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/99.0.4844.82 Safari/537.36",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "satstitch",
	Short: "Download satellite imagery for a bounding box as one image",
	Long: `satstitch downloads all slippy-map tiles covering a bounding box and
stitches them into a single image.

Coordinates are given as "lat, lon" pairs; any separator works. Settings not
given on the command line are read from SATSTITCH_* environment variables and
from preferences.json or preferences.yaml in the working directory or in
$HOME/.satstitch.

Examples:
  # Google satellite imagery of Dronten at zoom 13
  satstitch -t "52.54, 5.65" -b "52.50, 5.75" -z 13

  # OpenStreetMap tiles as RGB JPEG with a world file
  satstitch -t "37.80, -122.52" -b "37.70, -122.35" -z 12 \
    -u "https://tile.openstreetmap.org/{z}/{x}/{y}.png" -f jpeg -c 3 -w

  # Start HTTP server
  satstitch serve --port 8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStitch,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", stitch.ExitMessage(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "preferences file (default is ./preferences.{json,yaml})")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every tile")

	// Area
	rootCmd.Flags().StringP("top-left", "t", "", `top-left coordinates, e.g. "52.70867, 5.68805"`)
	rootCmd.Flags().StringP("bottom-right", "b", "", `bottom-right coordinates, e.g. "52.55494, 5.87903"`)
	rootCmd.Flags().IntP("zoom", "z", 0, "zoom level (recommended 13-18)")

	// Tile source
	rootCmd.Flags().StringP("url", "u", "https://mt.google.com/vt/lyrs=s&x={x}&y={y}&z={z}", "tile URL template with {x}, {y}, {z} placeholders")
	rootCmd.Flags().IntP("tile-size", "s", tile.DefaultTileSize, "tile size in pixels")
	rootCmd.Flags().StringToStringP("header", "H", nil, "extra request header as key=value (repeatable)")
	rootCmd.Flags().Int("workers", 0, "tile rows downloaded concurrently (default: number of CPUs)")
	rootCmd.Flags().Duration("timeout", tile.DefaultTimeout, "timeout per tile request")
	rootCmd.Flags().Duration("deadline", 0, "abort the whole download after this long (0 = no limit)")

	// Output
	rootCmd.Flags().StringP("dir", "d", "images", "output directory")
	rootCmd.Flags().StringP("output", "o", "", "output file (default: <dir>/img_<timestamp>.<ext>)")
	rootCmd.Flags().StringP("format", "f", "png", "output format (png|jpeg|tiff)")
	rootCmd.Flags().IntP("channels", "c", tile.ChannelsRGBA, "3 for RGB, 4 for RGBA")
	rootCmd.Flags().BoolP("worldfile", "w", false, "write a world file next to the image")
	rootCmd.Flags().Bool("open", false, "open the result in the default viewer")
	rootCmd.Flags().Bool("no-progress", false, "hide the progress bar")

	// grid resolves the same area as the root command
	shareFlags(gridCmd, rootCmd, "top-left", "bottom-right", "zoom", "tile-size", "url", "channels", "header")

	viper.SetDefault("headers", defaultHeaders)

	bindFlags(rootCmd, map[string]string{
		"tl":        "top-left",
		"br":        "bottom-right",
		"zoom":      "zoom",
		"url":       "url",
		"tile_size": "tile-size",
		"workers":   "workers",
		"timeout":   "timeout",
		"deadline":  "deadline",
		"dir":       "dir",
		"format":    "format",
		"channels":  "channels",
		"worldfile": "worldfile",
	})
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// shareFlags registers the named flags of src on dst as well. Both commands
// then set the same values, so one viper binding covers both.
func shareFlags(dst, src *cobra.Command, names ...string) {
	for _, name := range names {
		f := src.Flags().Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("sharing unknown flag %q", name))
		}
		dst.Flags().AddFlag(f)
	}
}

// bindFlags binds config keys to the flags of cmd.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding %s: %v", key, err))
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("preferences")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".satstitch"))
		}
	}

	viper.SetEnvPrefix("SATSTITCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Warning: could not read config:", err)
		}
		return
	}
	fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
}

// initLogging installs a text logger on stderr for the tile packages.
func initLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	tile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// requestFromConfig assembles the stitch request from flags, env and config.
func requestFromConfig(v *viper.Viper, flags *pflag.FlagSet) (stitcher.Request, error) {
	var req stitcher.Request

	tl, br := v.GetString("tl"), v.GetString("br")
	if tl == "" || br == "" {
		return req, fmt.Errorf("both --top-left and --bottom-right are required")
	}
	if !v.IsSet("zoom") {
		return req, fmt.Errorf("zoom level is required (use --zoom)")
	}

	var err error
	if req.TopLeft, err = tile.ParseGeoPoint(tl); err != nil {
		return req, fmt.Errorf("top-left: %w", err)
	}
	if req.BottomRight, err = tile.ParseGeoPoint(br); err != nil {
		return req, fmt.Errorf("bottom-right: %w", err)
	}

	req.Zoom = v.GetInt("zoom")
	req.URLTemplate = v.GetString("url")
	req.TileSize = v.GetInt("tile_size")
	req.Channels = v.GetInt("channels")

	extra, err := flags.GetStringToString("header")
	if err != nil {
		return req, err
	}
	req.Headers = mergeHeaders(v.GetStringMapString("headers"), extra)

	return req, nil
}

// mergeHeaders overlays extra on base. Keys are lowercased to match what
// viper returns; http.Header canonicalises them again on the way out.
func mergeHeaders(base, extra map[string]string) map[string]string {
	headers := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		headers[strings.ToLower(k)] = v
	}
	for k, v := range extra {
		headers[strings.ToLower(k)] = v
	}
	return headers
}

func runStitch(cmd *cobra.Command, args []string) error {
	// The root command with no area at all just prints help
	if !viper.IsSet("tl") {
		return cmd.Help()
	}

	req, err := requestFromConfig(viper.GetViper(), cmd.Flags())
	if err != nil {
		return err
	}

	format, err := tile.ParseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	open, _ := cmd.Flags().GetBool("open")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	opts := &stitch.Options{
		Output:         output,
		Dir:            viper.GetString("dir"),
		Format:         format,
		WriteWorldFile: viper.GetBool("worldfile"),
		Open:           open,
		Progress:       !noProgress,
		Workers:        viper.GetInt("workers"),
		Timeout:        viper.GetDuration("timeout"),
		Deadline:       viper.GetDuration("deadline"),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	fmt.Fprintln(cmd.ErrOrStderr(), "Downloading image...")
	if _, err := stitch.NewStitcher(opts, cmd.ErrOrStderr()).Run(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Done in %s\n", time.Since(start).Round(time.Millisecond))

	return nil
}
