package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/satstitch/internal/stitcher"
	"github.com/kiesman99/satstitch/pkg/tile"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Show the tiles and raster size for a bounding box without downloading",
	Long: `Resolve the tile range, pixel origin and raster size that a download of the
given bounding box would produce. Uses the same flags and preferences as the
root command.

Example:
  satstitch grid -t "52.54, 5.65" -b "52.50, 5.75" -z 13`,
	RunE: runGrid,
}

func init() {
	// Flags are shared from the root command in root.go, whose init runs
	// after this one.
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	req, err := requestFromConfig(viper.GetViper(), cmd.Flags())
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	printGrid(cmd, req)
	return nil
}

func printGrid(cmd *cobra.Command, req stitcher.Request) {
	g := req.Grid()
	bound := g.Bound(req.Zoom)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Zoom:              %d\n", req.Zoom)
	fmt.Fprintf(out, "Tile size:         %d\n", g.TileSize)
	fmt.Fprintf(out, "Top-left tile:     %s\n", g.TopLeftTile)
	fmt.Fprintf(out, "Bottom-right tile: %s\n", g.BottomRightTile)
	fmt.Fprintf(out, "Pixel origin:      %d, %d\n", g.TopLeftPixel.X, g.TopLeftPixel.Y)
	fmt.Fprintf(out, "Raster size:       %dx%d\n", g.Width, g.Height)
	fmt.Fprintf(out, "Tiles:             %d (%d columns, %d rows)\n", g.Tiles(), g.Cols(), g.Rows())
	fmt.Fprintf(out, "Raster bounds:     %.6f, %.6f to %.6f, %.6f\n",
		bound.Max[1], bound.Min[0], bound.Min[1], bound.Max[0])
	if viper.GetBool("verbose") {
		fmt.Fprintf(out, "First tile URL:    %s\n", tile.BuildURL(req.URLTemplate, g.TopLeftTile, req.Zoom))
	}
}
