package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"miniisp/pkg/isp"
	"miniisp/pkg/rawio"
)

// CCMName is the matrix file written next to extracted raw16 data.
const CCMName = "ccm.txt"

func newExtractCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "extract <capture.fits>",
		Short: "Write a capture's samples as raw16 and its color matrix as ccm.txt",
		Long: `Extract decodes a raw container and writes two files to the output
directory: <name>.raw with little-endian 16-bit samples and ccm.txt with the
color matrix, one row per line. The printed process command reads them back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := isp.ParsePattern(a.cfg.Pattern)
			if err != nil {
				return err
			}
			c, err := rawio.Open(args[0], rawio.RawOptions{
				Width:    a.cfg.Width,
				Height:   a.cfg.Height,
				BitDepth: bitDepthFor(args[0], a.cfg.BitDepth),
				Pattern:  pattern,
			})
			if err != nil {
				return fmt.Errorf("reading capture: %w", err)
			}
			m, err := a.cfg.ColorMatrix()
			if err != nil {
				return err
			}
			if m != nil {
				c.Matrix = m
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			rawPath := filepath.Join(outDir, base+".raw")
			ccmPath := filepath.Join(outDir, CCMName)
			if err := rawio.WriteRaw16(rawPath, c.Grid); err != nil {
				return err
			}
			if err := rawio.WriteCCM(ccmPath, c.Matrix); err != nil {
				return err
			}
			a.log.Info().
				Str("raw", rawPath).
				Str("ccm", ccmPath).
				Int("width", c.Grid.Width).
				Int("height", c.Grid.Height).
				Msg("extracted")

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Raw:      %s (%d x %d, %d-bit, %s)\n", rawPath, c.Grid.Width, c.Grid.Height, c.Grid.BitDepth, c.Pattern)
			fmt.Fprintf(w, "CCM:      %s\n", ccmPath)
			fmt.Fprintf(w, "Process:  miniisp process %s --width %d --height %d --bit-depth %d --pattern %s --ccm %s\n",
				rawPath, c.Grid.Width, c.Grid.Height, c.Grid.BitDepth, c.Pattern, ccmPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "d", ".", "directory for the raw16 and ccm.txt files")
	return cmd
}

// bitDepthFor keeps the configured depth for raw16 input and lets other
// containers report their own.
func bitDepthFor(path string, configured int) int {
	if isRaw16(path) {
		return configured
	}
	return 0
}
