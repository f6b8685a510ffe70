package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"miniisp/pkg/isp"
	"miniisp/pkg/rawio"
)

func newProcessCmd(a *app) *cobra.Command {
	var (
		pf       pipelineFlags
		width    int
		height   int
		bitDepth int
		ccmPath  string
	)
	cmd := &cobra.Command{
		Use:   "process <capture.raw|capture.fits>",
		Short: "Convert a raw Bayer capture to an RGB image",
		Long: `Process runs demosaic, white balance, color correction and gamma encoding
over a raw capture. raw16 files need --width and --height (or width/height
in the configuration file). FITS files carry their own size, and a BAYERPAT
header takes precedence over --pattern.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			cfg := *a.cfg
			pf.apply(fs, &cfg)
			if fs.Changed("width") {
				cfg.Width = width
			}
			if fs.Changed("height") {
				cfg.Height = height
			}
			if fs.Changed("bit-depth") {
				cfg.BitDepth = bitDepth
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			pattern, err := isp.ParsePattern(cfg.Pattern)
			if err != nil {
				return err
			}
			opts := rawio.RawOptions{
				Width:       cfg.Width,
				Height:      cfg.Height,
				BitDepth:    cfg.BitDepth,
				Pattern:     pattern,
				CCMPath:     ccmPath,
				Multipliers: cfg.Multipliers(),
			}
			if !fs.Changed("bit-depth") {
				opts.BitDepth = bitDepthFor(args[0], cfg.BitDepth)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loading: %s\n", args[0])
			c, err := rawio.Open(args[0], opts)
			if err != nil {
				return fmt.Errorf("reading capture: %w", err)
			}
			if ccmPath == "" {
				m, err := cfg.ColorMatrix()
				if err != nil {
					return err
				}
				if m != nil {
					c.Matrix = m
				}
			}
			return a.process(cmd.OutOrStdout(), &cfg, c, pf.out)
		},
	}
	fs := cmd.Flags()
	pf.bind(fs)
	fs.IntVar(&width, "width", 0, "raw16 width in pixels")
	fs.IntVar(&height, "height", 0, "raw16 height in pixels")
	fs.IntVar(&bitDepth, "bit-depth", 0, "sensor bit depth (raw16 default 10, FITS default from BITPIX)")
	fs.StringVar(&ccmPath, "ccm", "", "color correction matrix text file (3 rows of 3 or 4 numbers)")
	return cmd
}

func isRaw16(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".raw")
}
