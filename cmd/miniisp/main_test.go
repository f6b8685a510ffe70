package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func readPNG(t *testing.T, path string) *image.NRGBA {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func assertSolid(t *testing.T, img *image.NRGBA, want uint8) {
	t.Helper()
	for i := 0; i < len(img.Pix); i += 4 {
		require.Equal(t, []uint8{want, want, want}, img.Pix[i:i+3], "pixel %d", i/4)
	}
}

// The default flat capture reads 818/512/205 of 1023. Perfect reflector
// lifts all channels to 818, and (818/1023)^(1/2.2) * 255 = 230.35.
func TestSimulate(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sim.png")
	raw := filepath.Join(dir, "sim.raw")

	stdout, err := runCLI(t, "simulate", "--out", out, "--raw", raw)
	require.NoError(t, err)
	assert.Contains(t, stdout, "R=818 G=512 B=205")
	assert.Contains(t, stdout, "=== ISP Results ===")
	assert.Contains(t, stdout, "Bayer pattern:  RGGB")

	img := readPNG(t, out)
	assert.Equal(t, 4, img.Bounds().Dx())
	assertSolid(t, img, 230)

	info, err := os.Stat(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(4*4*2), info.Size())
}

func TestProcessRaw16MatchesSimulate(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "cap.raw")
	_, err := runCLI(t, "simulate", "--pattern", "bggr", "--out", filepath.Join(dir, "sim.png"), "--raw", raw)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.png")
	dump := filepath.Join(dir, "stages")
	stdout, err := runCLI(t, "process", raw,
		"--width", "4", "--height", "4", "--pattern", "BGGR",
		"--out", out, "--dump-dir", dump)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Loading: "+raw)
	assert.Contains(t, stdout, "Stages dumped:")

	assertSolid(t, readPNG(t, out), 230)
	for _, name := range []string{
		"00-demosaic.hdr", "01-white-balance.hdr", "02-color-correction.hdr",
		"03-gamma.png", "stages.jpg",
	} {
		_, err := os.Stat(filepath.Join(dump, name))
		assert.NoError(t, err, name)
	}
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "isp.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("gamma: 1.0\nlog_level: warn\n"), 0o644))

	// With gamma 1 the output is 818/1023 * 255 = 203.9.
	out := filepath.Join(dir, "linear.png")
	_, err := runCLI(t, "--config", cfg, "simulate", "--out", out)
	require.NoError(t, err)
	assertSolid(t, readPNG(t, out), 203)

	out = filepath.Join(dir, "gamma.png")
	_, err = runCLI(t, "--config", cfg, "simulate", "--out", out, "--gamma", "2.2")
	require.NoError(t, err)
	assertSolid(t, readPNG(t, out), 230)
}

func TestExtractFits(t *testing.T) {
	dir := t.TempDir()
	var fits bytes.Buffer
	for _, c := range []string{
		fmt.Sprintf("%-8s= %20s", "SIMPLE", "T"),
		fmt.Sprintf("%-8s= %20s", "BITPIX", "8"),
		fmt.Sprintf("%-8s= %20s", "NAXIS", "2"),
		fmt.Sprintf("%-8s= %20s", "NAXIS1", "2"),
		fmt.Sprintf("%-8s= %20s", "NAXIS2", "2"),
		fmt.Sprintf("%-8s= %20s", "BAYERPAT", "'GRBG'"),
		"END",
	} {
		fits.WriteString(fmt.Sprintf("%-80s", c))
	}
	for fits.Len()%2880 != 0 {
		fits.WriteByte(' ')
	}
	fits.Write([]byte{10, 20, 30, 40})
	src := filepath.Join(dir, "light.fits")
	require.NoError(t, os.WriteFile(src, fits.Bytes(), 0o644))

	outDir := filepath.Join(dir, "extracted")
	stdout, err := runCLI(t, "extract", src, "--out-dir", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 x 2, 8-bit, GRBG")
	assert.Contains(t, stdout, "--pattern GRBG")

	raw, err := os.ReadFile(filepath.Join(outDir, "light.raw"))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 0, 20, 0, 30, 0, 40, 0}, raw)

	ccm, err := os.ReadFile(filepath.Join(outDir, CCMName))
	require.NoError(t, err)
	assert.Equal(t, "1.000000 0.000000 0.000000\n0.000000 1.000000 0.000000\n0.000000 0.000000 1.000000\n", string(ccm))
}

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestBatch(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writePNG(t, filepath.Join(in, "cast.png"), color.NRGBA{R: 50, G: 100, B: 150, A: 255})

	stdout, err := runCLI(t, "batch", in, out, "--method", "grey-world", "--workers", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Processed:      1")
	assertSolid(t, readPNG(t, filepath.Join(out, "cast.png")), 100)

	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("nope"), 0o644))
	stdout, err = runCLI(t, "batch", in, out, "--method", "grey-world")
	assert.EqualError(t, err, "1 of 2 images failed")
	assert.Contains(t, stdout, "DecodeFailure")
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"develop"}},
		{"missing capture", []string{"process", filepath.Join(dir, "none.raw"), "--width", "4", "--height", "4"}},
		{"unsupported container", []string{"process", filepath.Join(dir, "photo.cr2")}},
		{"bad pattern", []string{"simulate", "--pattern", "RGBW", "--out", filepath.Join(dir, "x.png")}},
		{"bad level", []string{"simulate", "--red", "1.5", "--out", filepath.Join(dir, "x.png")}},
		{"bad ratio", []string{"simulate", "--ratio", "1", "--out", filepath.Join(dir, "x.png")}},
		{"bad log level", []string{"--log-level", "loud", "simulate"}},
		{"missing config", []string{"--config", filepath.Join(dir, "none.yaml"), "simulate"}},
		{"batch args", []string{"batch", dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
