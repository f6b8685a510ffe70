package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniisp/pkg/isp"
)

func TestBGRRoundTrip(t *testing.T) {
	data := []byte{
		10, 20, 30, 40, 50, 60,
		70, 80, 90, 100, 110, 120,
	}
	buf, err := FromBGR(data, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, isp.Byte, buf.Range)
	assert.Equal(t, 30.0, buf.At(0, 0, isp.ChannelR))
	assert.Equal(t, 10.0, buf.At(0, 0, isp.ChannelB))
	assert.Equal(t, 110.0, buf.At(1, 1, isp.ChannelG))

	out, err := ToBGR(buf)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = FromBGR(data[:5], 2, 2)
	assert.True(t, errors.Is(err, isp.ErrShapeMismatch))

	norm, err := isp.NewBuffer(1, 1, isp.Normalized)
	require.NoError(t, err)
	_, err = ToBGR(norm)
	assert.True(t, errors.Is(err, isp.ErrRangeMismatch))
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(3, 5, 5, 6))
	src.Set(3, 5, color.NRGBA{R: 255, G: 128, B: 0, A: 255})
	src.Set(4, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	buf, err := FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, 2, buf.Width)
	assert.Equal(t, 1, buf.Height)
	assert.Equal(t, []float64{255, 128, 0, 1, 2, 3}, buf.Pix)

	img, err := ToImage(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 128, 0, 255, 1, 2, 3, 255}, img.Pix)
}

func TestToImageScalesFloatRanges(t *testing.T) {
	buf, err := isp.NewBuffer(1, 1, isp.Normalized)
	require.NoError(t, err)
	copy(buf.Pix, []float64{0.5, 1.2, -0.1})

	img, err := ToImage(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint8{128, 255, 0, 255}, img.Pix)

	linear, err := isp.Linear(1023)
	require.NoError(t, err)
	buf.Range = linear
	copy(buf.Pix, []float64{1023, 0, 511.5})
	img, err = ToImage(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 128, 255}, img.Pix)
}

func TestEncodePNG(t *testing.T) {
	buf, err := FromBGR([]byte{1, 2, 3, 4, 5, 6}, 2, 1)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, EncodePNG(&out, buf))
	img, err := png.Decode(&out)
	require.NoError(t, err)

	back, err := FromImage(img)
	require.NoError(t, err)
	assert.Equal(t, buf.Pix, back.Pix)
}

func TestPreviewSheet(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 4, 2))
	tall := image.NewRGBA(image.Rect(0, 0, 10, 40))
	sheet, err := PreviewSheet([]Tile{{Label: "00 demosaic", Image: small}, {Label: "01 gamma", Image: tall}})
	require.NoError(t, err)
	assert.Equal(t, 2*(tileSize+tileGap)+tileGap, sheet.Bounds().Dx())
	assert.Equal(t, tileSize+labelBand+2*tileGap, sheet.Bounds().Dy())

	// Caption pixels differ from the background.
	bg := color.RGBA{sheetColor, sheetColor, sheetColor, 255}
	lit := 0
	for y := tileGap + tileSize; y < sheet.Bounds().Dy(); y++ {
		for x := 0; x < tileGap+tileSize; x++ {
			if sheet.RGBAAt(x, y) != bg {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 0)

	_, err = PreviewSheet(nil)
	assert.Error(t, err)
}

func TestFitRect(t *testing.T) {
	box := image.Rect(0, 0, 256, 256)
	assert.Equal(t, image.Rect(0, 64, 256, 192), fitRect(image.Rect(0, 0, 4, 2), box))
	assert.Equal(t, image.Rect(96, 0, 160, 256), fitRect(image.Rect(0, 0, 10, 40), box))
	assert.Equal(t, box, fitRect(image.Rect(0, 0, 3, 3), box))
}

func TestDirDumper(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	d, err := NewDirDumper(dir)
	require.NoError(t, err)

	grid, err := isp.SyntheticGrid(4, 4, 10, isp.RGGB, 100, 500, 900)
	require.NoError(t, err)
	opts := isp.DefaultOptions()
	opts.Dumper = d
	p, err := isp.NewPipeline(opts)
	require.NoError(t, err)
	_, err = p.Run(grid, nil)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	for _, name := range []string{"00-demosaic.hdr", "01-white-balance.hdr", "02-color-correction.hdr", "03-gamma.png", PreviewName} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	f, err := os.Open(filepath.Join(dir, "00-demosaic.hdr"))
	require.NoError(t, err)
	defer f.Close()
	m, err := rgbe.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), m.Bounds())

	sheet, err := os.Open(filepath.Join(dir, PreviewName))
	require.NoError(t, err)
	defer sheet.Close()
	cfg, err := jpeg.DecodeConfig(sheet)
	require.NoError(t, err)
	assert.Equal(t, 4*(tileSize+tileGap)+tileGap, cfg.Width)

	// A second Close has nothing to write.
	assert.NoError(t, d.Close())
}
