package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Tile is one labelled image on a preview sheet.
type Tile struct {
	Label string
	Image image.Image
}

const (
	tileSize   = 256
	tileGap    = 8
	labelBand  = 22
	sheetColor = 24
)

// PreviewSheet lays tiles out left to right, each scaled with nearest
// neighbour sampling to fit a tileSize square and captioned underneath.
func PreviewSheet(tiles []Tile) (*image.RGBA, error) {
	if len(tiles) == 0 {
		return nil, errors.New("no tiles for preview sheet")
	}
	w := len(tiles)*(tileSize+tileGap) + tileGap
	h := tileSize + labelBand + 2*tileGap
	sheet := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(sheet, sheet.Bounds(), image.NewUniform(color.RGBA{sheetColor, sheetColor, sheetColor, 255}), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	textColor := color.RGBA{230, 230, 230, 255}
	for i, t := range tiles {
		x0 := tileGap + i*(tileSize+tileGap)
		dst := fitRect(t.Image.Bounds(), image.Rect(x0, tileGap, x0+tileSize, tileGap+tileSize))
		draw.NearestNeighbor.Scale(sheet, dst, t.Image, t.Image.Bounds(), draw.Src, nil)
		drawCenteredText(sheet, face, t.Label, x0+tileSize/2, tileGap+tileSize+labelBand-6, textColor)
	}
	return sheet, nil
}

// EncodePreviewSheet renders the sheet as a JPEG.
func EncodePreviewSheet(tiles []Tile) ([]byte, error) {
	sheet, err := PreviewSheet(tiles)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sheet, &jpeg.Options{Quality: 90}); err != nil {
		return nil, errors.Wrap(err, "encoding preview sheet")
	}
	return buf.Bytes(), nil
}

// fitRect centres the largest rectangle with src's aspect ratio inside box.
func fitRect(src, box image.Rectangle) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	bw, bh := box.Dx(), box.Dy()
	w, h := bw, sh*bw/sw
	if h > bh {
		w, h = sw*bh/sh, bh
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x := box.Min.X + (bw-w)/2
	y := box.Min.Y + (bh-h)/2
	return image.Rect(x, y, x+w, y+h)
}

// drawText draws a string with its baseline starting at (x, y).
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCenteredText draws a string horizontally centred on cx.
func drawCenteredText(img *image.RGBA, face font.Face, s string, cx, y int, c color.RGBA) {
	advance := font.MeasureString(face, s)
	drawText(img, face, s, cx-advance.Round()/2, y, c)
}
