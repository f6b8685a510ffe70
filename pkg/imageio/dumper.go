package imageio

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/pkg/errors"

	"miniisp/pkg/isp"
)

// PreviewName is the file DirDumper.Close writes the stage sheet to.
const PreviewName = "stages.jpg"

// DirDumper writes every intermediate buffer to a directory: float buffers
// as Radiance HDR (NN-stage.hdr) and byte buffers as PNG (NN-stage.png).
// Close adds a preview sheet with one tile per stage.
type DirDumper struct {
	dir string

	mu    sync.Mutex
	tiles []Tile
}

// NewDirDumper creates dir if needed.
func NewDirDumper(dir string) (*DirDumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating dump directory")
	}
	return &DirDumper{dir: dir}, nil
}

// Dir returns the output directory.
func (d *DirDumper) Dir() string { return d.dir }

// Dump implements isp.Dumper.
func (d *DirDumper) Dump(index int, stage isp.Stage, buf *isp.Buffer) error {
	preview, err := ToImage(buf)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%02d-%s", index, stage)
	if buf.Range.Kind == isp.KindByte {
		err = d.writeFile(name+".png", func(f *os.File) error { return EncodePNG(f, buf) })
	} else {
		err = d.writeFile(name+".hdr", func(f *os.File) error { return rgbe.Encode(f, toHDR(buf)) })
	}
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.tiles = append(d.tiles, Tile{Label: fmt.Sprintf("%02d %s", index, stage), Image: preview})
	d.mu.Unlock()
	return nil
}

// Close writes the preview sheet, if anything was dumped.
func (d *DirDumper) Close() error {
	d.mu.Lock()
	tiles := d.tiles
	d.tiles = nil
	d.mu.Unlock()
	if len(tiles) == 0 {
		return nil
	}

	data, err := EncodePreviewSheet(tiles)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(filepath.Join(d.dir, PreviewName), data, 0o644), "writing preview sheet")
}

func (d *DirDumper) writeFile(name string, encode func(*os.File) error) error {
	f, err := os.Create(filepath.Join(d.dir, name))
	if err != nil {
		return errors.Wrap(err, "creating dump file")
	}
	if err := encode(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	return errors.Wrap(f.Close(), "closing dump file")
}

// toHDR copies a float buffer into an HDR RGB image, samples unscaled.
func toHDR(buf *isp.Buffer) *hdr.RGB {
	m := hdr.NewRGB(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			m.SetRGB(x, y, hdrcolor.RGB{
				R: buf.At(x, y, isp.ChannelR),
				G: buf.At(x, y, isp.ChannelG),
				B: buf.At(x, y, isp.ChannelB),
			})
		}
	}
	return m
}
