//go:build js && wasm

package main

import (
	"bytes"
	"fmt"
	"syscall/js"

	"miniisp/pkg/imageio"
	"miniisp/pkg/isp"
	"miniisp/pkg/rawio"
)

var lastTiles []imageio.Tile

func main() {
	js.Global().Set("processFITS", js.FuncOf(processFITS))
	js.Global().Set("processRaw16", js.FuncOf(processRaw16))
	js.Global().Set("renderStages", js.FuncOf(renderStages))
	select {} // block forever
}

// processFITS(fileBytes, options) decodes a FITS capture and runs the pipeline.
func processFITS(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("usage: processFITS(fileBytes, options)")
	}
	opts, err := pipelineOptions(args, 1)
	if err != nil {
		return errorResult(err.Error())
	}

	img, err := rawio.ReadFitsFromBytes(copyBytes(args[0]))
	if err != nil {
		return errorResult("FITS parse error: " + err.Error())
	}
	c, err := rawio.FromFits(img, rawio.RawOptions{Pattern: opts.Pattern})
	if err != nil {
		return errorResult("FITS parse error: " + err.Error())
	}
	return runPipeline(c, opts)
}

// processRaw16(fileBytes, width, height, options) runs the pipeline over
// little-endian 16-bit samples.
func processRaw16(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("usage: processRaw16(fileBytes, width, height, options)")
	}
	opts, err := pipelineOptions(args, 3)
	if err != nil {
		return errorResult(err.Error())
	}

	bitDepth := rawio.DefaultBitDepth
	if len(args) > 3 && args[3].Type() == js.TypeObject {
		if v := args[3].Get("bitDepth"); v.Type() == js.TypeNumber {
			bitDepth = v.Int()
		}
	}
	grid, err := rawio.DecodeRaw16(copyBytes(args[0]), args[1].Int(), args[2].Int(), bitDepth)
	if err != nil {
		return errorResult("raw16 decode error: " + err.Error())
	}
	return runPipeline(&rawio.Capture{Grid: grid, Matrix: isp.IdentityMatrix(), Pattern: opts.Pattern}, opts)
}

// renderStages returns a JPEG preview sheet of the last run's stages.
func renderStages(this js.Value, args []js.Value) interface{} {
	if len(lastTiles) == 0 {
		return js.Null()
	}
	jpegBytes, err := imageio.EncodePreviewSheet(lastTiles)
	if err != nil {
		return js.Null()
	}
	return toUint8Array(jpegBytes)
}

type tileDumper struct {
	tiles []imageio.Tile
}

func (d *tileDumper) Dump(index int, stage isp.Stage, buf *isp.Buffer) error {
	img, err := imageio.ToImage(buf)
	if err != nil {
		return err
	}
	d.tiles = append(d.tiles, imageio.Tile{Label: fmt.Sprintf("%02d %s", index, stage), Image: img})
	return nil
}

func runPipeline(c *rawio.Capture, opts isp.Options) interface{} {
	opts.Pattern = c.Pattern
	dumper := &tileDumper{}
	opts.Dumper = dumper

	p, err := isp.NewPipeline(opts)
	if err != nil {
		return errorResult(err.Error())
	}
	res, err := p.Run(c.Grid, c.Matrix)
	if err != nil {
		return errorResult("pipeline error: " + err.Error())
	}
	lastTiles = dumper.tiles

	var png bytes.Buffer
	if err := imageio.EncodePNG(&png, res.Image); err != nil {
		return errorResult(err.Error())
	}

	jsStages := make([]interface{}, len(res.Stages))
	for i, s := range res.Stages {
		jsStages[i] = map[string]interface{}{
			"stage": string(s.Stage),
			"range": s.Range.String(),
			"min":   s.Stats.Min,
			"max":   s.Stats.Max,
		}
	}
	return js.ValueOf(map[string]interface{}{
		"width":    c.Grid.Width,
		"height":   c.Grid.Height,
		"bitDepth": c.Grid.BitDepth,
		"pattern":  c.Pattern.String(),
		"gains": map[string]interface{}{
			"red":   res.Gains.Red,
			"green": res.Gains.Green,
			"blue":  res.Gains.Blue,
		},
		"stages": jsStages,
		"png":    toUint8Array(png.Bytes()),
	})
}

// pipelineOptions reads the optional {pattern, method, ratio, gamma,
// maxValue} object at args[i] over the defaults.
func pipelineOptions(args []js.Value, i int) (isp.Options, error) {
	opts := isp.DefaultOptions()
	if len(args) <= i || args[i].Type() != js.TypeObject {
		return opts, nil
	}
	o := args[i]
	if v := o.Get("pattern"); v.Type() == js.TypeString {
		p, err := isp.ParsePattern(v.String())
		if err != nil {
			return opts, err
		}
		opts.Pattern = p
	}
	if v := o.Get("method"); v.Type() == js.TypeString {
		m, err := isp.ParseWhiteBalanceMethod(v.String())
		if err != nil {
			return opts, err
		}
		opts.WhiteBalance.Method = m
	}
	if v := o.Get("ratio"); v.Type() == js.TypeNumber {
		opts.WhiteBalance.Ratio = v.Float()
	}
	if v := o.Get("gamma"); v.Type() == js.TypeNumber {
		opts.Gamma.Gamma = v.Float()
	}
	if v := o.Get("maxValue"); v.Type() == js.TypeNumber {
		opts.Gamma.MaxValue = v.Float()
	}
	return opts, nil
}

func copyBytes(v js.Value) []byte {
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

func toUint8Array(b []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(b))
	js.CopyBytesToJS(arr, b)
	return arr
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
