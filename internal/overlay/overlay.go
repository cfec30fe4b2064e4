// Package overlay draws detection boxes onto JPEG frames.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sweeney/source-watcher/internal/logic"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 90

const thickness = 2

var (
	boxColor   = color.RGBA{R: 255, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Label returns the caption drawn above a box.
func Label(confidence float64) string {
	return fmt.Sprintf("Intruder! %.2f", confidence)
}

// Annotate decodes a JPEG frame, draws a red rectangle and label for each
// detection and re-encodes it.
func Annotate(frame []byte, dets []logic.Detection, quality int) ([]byte, error) {
	src, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	for _, d := range dets {
		drawBox(img, d.Box)
		drawLabel(img, d.Box, Label(d.Confidence))
	}

	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBox(img *image.RGBA, b logic.Box) {
	r := image.Rect(b.X1, b.Y1, b.X2, b.Y2).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	fill := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), fill, image.Point{}, draw.Src)
	}
}

// drawLabel writes text on a red strip just above the box, or inside its
// top edge when the box touches the top of the frame.
func drawLabel(img *image.RGBA, b logic.Box, text string) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	width := font.MeasureString(face, text).Ceil()

	top := b.Y1 - height - 2
	if top < img.Bounds().Min.Y {
		top = b.Y1
	}
	strip := image.Rect(b.X1, top, b.X1+width+4, top+height+2).Intersect(img.Bounds())
	if strip.Empty() {
		return
	}
	draw.Draw(img, strip, image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(b.X1 + 2), Y: fixed.I(top + 1 + metrics.Ascent.Ceil())},
	}
	d.DrawString(text)
}
