// Package render draws a run's route as an image.
package render

import (
	"fmt"
	"io"
	"math"

	"github.com/gogpu/gg"
	"github.com/runtrace/runtrace/internal/geo"
)

// Options controls the route image.
type Options struct {
	Width     int
	Height    int
	Margin    float64
	LineWidth float64
	Route     string // hex colors
	Start     string
	Current   string
	Paper     string
}

// DefaultOptions returns a 640x480 image with the dashboard palette.
func DefaultOptions() Options {
	return Options{
		Width:     640,
		Height:    480,
		Margin:    24,
		LineWidth: 4,
		Route:     "#22c55e",
		Start:     "#f9fafb",
		Current:   "#dc2626",
		Paper:     "#111827",
	}
}

// Point is a projected position in image pixels.
type Point struct {
	X, Y float64
}

// Project maps points onto a width x height canvas with margin on every
// side. It uses an equirectangular projection scaled by the cosine of the
// middle latitude, keeps the aspect ratio and centers the route. North is
// up. A single point, or points that all coincide, land in the center.
func Project(points []geo.Fix, width, height int, margin float64) []Point {
	if len(points) == 0 {
		return nil
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLon, maxLon := points[0].Lon, points[0].Lon
	for _, p := range points[1:] {
		minLat = math.Min(minLat, p.Lat)
		maxLat = math.Max(maxLat, p.Lat)
		minLon = math.Min(minLon, p.Lon)
		maxLon = math.Max(maxLon, p.Lon)
	}

	kx := math.Cos((minLat + maxLat) / 2 * math.Pi / 180)
	spanX := (maxLon - minLon) * kx
	spanY := maxLat - minLat

	availW := math.Max(float64(width)-2*margin, 1)
	availH := math.Max(float64(height)-2*margin, 1)

	scale := 0.0
	switch {
	case spanX > 0 && spanY > 0:
		scale = math.Min(availW/spanX, availH/spanY)
	case spanX > 0:
		scale = availW / spanX
	case spanY > 0:
		scale = availH / spanY
	}

	offX := (float64(width) - spanX*scale) / 2
	offY := (float64(height) - spanY*scale) / 2

	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{
			X: offX + (p.Lon-minLon)*kx*scale,
			Y: offY + (maxLat-p.Lat)*scale,
		}
	}
	return out
}

// RoutePNG draws the route and writes it to w as PNG. The start is marked
// with a ring and the latest point with a dot. An empty route produces a
// blank canvas.
func RoutePNG(w io.Writer, points []geo.Fix, opts Options) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", opts.Width, opts.Height)
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	defer dc.Close()
	dc.ClearWithColor(gg.Hex(opts.Paper))

	px := Project(points, opts.Width, opts.Height, opts.Margin)
	if len(px) > 1 {
		dc.SetHexColor(opts.Route)
		dc.SetLineWidth(opts.LineWidth)
		dc.SetLineCap(gg.LineCapRound)
		dc.SetLineJoin(gg.LineJoinRound)
		dc.MoveTo(px[0].X, px[0].Y)
		for _, p := range px[1:] {
			dc.LineTo(p.X, p.Y)
		}
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("stroke route: %w", err)
		}
	}

	if len(px) > 0 {
		r := opts.LineWidth * 1.5
		start := px[0]
		dc.SetHexColor(opts.Start)
		dc.SetLineWidth(opts.LineWidth / 2)
		dc.DrawCircle(start.X, start.Y, r)
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("draw start marker: %w", err)
		}

		cur := px[len(px)-1]
		dc.SetHexColor(opts.Current)
		dc.DrawCircle(cur.X, cur.Y, r)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("draw current marker: %w", err)
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
