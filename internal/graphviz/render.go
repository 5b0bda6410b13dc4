package graphviz

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
)

const (
	imageSize    = 800
	nodeRadius   = 6
	marginPx     = 60
	bgGray       = 250
	edgeGray     = 200
	nodeRingGray = 60
)

var nodeFill = map[string]color.RGBA{
	"person":   {R: 66, G: 135, B: 245, A: 255},
	"project":  {R: 52, G: 168, B: 83, A: 255},
	"task":     {R: 251, G: 188, B: 5, A: 255},
	"reminder": {R: 234, G: 67, B: 53, A: 255},
	"debt":     {R: 156, G: 39, B: 176, A: 255},
}

var defaultFill = color.RGBA{R: 120, G: 120, B: 120, A: 255}

// RenderPNG draws the current graph as a PNG for spec §6's "Graph viz:
// image" endpoint. With no real layout library in the example pack and a
// force-directed layout being out of proportion to this endpoint's purpose
// (a quick visual sanity check, not a production graph explorer), nodes
// are placed evenly around a circle and edges are drawn as straight lines.
func (s *Service) RenderPNG(ctx context.Context) ([]byte, error) {
	export, err := s.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("graphviz: render: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: bgGray, G: bgGray, B: bgGray, A: 255}}, image.Point{}, draw.Src)

	positions := circularLayout(export.Nodes)

	for _, e := range export.Edges {
		from, ok1 := positions[e.SourceID]
		to, ok2 := positions[e.TargetID]
		if !ok1 || !ok2 {
			continue
		}
		drawLine(img, from, to, color.RGBA{R: edgeGray, G: edgeGray, B: edgeGray, A: 255})
	}

	for _, n := range export.Nodes {
		p := positions[n.ID]
		fill, ok := nodeFill[n.Type]
		if !ok {
			fill = defaultFill
		}
		drawCircle(img, p, nodeRadius, fill)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("graphviz: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type point struct {
	x, y float64
}

// circularLayout places nodes evenly spaced around a circle centered in
// the image, indexed by entity ID for edge lookups.
func circularLayout(nodes []Node) map[string]point {
	positions := make(map[string]point, len(nodes))
	if len(nodes) == 0 {
		return positions
	}

	center := float64(imageSize) / 2
	radius := center - marginPx
	step := 2 * math.Pi / float64(len(nodes))

	for i, n := range nodes {
		angle := step * float64(i)
		positions[n.ID] = point{
			x: center + radius*math.Cos(angle),
			y: center + radius*math.Sin(angle),
		}
	}
	return positions
}

// drawLine draws a straight line with Bresenham's algorithm — no anti-
// aliasing, which is fine for a debug/preview image.
func drawLine(img *image.RGBA, from, to point, c color.RGBA) {
	x0, y0 := int(from.x), int(from.y)
	x1, y1 := int(to.x), int(to.y)

	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy

	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func drawCircle(img *image.RGBA, center point, radius int, c color.RGBA) {
	cx, cy := int(center.x), int(center.y)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
