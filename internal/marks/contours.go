package marks

import (
	"image"
	"math"
)

// contour is one connected ink component together with the region it
// encloses. For an empty printed bubble the ink is a thin ring and the
// enclosed region is the full disc; for a filled bubble the two coincide.
type contour struct {
	ink      int     // ink pixels belonging to the component
	enclosed int     // ink pixels plus interior holes
	cx, cy   float64 // centroid of the enclosed region
	bounds   image.Rectangle
	rmax     float64 // max distance from centroid to an enclosed pixel
}

// circularity is the ratio of enclosed area to the area of the bounding
// circle around the region. Near 1.0 for discs and rings, small for
// smears, lines and text fragments.
func (c *contour) circularity() float64 {
	if c.rmax <= 0 {
		return 0
	}
	return float64(c.enclosed) / (math.Pi * c.rmax * c.rmax)
}

// fillRatio is the fraction of the enclosed region covered by ink: the
// dark fraction inside the candidate's bounding shape relative to its
// local background.
func (c *contour) fillRatio() float64 {
	if c.enclosed == 0 {
		return 0
	}
	return float64(c.ink) / float64(c.enclosed)
}

// findContours groups connected ink pixels into components using
// stack-based flood fill with 8-connectivity, then closes each component
// by filling interior holes.
//
// Components of fewer than 8 ink pixels are discarded as noise before any
// configured filtering runs.
func findContours(mask [][]bool) []*contour {
	h := len(mask)
	if h == 0 {
		return nil
	}
	w := len(mask[0])

	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	var contours []*contour
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y][x] || visited[y][x] {
				continue
			}
			pixels := floodFill(mask, visited, x, y)
			if len(pixels) < 8 {
				continue
			}
			contours = append(contours, closeComponent(pixels))
		}
	}
	return contours
}

// floodFill collects the connected component containing (startX, startY).
// Iterative to avoid stack overflow on large blobs.
func floodFill(mask, visited [][]bool, startX, startY int) []image.Point {
	h := len(mask)
	w := len(mask[0])

	var pixels []image.Point
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= w || p.Y < 0 || p.Y >= h {
			continue
		}
		if visited[p.Y][p.X] || !mask[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		pixels = append(pixels, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
	return pixels
}

// closeComponent computes the enclosed region of an ink component: its own
// pixels plus any interior holes. Holes are found by flood-filling the
// background inward from the bounding-box border; background cells the
// fill cannot reach are enclosed by the ink.
func closeComponent(pixels []image.Point) *contour {
	minX, minY := pixels[0].X, pixels[0].Y
	maxX, maxY := minX, minY
	for _, p := range pixels {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	bw := maxX - minX + 1
	bh := maxY - minY + 1

	// Local grid: 0 background, 1 ink, 2 reachable background.
	grid := make([][]uint8, bh)
	for y := range grid {
		grid[y] = make([]uint8, bw)
	}
	for _, p := range pixels {
		grid[p.Y-minY][p.X-minX] = 1
	}

	// 4-connected background fill seeded from every border cell.
	var stack []image.Point
	for x := 0; x < bw; x++ {
		stack = append(stack, image.Point{X: x, Y: 0}, image.Point{X: x, Y: bh - 1})
	}
	for y := 0; y < bh; y++ {
		stack = append(stack, image.Point{X: 0, Y: y}, image.Point{X: bw - 1, Y: y})
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.X < 0 || p.X >= bw || p.Y < 0 || p.Y >= bh {
			continue
		}
		if grid[p.Y][p.X] != 0 {
			continue
		}
		grid[p.Y][p.X] = 2
		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}

	c := &contour{
		ink:    len(pixels),
		bounds: image.Rect(minX, minY, maxX+1, maxY+1),
	}

	var sumX, sumY float64
	for y := 0; y < bh; y++ {
		for x := 0; x < bw; x++ {
			if grid[y][x] == 2 {
				continue
			}
			c.enclosed++
			sumX += float64(x + minX)
			sumY += float64(y + minY)
		}
	}
	c.cx = sumX / float64(c.enclosed)
	c.cy = sumY / float64(c.enclosed)

	for y := 0; y < bh; y++ {
		for x := 0; x < bw; x++ {
			if grid[y][x] == 2 {
				continue
			}
			dx := float64(x+minX) - c.cx
			dy := float64(y+minY) - c.cy
			if d := math.Sqrt(dx*dx + dy*dy); d > c.rmax {
				c.rmax = d
			}
		}
	}

	return c
}
