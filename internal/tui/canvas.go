package tui

import (
	"math"
	"strings"

	"github.com/san-kum/fixstep/internal/dynamo"
)

// Canvas is a fixed-size character grid.
type Canvas struct {
	w, h  int
	cells [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{w: w, h: h, cells: make([][]rune, h)}
	for i := range c.cells {
		c.cells[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	for y := range c.cells {
		for x := range c.cells[y] {
			c.cells[y][x] = ' '
		}
	}
}

func (c *Canvas) Set(x, y int, r rune) {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		c.cells[y][x] = r
	}
}

func (c *Canvas) At(x, y int) rune {
	if x >= 0 && x < c.w && y >= 0 && y < c.h {
		return c.cells[y][x]
	}
	return 0
}

// Line draws with Bresenham's algorithm.
func (c *Canvas) Line(x1, y1, x2, y2 int, r rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x1, y1, r)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.cells {
		b.WriteString("   ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	return b.String()
}

// Draw renders x as a picture of the named model. Models without a picture
// get one bar per state component.
func (c *Canvas) Draw(model string, x dynamo.State) {
	c.Clear()
	switch model {
	case "pendulum":
		c.drawPendulum(x)
	case "cartpole":
		c.drawCartpole(x)
	case "spring_mass", "spring_chain":
		c.drawSpring(x)
	default:
		c.drawBars(x)
	}
}

func (c *Canvas) drawPendulum(x dynamo.State) {
	if len(x) < 2 {
		return
	}
	theta := x[0]
	px, py := c.w/2, 1
	length := float64(c.h) * 0.65
	bx := px + int(length*math.Sin(theta))
	by := py + int(length*math.Cos(theta))

	c.Set(px, py, '▼')
	c.Line(px, py, bx, by, '│')
	c.Set(bx, by, '⬤')
}

func (c *Canvas) drawCartpole(x dynamo.State) {
	if len(x) < 4 {
		return
	}
	pos, theta := x[0], x[2]
	gy := c.h - 2
	cx := c.w/2 + int(pos*8)

	for i := 2; i < c.w-2; i++ {
		c.Set(i, gy+1, '═')
	}
	for dx := -3; dx <= 3; dx++ {
		c.Set(cx+dx, gy, '█')
	}

	plen := float64(c.h) * 0.6
	px := cx + int(plen*math.Sin(theta))
	py := gy - int(plen*math.Cos(theta))
	c.Line(cx, gy-1, px, py, '│')
	c.Set(px, py, '●')
}

func (c *Canvas) drawSpring(x dynamo.State) {
	cy := c.h / 2
	for y := cy - 2; y <= cy+2; y++ {
		c.Set(2, y, '▌')
	}

	// positions fill the first half of the state
	prev := 3
	for i := 0; i < len(x)/2; i++ {
		mx := 14 + i*14 + int(x[i]*6)
		for j := prev; j < mx-1; j += 2 {
			c.Set(j, cy, '~')
		}
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				c.Set(mx+dx, cy+dy, '█')
			}
		}
		prev = mx + 2
	}
}

func (c *Canvas) drawBars(x dynamo.State) {
	cy := c.h / 2
	for i := 2; i < c.w-2; i++ {
		c.Set(i, cy, '─')
	}
	if len(x) == 0 {
		return
	}

	bw := (c.w - 10) / len(x)
	if bw < 3 {
		bw = 3
	}
	maxVal := 1.0
	for _, v := range x {
		maxVal = math.Max(maxVal, math.Abs(v))
	}

	for i, v := range x {
		bx := 6 + i*bw
		bh := int((v / maxVal) * float64(c.h/2-1))
		if bh > 0 {
			for y := cy - 1; y >= cy-bh; y-- {
				c.Set(bx, y, '█')
			}
		} else {
			for y := cy + 1; y <= cy-bh; y++ {
				c.Set(bx, y, '█')
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
