//go:build windows

// Copyright 2026 workturnedplay
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

/* ---------------- Rect ---------------- */

// tileRect is the layout-space rectangle. Kept separate from the Win32 RECT
// (left/top/right/bottom) on purpose: tilers think in x/y/w/h.
type tileRect struct {
	x, y, w, h int32
}

func (r tileRect) toRECT() RECT {
	return RECT{Left: r.x, Top: r.y, Right: r.x + r.w, Bottom: r.y + r.h}
}

func fromRECT(r RECT) tileRect {
	return tileRect{x: r.Left, y: r.Top, w: r.Right - r.Left, h: r.Bottom - r.Top}
}

func (r tileRect) landscape() bool {
	return r.w >= r.h
}

// nearEqual allows the small drift windows exhibit after a move (DWM frame
// rounding): equal within tol pixels on every edge.
func (r tileRect) nearEqual(o tileRect, tol int32) bool {
	abs := func(v int32) int32 {
		if v < 0 {
			return -v
		}
		return v
	}
	return abs(r.x-o.x) <= tol && abs(r.y-o.y) <= tol &&
		abs(r.w-o.w) <= tol && abs(r.h-o.h) <= tol
}

/* ---------------- Tilers ---------------- */

// A tiler is a pure function from (workarea, window count) to rects, one per
// window, list order = slot order. No OS calls in here, ever.
type tiler func(work tileRect, n int) []tileRect

// dwindle splits the dominant axis in half, gives the first window the
// left (or top) half and recurses into the rest, the axis alternating
// naturally as the halves shrink.
func dwindle(work tileRect, n int) []tileRect {
	if n <= 0 {
		return nil
	}
	out := make([]tileRect, 0, n)
	cur := work
	for i := 0; i < n; i++ {
		if i == n-1 {
			out = append(out, cur)
			break
		}
		if cur.landscape() {
			half := cur.w / 2
			out = append(out, tileRect{cur.x, cur.y, half, cur.h})
			cur = tileRect{cur.x + half, cur.y, cur.w - half, cur.h}
		} else {
			half := cur.h / 2
			out = append(out, tileRect{cur.x, cur.y, cur.w, half})
			cur = tileRect{cur.x, cur.y + half, cur.w, cur.h - half}
		}
	}
	return out
}

// widescreenDwindle pins the first window to the full left half and
// dwindle-tiles the remainder in the right half. A lone window gets the
// whole workarea.
func widescreenDwindle(work tileRect, n int) []tileRect {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []tileRect{work}
	}
	half := work.w / 2
	out := make([]tileRect, 0, n)
	out = append(out, tileRect{work.x, work.y, half, work.h})
	right := tileRect{work.x + half, work.y, work.w - half, work.h}
	return append(out, dwindle(right, n-1)...)
}

// obsDwindle gives the first window the top half of the screen and
// dwindle-tiles everything else in the bottom strip. Shaped for a capture
// scene: big preview up top, sources below.
func obsDwindle(work tileRect, n int) []tileRect {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []tileRect{work}
	}
	half := work.h / 2
	out := make([]tileRect, 0, n)
	out = append(out, tileRect{work.x, work.y, work.w, half})
	bottom := tileRect{work.x, work.y + half, work.w, work.h - half}
	return append(out, dwindle(bottom, n-1)...)
}

// monocle gives every window the full workarea; activation order decides
// which one you see.
func monocle(work tileRect, n int) []tileRect {
	if n <= 0 {
		return nil
	}
	out := make([]tileRect, n)
	for i := range out {
		out[i] = work
	}
	return out
}

// static8 is a fixed eight-region template, two rows of four. Windows pinned
// by a static index land in their region regardless of list churn; windows
// past eight stack on the last region.
//
//	+----+----+----+----+
//	| 0  | 1  | 2  | 3  |
//	+----+----+----+----+
//	| 4  | 5  | 6  | 7  |
//	+----+----+----+----+
func static8(work tileRect, n int) []tileRect {
	if n <= 0 {
		return nil
	}
	cols, rows := int32(4), int32(2)
	cw := work.w / cols
	rh := work.h / rows
	region := func(i int) tileRect {
		c := int32(i) % cols
		r := int32(i) / cols
		w := cw
		if c == cols-1 {
			w = work.w - cw*(cols-1) // absorb rounding in the last column
		}
		h := rh
		if r == rows-1 {
			h = work.h - rh*(rows-1)
		}
		return tileRect{work.x + c*cw, work.y + r*rh, w, h}
	}
	out := make([]tileRect, n)
	for i := range out {
		if i < 8 {
			out[i] = region(i)
		} else {
			out[i] = region(7)
		}
	}
	return out
}

/* ---------------- Gap ---------------- */

// applyGap shaves half the gap off every inner edge: edges flush with the
// workarea border stay put, edges between two tiles each give up gap/2.
func applyGap(work tileRect, rects []tileRect, gap int32) []tileRect {
	if gap <= 0 {
		return rects
	}
	half := gap / 2
	out := make([]tileRect, len(rects))
	for i, r := range rects {
		g := r
		if r.x != work.x {
			g.x += half
			g.w -= half
		}
		if r.y != work.y {
			g.y += half
			g.h -= half
		}
		if r.x+r.w != work.x+work.w {
			g.w -= half
		}
		if r.y+r.h != work.y+work.h {
			g.h -= half
		}
		out[i] = g
	}
	return out
}

/* ---------------- Themes ---------------- */

// layoutTheme names a tiler plus its placement knobs. affinity lets a theme
// bid for a monitor by its physical attributes; highest bid wins, earlier
// declaration wins ties (strictly-greater comparison in pickTheme).
type layoutTheme struct {
	name     string
	tile     tiler
	gap      int32
	maxAreas int // 0 = unlimited; extras stack on the last rect
	affinity func(inches float64, ratio float64) int
}

var tilersByName = map[string]tiler{
	"dwindle":            dwindle,
	"widescreen_dwindle": widescreenDwindle,
	"obs_dwindle":        obsDwindle,
	"mono":               monocle,
	"static8":            static8,
}

// compute runs the theme's tiler capped at maxAreas and applies the gap.
// Windows beyond the cap share the final rect.
func (t *layoutTheme) compute(work tileRect, n int) []tileRect {
	if n <= 0 {
		return nil
	}
	areas := n
	if t.maxAreas > 0 && areas > t.maxAreas {
		areas = t.maxAreas
	}
	rects := t.tile(work, areas)
	rects = applyGap(work, rects, t.gap)
	for len(rects) < n {
		rects = append(rects, rects[len(rects)-1])
	}
	return rects
}

// pickTheme returns the index of the theme with the highest affinity for the
// monitor's physical attributes. Themes without an affinity function bid 0.
func pickTheme(themes []*layoutTheme, inches, ratio float64) int {
	best, bestScore := 0, -1<<31
	for i, t := range themes {
		score := 0
		if t.affinity != nil {
			score = t.affinity(inches, ratio)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
