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

import (
	"reflect"
	"testing"
)

var fullHD = tileRect{0, 0, 1920, 1080}

func TestDwindleThreeWindows(t *testing.T) {
	// A=(0,0,960,1080), B=(960,0,960,540), C=(960,540,960,540)
	got := dwindle(fullHD, 3)
	want := []tileRect{
		{0, 0, 960, 1080},
		{960, 0, 960, 540},
		{960, 540, 960, 540},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dwindle(1920x1080, 3) = %v, want %v", got, want)
	}
}

func TestDwindleCounts(t *testing.T) {
	for n := 0; n <= 9; n++ {
		got := dwindle(fullHD, n)
		if len(got) != n {
			t.Fatalf("dwindle n=%d returned %d rects", n, len(got))
		}
	}
}

func TestDwindlePortraitSplitsHorizontally(t *testing.T) {
	portrait := tileRect{0, 0, 1080, 1920}
	got := dwindle(portrait, 2)
	want := []tileRect{
		{0, 0, 1080, 960},
		{0, 960, 1080, 960},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("portrait dwindle = %v, want %v", got, want)
	}
}

func TestWidescreenDwindle(t *testing.T) {
	got := widescreenDwindle(fullHD, 3)
	want := []tileRect{
		{0, 0, 960, 1080},
		{960, 0, 960, 540},
		{960, 540, 960, 540},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("widescreen = %v, want %v", got, want)
	}

	if got := widescreenDwindle(fullHD, 1); got[0] != fullHD {
		t.Fatalf("lone window = %v, want full workarea", got[0])
	}
}

func TestObsDwindle(t *testing.T) {
	got := obsDwindle(fullHD, 3)
	want := []tileRect{
		{0, 0, 1920, 540},
		{0, 540, 960, 540},
		{960, 540, 960, 540},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("obs = %v, want %v", got, want)
	}
}

func TestMonocle(t *testing.T) {
	got := monocle(fullHD, 4)
	for i, r := range got {
		if r != fullHD {
			t.Fatalf("monocle rect %d = %v, want full workarea", i, r)
		}
	}
}

func TestStatic8Regions(t *testing.T) {
	got := static8(fullHD, 8)
	if len(got) != 8 {
		t.Fatalf("static8 returned %d rects", len(got))
	}
	if got[0] != (tileRect{0, 0, 480, 540}) {
		t.Fatalf("region 0 = %v", got[0])
	}
	if got[7] != (tileRect{1440, 540, 480, 540}) {
		t.Fatalf("region 7 = %v", got[7])
	}
	// The ninth window stacks on the last region.
	got = static8(fullHD, 9)
	if got[8] != got[7] {
		t.Fatalf("overflow window = %v, want %v", got[8], got[7])
	}
}

func TestApplyGapInnerEdgesOnly(t *testing.T) {
	rects := dwindle(fullHD, 2)
	gapped := applyGap(fullHD, rects, 8)
	// Left window: only its right edge is inner.
	if gapped[0] != (tileRect{0, 0, 956, 1080}) {
		t.Fatalf("left = %v", gapped[0])
	}
	// Right window: only its left edge is inner.
	if gapped[1] != (tileRect{964, 0, 956, 1080}) {
		t.Fatalf("right = %v", gapped[1])
	}
}

func TestTilersArePure(t *testing.T) {
	// layout(layout(S)) == layout(S): same inputs, same rects, every time.
	for name, tile := range tilersByName {
		a := tile(fullHD, 5)
		b := tile(fullHD, 5)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("tiler %s is not deterministic", name)
		}
	}
}

func TestThemeMaxAreasStacksOverflow(t *testing.T) {
	th := &layoutTheme{name: "dwindle", tile: dwindle, maxAreas: 2}
	rects := th.compute(fullHD, 4)
	if len(rects) != 4 {
		t.Fatalf("compute returned %d rects", len(rects))
	}
	if rects[2] != rects[1] || rects[3] != rects[1] {
		t.Fatalf("overflow windows must stack on the last tiling area: %v", rects)
	}
}

func TestPickThemeDeclarationOrderBreaksTies(t *testing.T) {
	bid := func(score int) func(float64, float64) int {
		return func(inches, ratio float64) int { return score }
	}
	themes := []*layoutTheme{
		{name: "a", tile: dwindle, affinity: bid(5)},
		{name: "b", tile: dwindle, affinity: bid(5)},
		{name: "c", tile: dwindle, affinity: bid(7)},
	}
	if got := pickTheme(themes, 27, 16.0/9); got != 2 {
		t.Fatalf("pickTheme = %d, want the highest bid", got)
	}
	themes[2].affinity = bid(5)
	if got := pickTheme(themes, 27, 16.0/9); got != 0 {
		t.Fatalf("pickTheme = %d, want the earliest declared on a tie", got)
	}
}

func TestNearEqual(t *testing.T) {
	a := tileRect{100, 100, 500, 400}
	if !a.nearEqual(tileRect{101, 99, 501, 399}, 2) {
		t.Fatal("within tolerance must match")
	}
	if a.nearEqual(tileRect{104, 100, 500, 400}, 2) {
		t.Fatal("past tolerance must not match")
	}
}
