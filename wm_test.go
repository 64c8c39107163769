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
	"testing"

	"golang.org/x/sys/windows"
)

// fakeOps records placement calls instead of touching Win32, and plays the
// OS's part of reporting rects back.
type fakeOps struct {
	setRectCalls int
	parks        []*managedWindow
	activated    []*managedWindow
	rects        map[windows.Handle]tileRect
}

func newFakeOps() *fakeOps {
	return &fakeOps{rects: map[windows.Handle]tileRect{}}
}

func (f *fakeOps) setRect(w *managedWindow, r tileRect) {
	f.setRectCalls++
	f.rects[w.hwnd] = r
}

func (f *fakeOps) activate(w *managedWindow) { f.activated = append(f.activated, w) }

func (f *fakeOps) minimize(w *managedWindow) { w.minimized = true }
func (f *fakeOps) restore(w *managedWindow)  { w.minimized = false }

func (f *fakeOps) park(w *managedWindow) {
	w.parked = true
	f.parks = append(f.parks, w)
	f.rects[w.hwnd] = tileRect{parkX, parkY, 0, 0}
}

func (f *fakeOps) unpark(w *managedWindow, r tileRect) {
	w.parked = false
	f.setRect(w, r)
}

func (f *fakeOps) queryRect(w *managedWindow) (tileRect, bool) {
	r, ok := f.rects[w.hwnd]
	return r, ok
}

func testMonitor(id string, x int32) *monitorInfo {
	return &monitorInfo{
		id:     id,
		rect:   tileRect{x, 0, 1920, 1080},
		work:   tileRect{x, 0, 1920, 1040},
		inches: 27,
		ratio:  16.0 / 9.0,
	}
}

func testWMWith(t *testing.T, rules []*windowRule, nMon int) (*tilingWM, *fakeOps) {
	t.Helper()
	ops := newFakeOps()
	themes := []*layoutTheme{{name: "dwindle", tile: dwindle}}
	wm := newTilingWM(ops, rules, themes, 4)
	wm.clock = func() uint32 { return 0 }

	mons := make([]*monitorInfo, nMon)
	for i := range mons {
		mons[i] = testMonitor(string(rune('A'+i)), int32(i)*1920)
	}
	wm.attachMonitors(mons)
	return wm, ops
}

// countLocations asserts the bijection invariant: every managed window
// appears in exactly one workspace process-wide.
func countLocations(t *testing.T, wm *tilingWM) {
	t.Helper()
	seen := map[windows.Handle]int{}
	for _, m := range wm.monitors {
		for _, ws := range m.workspaces {
			for _, w := range ws.windows {
				if w != nil {
					seen[w.hwnd]++
				}
			}
		}
	}
	for hwnd := range wm.win {
		if seen[hwnd] != 1 {
			t.Fatalf("window 0x%x appears %d times in the workspace model", hwnd, seen[hwnd])
		}
	}
	if len(seen) != len(wm.win) {
		t.Fatalf("workspace model holds %d windows, index holds %d", len(seen), len(wm.win))
	}
}

func TestManagePlacesAndTiles(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)

	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))
	wm.manage(testWindow(3, "c.exe"))
	countLocations(t, wm)

	work := wm.monitors[0].work
	want := dwindle(work, 3)
	ws := wm.monitors[0].workspace()
	for i, w := range ws.windows {
		if got := ops.rects[w.hwnd]; got != want[i] {
			t.Fatalf("window %d at %v, want %v", i, got, want[i])
		}
	}
}

func TestLayoutIsIdempotent(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))

	before := ops.setRectCalls
	wm.applyLayout(wm.monitors[0])
	if ops.setRectCalls != before {
		t.Fatalf("second applyLayout issued %d extra SetWindowPos calls", ops.setRectCalls-before)
	}
}

func TestSelfMoveSuppressed(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	w := wm.win[1]
	if !w.hasExpect {
		t.Fatal("manage must leave an expected rect")
	}

	before := ops.setRectCalls
	// The OS reports the move we just made (fakeOps already holds it).
	wm.onLocationChanged(1)
	if ops.setRectCalls != before {
		t.Fatal("self-induced move re-entered layout")
	}
	if w.hasExpect {
		t.Fatal("expected rect not consumed")
	}
}

func TestForeignMoveRetiles(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))
	wm.onLocationChanged(1) // consume the induced event
	wm.onLocationChanged(2)

	// The user flings window 1 somewhere else.
	ops.rects[1] = tileRect{333, 333, 400, 300}
	before := ops.setRectCalls
	wm.onLocationChanged(1)
	if ops.setRectCalls == before {
		t.Fatal("genuine move must re-assert the layout")
	}
}

func TestDragCoalescing(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))
	wm.onLocationChanged(1)
	wm.onLocationChanged(2)

	wm.onMoveSizeStart(1)
	before := ops.setRectCalls
	for i := 0; i < 20; i++ {
		ops.rects[1] = tileRect{int32(i * 10), 50, 400, 300}
		wm.onLocationChanged(1)
	}
	if ops.setRectCalls != before {
		t.Fatal("layout ran mid-drag")
	}
	wm.onMoveSizeEnd(1)
	if ops.setRectCalls == before {
		t.Fatal("drag end must flush the deferred re-layout")
	}
}

func TestStaticRulePinsSlot(t *testing.T) {
	rule := mustRule("cmd\\.exe", "nvim", "", func(r *windowRule) { r.staticIndex = 0 })
	wm, _ := testWMWith(t, []*windowRule{rule}, 1)

	wm.manage(testWindow(1, "a.exe"))
	pinned := testWindow(2, "cmd.exe")
	pinned.title = "nvim - main.go"
	wm.manage(pinned)
	countLocations(t, wm)

	ws := wm.monitors[0].workspace()
	if ws.windows[0].hwnd != 2 {
		t.Fatalf("slot 0 holds 0x%x, want the pinned window", ws.windows[0].hwnd)
	}
	if ws.windows[1].hwnd != 1 {
		t.Fatalf("evicted window not at the next free slot")
	}
}

func TestIgnoreRule(t *testing.T) {
	rule := mustRule("", "", "^Shell_TrayWnd$", func(r *windowRule) { r.manageable = boolPtr(false) })
	wm, _ := testWMWith(t, []*windowRule{rule}, 1)
	wm.logIgnored = true

	tray := testWindow(1, "explorer.exe")
	tray.class = "Shell_TrayWnd"
	wm.manage(tray)
	if len(wm.win) != 0 {
		t.Fatal("ignored window was managed")
	}
	if !wm.ignored[1] {
		t.Fatal("ignored window not remembered")
	}
}

func TestSwitchWorkspaceParksAndRestores(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))

	wm.switchToWorkspace(1)
	m := wm.monitors[0]
	if m.activeWS != 1 {
		t.Fatalf("activeWS = %d, want 1", m.activeWS)
	}
	if len(ops.parks) != 2 {
		t.Fatalf("parked %d windows, want 2", len(ops.parks))
	}
	for _, w := range ops.parks {
		if r := ops.rects[w.hwnd]; r.x > -10000 {
			t.Fatalf("parked window at x=%d, want off-screen", r.x)
		}
	}

	// Back to workspace 0: both windows return to their tiles.
	wm.switchToWorkspace(0)
	work := m.work
	want := dwindle(work, 2)
	ws := m.workspace()
	for i, w := range ws.windows {
		if got := ops.rects[w.hwnd]; got != want[i] {
			t.Fatalf("restored window %d at %v, want %v", i, got, want[i])
		}
		if w.parked {
			t.Fatal("window still marked parked")
		}
	}
	countLocations(t, wm)
}

func TestMoveToWorkspace(t *testing.T) {
	wm, _ := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))

	m := wm.monitors[0]
	m.workspace().active = 0
	moved := m.workspace().windows[0]

	wm.moveToWorkspace(2)
	countLocations(t, wm)

	if !moved.parked {
		t.Fatal("moved window must be parked until its workspace shows")
	}
	if got := wm.loc[moved.hwnd]; got != (winLoc{mon: 0, ws: 2}) {
		t.Fatalf("loc = %+v", got)
	}
	if m.workspaces[2].indexOf(moved) < 0 {
		t.Fatal("window absent from target workspace")
	}
}

func TestMoveToMonitor(t *testing.T) {
	wm, _ := testWMWith(t, nil, 2)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))
	countLocations(t, wm)

	m0 := wm.monitors[0]
	m0.workspace().active = 0
	moved := m0.workspace().windows[0]

	wm.moveToNextMonitor()
	countLocations(t, wm)

	if got := wm.loc[moved.hwnd].mon; got != 1 {
		t.Fatalf("window on monitor %d, want 1", got)
	}
	if wm.focusMon != 1 {
		t.Fatalf("focus did not follow, focusMon = %d", wm.focusMon)
	}
}

func TestUnmanageRetiles(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))

	wm.unmanage(1)
	countLocations(t, wm)

	// The survivor takes the full workarea again.
	if got := ops.rects[2]; got != wm.monitors[0].work {
		t.Fatalf("survivor at %v, want full workarea", got)
	}
}

func TestMinimizeSkipsLayoutSlot(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))

	wm.onMinimized(1)
	if got := ops.rects[2]; got != wm.monitors[0].work {
		t.Fatalf("remaining window at %v, want full workarea", got)
	}
	// Still listed: minimized windows keep their position.
	if wm.monitors[0].workspace().indexOf(wm.win[1]) < 0 {
		t.Fatal("minimized window dropped from the list")
	}

	wm.onRestored(1)
	want := dwindle(wm.monitors[0].work, 2)
	if got := ops.rects[1]; got != want[0] {
		t.Fatalf("restored window at %v, want %v", got, want[0])
	}
}

func TestToggleMonoForcesMonocle(t *testing.T) {
	wm, ops := testWMWith(t, nil, 1)
	wm.manage(testWindow(1, "a.exe"))
	wm.manage(testWindow(2, "b.exe"))

	wm.toggleMono()
	work := wm.monitors[0].work
	if ops.rects[1] != work || ops.rects[2] != work {
		t.Fatalf("mono: rects = %v / %v, want full workarea", ops.rects[1], ops.rects[2])
	}
}

func TestTopologyChangeKeepsWorkspaceState(t *testing.T) {
	wm, _ := testWMWith(t, nil, 2)
	wm.manage(testWindow(1, "a.exe"))
	wm.monitors[0].activeWS = 2
	wm.monitors[0].workspaces[2].add(wm.win[1])
	wm.monitors[0].workspaces[0].remove(wm.win[1])
	wm.loc[1] = winLoc{mon: 0, ws: 2}

	// Same identities re-enumerated (fresh handles): state carries over.
	next := []*monitorInfo{testMonitor("A", 0), testMonitor("B", 1920)}
	wm.attachMonitors(next)
	if wm.monitors[0].activeWS != 2 {
		t.Fatalf("activeWS = %d after topology change, want 2", wm.monitors[0].activeWS)
	}
	countLocations(t, wm)

	// Monitor B vanishes: nothing lost, orphans land on the survivor.
	wm.manage(testWindow(5, "b.exe"))
	wm.loc[5] = winLoc{mon: 1, ws: 0}
	wm.monitors[1].workspaces[0].add(wm.win[5])
	wm.monitors[0].workspaces[wm.monitors[0].activeWS].remove(wm.win[5])

	wm.attachMonitors([]*monitorInfo{testMonitor("A", 0)})
	countLocations(t, wm)
}
