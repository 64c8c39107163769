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
	"golang.org/x/sys/windows"
)

// Induced move events come back with DWM rounding applied; anything within
// this tolerance of the rect we just asked for is ours.
const selfMoveTolerance = 2

// Transient location events during a user drag are throttled to this.
const dragThrottleMS = 16

type winLoc struct {
	mon int // index into monitors
	ws  int // workspace index on that monitor
}

// tilingWM reacts to window events, maintains the per-monitor workspace
// windowlists and drives placement. All state is touched from the daemon
// thread only; the OS delivers our WinEvents there too.
type tilingWM struct {
	ops    winOps
	rules  []*windowRule
	themes []*layoutTheme

	monitors []*monitorInfo
	win      map[windows.Handle]*managedWindow
	loc      map[windows.Handle]winLoc
	ignored  map[windows.Handle]bool

	focusMon int

	wsCount int

	// drag coalescing
	dragging   bool
	dragDirty  bool
	lastDragMS uint32

	// logIgnored logs every window the rules refuse to manage; toggled from
	// the tray menu when hunting for a missing ignore rule.
	logIgnored bool

	// seams so the list logic is drivable without Win32
	clock     func() uint32
	monitorOf func(w *managedWindow) int // -1 = use focusMon
}

func newTilingWM(ops winOps, rules []*windowRule, themes []*layoutTheme, wsCount int) *tilingWM {
	if wsCount <= 0 {
		wsCount = defaultWorkspaceCount
	}
	return &tilingWM{
		ops:     ops,
		rules:   rules,
		themes:  themes,
		win:     map[windows.Handle]*managedWindow{},
		loc:     map[windows.Handle]winLoc{},
		ignored: map[windows.Handle]bool{},
		wsCount: wsCount,
		clock:   tickMS,
	}
}

// attachMonitors installs a topology snapshot, carrying workspace state over
// from any prior snapshot by monitor identity. Windows whose monitor
// vanished migrate to the primary.
func (t *tilingWM) attachMonitors(mons []*monitorInfo) {
	prior := map[string]*monitorInfo{}
	for _, m := range t.monitors {
		prior[m.id] = m
	}

	var orphans []*managedWindow
	for _, m := range t.monitors {
		keep := false
		for _, nm := range mons {
			if nm.id == m.id {
				keep = true
				break
			}
		}
		if !keep {
			for _, ws := range m.workspaces {
				for _, w := range ws.windows {
					if w != nil {
						orphans = append(orphans, w)
					}
				}
			}
		}
	}

	for _, m := range mons {
		if old, ok := prior[m.id]; ok {
			m.workspaces = old.workspaces
			m.activeWS = old.activeWS
			m.themeIdx = old.themeIdx
			m.monoForced = old.monoForced
		} else {
			m.workspaces = newMonitorWorkspaces(t.wsCount)
			m.themeIdx = pickTheme(t.themes, m.inches, m.ratio)
		}
	}
	t.monitors = mons
	if t.focusMon >= len(mons) {
		t.focusMon = 0
	}

	t.loc = map[windows.Handle]winLoc{}
	for mi, m := range t.monitors {
		for wi, ws := range m.workspaces {
			for _, w := range ws.windows {
				if w != nil {
					t.loc[w.hwnd] = winLoc{mon: mi, ws: wi}
				}
			}
		}
	}
	for _, w := range orphans {
		if len(t.monitors) == 0 {
			break
		}
		m := t.monitors[0]
		m.workspace().add(w)
		t.loc[w.hwnd] = winLoc{mon: 0, ws: m.activeWS}
	}

	t.arrangeAll()
}

func (t *tilingWM) focusedMonitor() *monitorInfo {
	if len(t.monitors) == 0 {
		return nil
	}
	if t.focusMon < 0 || t.focusMon >= len(t.monitors) {
		t.focusMon = 0
	}
	return t.monitors[t.focusMon]
}

/* ---------------- Layout ---------------- */

func (t *tilingWM) activeTheme(m *monitorInfo) *layoutTheme {
	if m.monoForced {
		return &layoutTheme{name: "mono", tile: monocle}
	}
	if m.themeIdx < 0 || m.themeIdx >= len(t.themes) {
		m.themeIdx = 0
	}
	if len(t.themes) == 0 {
		return &layoutTheme{name: "dwindle", tile: dwindle}
	}
	return t.themes[m.themeIdx]
}

// applyLayout realizes the monitor's active workspace on screen. Idempotent:
// a window already within tolerance of its slot is left alone, so running it
// twice issues no further OS calls.
func (t *tilingWM) applyLayout(m *monitorInfo) {
	if m == nil {
		return
	}
	ws := m.workspace()
	ws.compact()
	tl := ws.tilables()
	if len(tl) == 0 {
		return
	}
	rects := t.activeTheme(m).compute(m.work, len(tl))
	for i, w := range tl {
		r := rects[i]
		if w.parked {
			w.expectRect = r
			w.hasExpect = true
			t.ops.unpark(w, r)
			w.lastRect = r
			continue
		}
		if w.lastRect.nearEqual(r, selfMoveTolerance) {
			continue
		}
		w.expectRect = r
		w.hasExpect = true
		t.ops.setRect(w, r)
		w.lastRect = r
	}
}

func (t *tilingWM) arrangeAll() {
	for _, m := range t.monitors {
		t.applyLayout(m)
	}
}

/* ---------------- Window arrival / departure ---------------- */

// manage runs the rules against a newly observed window and, if it is ours,
// records it in the right (monitor, workspace) windowlist and re-tiles.
func (t *tilingWM) manage(w *managedWindow) {
	if _, known := t.win[w.hwnd]; known || t.ignored[w.hwnd] {
		return
	}
	eff := applyRules(t.rules, w.exe, w.title, w.class)
	if !eff.manageable {
		t.ignored[w.hwnd] = true
		if t.logIgnored {
			logf("rule-ignored window hwnd=0x%x exe=%q title=%q class=%q", w.hwnd, w.exe, w.title, w.class)
		}
		return
	}
	w.tilable = eff.tilable
	w.staticIndex = eff.staticIndex

	mi := t.focusMon
	if eff.preferredMonitor >= 0 && eff.preferredMonitor < len(t.monitors) {
		mi = eff.preferredMonitor
	} else if t.monitorOf != nil {
		if i := t.monitorOf(w); i >= 0 && i < len(t.monitors) {
			mi = i
		}
	}
	if mi < 0 || mi >= len(t.monitors) {
		return
	}
	m := t.monitors[mi]
	m.workspace().add(w)
	t.win[w.hwnd] = w
	t.loc[w.hwnd] = winLoc{mon: mi, ws: m.activeWS}
	t.applyLayout(m)
}

func (t *tilingWM) unmanage(hwnd windows.Handle) {
	delete(t.ignored, hwnd)
	w, ok := t.win[hwnd]
	if !ok {
		return
	}
	l := t.loc[hwnd]
	delete(t.win, hwnd)
	delete(t.loc, hwnd)
	if l.mon < len(t.monitors) {
		m := t.monitors[l.mon]
		m.workspaces[l.ws].remove(w)
		if l.ws == m.activeWS {
			t.applyLayout(m)
		}
	}
}

// sweepDead drops windows whose handle vanished without a destroy event.
// Runs as a periodic daemon task.
func (t *tilingWM) sweepDead() {
	var dead []windows.Handle
	for hwnd := range t.win {
		if !isLiveWindow(hwnd) {
			dead = append(dead, hwnd)
		}
	}
	for _, hwnd := range dead {
		t.unmanage(hwnd)
	}
}

/* ---------------- Event handlers (daemon thread) ---------------- */

func (t *tilingWM) onWindowShown(hwnd windows.Handle) {
	if _, known := t.win[hwnd]; known {
		return
	}
	if !isManageable(hwnd) {
		return
	}
	t.manage(newManagedWindow(hwnd))
}

func (t *tilingWM) onWindowDestroyed(hwnd windows.Handle) {
	t.unmanage(hwnd)
}

func (t *tilingWM) onForeground(hwnd windows.Handle) {
	w, ok := t.win[hwnd]
	if !ok {
		return
	}
	l := t.loc[hwnd]
	t.focusMon = l.mon
	if l.mon < len(t.monitors) {
		m := t.monitors[l.mon]
		if l.ws == m.activeWS {
			if i := m.workspace().indexOf(w); i >= 0 {
				m.workspace().active = i
			}
		}
	}
}

// onLocationChanged is the loop-prevention gate: moves we induced are
// matched against the expected rect and swallowed; genuine user moves
// re-tile, throttled while a drag is in flight.
func (t *tilingWM) onLocationChanged(hwnd windows.Handle) {
	w, ok := t.win[hwnd]
	if !ok {
		return
	}
	cur, ok := t.ops.queryRect(w)
	if !ok {
		return
	}
	if w.hasExpect && cur.nearEqual(w.expectRect, selfMoveTolerance) {
		w.hasExpect = false
		w.lastRect = cur
		return
	}
	if w.parked {
		return
	}
	w.lastRect = cur

	if t.dragging {
		now := t.clock()
		if now-t.lastDragMS < dragThrottleMS {
			t.dragDirty = true
			return
		}
		t.lastDragMS = now
		t.dragDirty = true
		return
	}
	// A move we didn't ask for: the user or the app relocated the window.
	// Re-assert the layout.
	if l, ok := t.loc[hwnd]; ok && l.mon < len(t.monitors) {
		m := t.monitors[l.mon]
		if l.ws == m.activeWS {
			t.applyLayout(m)
		}
	}
}

func (t *tilingWM) onMoveSizeStart(hwnd windows.Handle) {
	if _, ok := t.win[hwnd]; !ok {
		return
	}
	t.dragging = true
	t.dragDirty = false
	t.lastDragMS = t.clock()
}

func (t *tilingWM) onMoveSizeEnd(hwnd windows.Handle) {
	t.dragging = false
	if !t.dragDirty {
		return
	}
	t.dragDirty = false
	if l, ok := t.loc[hwnd]; ok && l.mon < len(t.monitors) {
		t.applyLayout(t.monitors[l.mon])
	}
}

func (t *tilingWM) onMinimized(hwnd windows.Handle) {
	w, ok := t.win[hwnd]
	if !ok || w.minimized {
		return
	}
	w.minimized = true
	if l, ok := t.loc[hwnd]; ok && l.mon < len(t.monitors) {
		t.applyLayout(t.monitors[l.mon])
	}
}

func (t *tilingWM) onRestored(hwnd windows.Handle) {
	w, ok := t.win[hwnd]
	if !ok || !w.minimized {
		return
	}
	w.minimized = false
	if l, ok := t.loc[hwnd]; ok && l.mon < len(t.monitors) {
		t.applyLayout(t.monitors[l.mon])
	}
}

func (t *tilingWM) onDisplayChange() {
	logf("display topology changed, re-enumerating monitors")
	t.attachMonitors(enumMonitors())
}

/* ---------------- Commands (hotkey callbacks, daemon thread) ---------------- */

func (t *tilingWM) focusDelta(delta int) {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	if w := m.workspace().cycleActive(delta); w != nil {
		if w.minimized {
			// Cycling onto a minimized window brings it back into the tiling.
			t.ops.restore(w)
			t.applyLayout(m)
		}
		t.ops.activate(w)
	}
}

func (t *tilingWM) nextWindow() { t.focusDelta(1) }
func (t *tilingWM) prevWindow() { t.focusDelta(-1) }

func (t *tilingWM) swapDelta(delta int) {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	ws := m.workspace()
	ws.swapActive(delta)
	t.applyLayout(m)
	if w := ws.activeWindow(); w != nil {
		t.ops.activate(w)
	}
}

func (t *tilingWM) swapNext() { t.swapDelta(1) }
func (t *tilingWM) swapPrev() { t.swapDelta(-1) }

func (t *tilingWM) setMaster() {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	ws := m.workspace()
	ws.setMaster()
	t.applyLayout(m)
	if w := ws.activeWindow(); w != nil {
		t.ops.activate(w)
	}
}

func (t *tilingWM) rollDelta(delta int) {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	m.workspace().roll(delta)
	t.applyLayout(m)
}

func (t *tilingWM) rollNext() { t.rollDelta(1) }
func (t *tilingWM) rollPrev() { t.rollDelta(-1) }

func (t *tilingWM) toggleTilable() {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	w := m.workspace().activeWindow()
	if w == nil {
		return
	}
	w.tilable = !w.tilable
	t.applyLayout(m)
}

func (t *tilingWM) minimizeActive() {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	w := m.workspace().activeWindow()
	if w == nil {
		return
	}
	t.ops.minimize(w)
	t.applyLayout(m)
}

func (t *tilingWM) toggleMaximizeActive() {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	if w := m.workspace().activeWindow(); w != nil {
		toggleMaximize(w.hwnd)
	}
}

func (t *tilingWM) toggleMono() {
	m := t.focusedMonitor()
	if m == nil {
		return
	}
	m.monoForced = !m.monoForced
	t.applyLayout(m)
}

func (t *tilingWM) setTheme(idx int) {
	m := t.focusedMonitor()
	if m == nil || idx < 0 || idx >= len(t.themes) {
		return
	}
	m.monoForced = false
	m.themeIdx = idx
	t.applyLayout(m)
}

func (t *tilingWM) themeDelta(delta int) {
	m := t.focusedMonitor()
	if m == nil || len(t.themes) == 0 {
		return
	}
	n := len(t.themes)
	t.setTheme(((m.themeIdx+delta)%n + n) % n)
}

func (t *tilingWM) nextTheme() { t.themeDelta(1) }
func (t *tilingWM) prevTheme() { t.themeDelta(-1) }

// switchToWorkspace hides the current list by parking it off-screen (no
// taskbar churn, z-order kept) and realizes workspace i.
func (t *tilingWM) switchToWorkspace(i int) {
	m := t.focusedMonitor()
	if m == nil || i < 0 || i >= len(m.workspaces) || i == m.activeWS {
		return
	}
	for _, w := range m.workspace().windows {
		if w != nil && !w.minimized {
			t.ops.park(w)
		}
	}
	m.activeWS = i
	t.applyLayout(m)
	if w := m.workspace().activeWindow(); w != nil {
		t.ops.activate(w)
	}
}

// moveToWorkspace reassigns the active window to workspace i on the same
// monitor and re-tiles both lists.
func (t *tilingWM) moveToWorkspace(i int) {
	m := t.focusedMonitor()
	if m == nil || i < 0 || i >= len(m.workspaces) || i == m.activeWS {
		return
	}
	ws := m.workspace()
	w := ws.activeWindow()
	if w == nil {
		return
	}
	ws.remove(w)
	m.workspaces[i].add(w)
	t.loc[w.hwnd] = winLoc{mon: t.focusMon, ws: i}
	t.ops.park(w)
	t.applyLayout(m)
}

func (t *tilingWM) monitorDelta(delta int) {
	n := len(t.monitors)
	if n < 2 {
		return
	}
	t.focusMon = ((t.focusMon+delta)%n + n) % n
	m := t.monitors[t.focusMon]
	if w := m.workspace().activeWindow(); w != nil {
		t.ops.activate(w)
	}
}

func (t *tilingWM) nextMonitor() { t.monitorDelta(1) }
func (t *tilingWM) prevMonitor() { t.monitorDelta(-1) }

func (t *tilingWM) moveToMonitorDelta(delta int) {
	n := len(t.monitors)
	if n < 2 {
		return
	}
	src := t.focusedMonitor()
	if src == nil {
		return
	}
	w := src.workspace().activeWindow()
	if w == nil {
		return
	}
	dst := ((t.focusMon+delta)%n + n) % n
	src.workspace().remove(w)
	dm := t.monitors[dst]
	dm.workspace().add(w)
	t.loc[w.hwnd] = winLoc{mon: dst, ws: dm.activeWS}
	t.applyLayout(src)
	t.applyLayout(dm)
	t.focusMon = dst
	t.ops.activate(w)
}

func (t *tilingWM) moveToNextMonitor() { t.moveToMonitorDelta(1) }
func (t *tilingWM) moveToPrevMonitor() { t.moveToMonitorDelta(-1) }

// restoreAll un-parks everything; run at shutdown so quitting never leaves
// windows stranded at the parking spot.
func (t *tilingWM) restoreAll() {
	for _, m := range t.monitors {
		for _, ws := range m.workspaces {
			for _, w := range ws.windows {
				if w != nil && w.parked {
					r := w.lastRect
					if r.w <= 0 || r.h <= 0 {
						r = m.work
					}
					t.ops.unpark(w, r)
				}
			}
		}
	}
}

// commands exposes the surface bound to hotkeys in the configuration.
func (t *tilingWM) commands() map[string]func() {
	cmds := map[string]func(){
		"next_window":          t.nextWindow,
		"prev_window":          t.prevWindow,
		"swap_next":            t.swapNext,
		"swap_prev":            t.swapPrev,
		"set_master":           t.setMaster,
		"roll_next":            t.rollNext,
		"roll_prev":            t.rollPrev,
		"toggle_tilable":       t.toggleTilable,
		"toggle_mono":          t.toggleMono,
		"toggle_maximize":      t.toggleMaximizeActive,
		"minimize":             t.minimizeActive,
		"next_theme":           t.nextTheme,
		"prev_theme":           t.prevTheme,
		"next_monitor":         t.nextMonitor,
		"prev_monitor":         t.prevMonitor,
		"move_to_next_monitor": t.moveToNextMonitor,
		"move_to_prev_monitor": t.moveToPrevMonitor,
		"arrange_all":          t.arrangeAll,
	}
	for i := 0; i < t.wsCount; i++ {
		i := i
		cmds["switch_to_workspace_"+string(rune('1'+i))] = func() { t.switchToWorkspace(i) }
		cmds["move_to_workspace_"+string(rune('1'+i))] = func() { t.moveToWorkspace(i) }
	}
	return cmds
}

/* ---------------- WinEvent plumbing ---------------- */

var (
	wmInstance   *tilingWM
	winEventHook windows.Handle

	winEventCallback = windows.NewCallback(func(hWinEventHook windows.Handle, event uint32, hwnd windows.Handle, idObject int32, idChild int32, dwEventThread uint32, dwmsEventTime uint32) uintptr {
		if wmInstance == nil || idObject != OBJID_WINDOW || idChild != 0 || hwnd == 0 {
			return 0
		}
		t := wmInstance
		switch event {
		case EVENT_OBJECT_SHOW, EVENT_OBJECT_CREATE:
			t.onWindowShown(hwnd)
		case EVENT_OBJECT_DESTROY, EVENT_OBJECT_HIDE:
			t.onWindowDestroyed(hwnd)
		case EVENT_SYSTEM_FOREGROUND:
			t.onForeground(hwnd)
		case EVENT_OBJECT_LOCATIONCHANGE:
			t.onLocationChanged(hwnd)
		case EVENT_SYSTEM_MOVESIZESTART:
			t.onMoveSizeStart(hwnd)
		case EVENT_SYSTEM_MOVESIZEEND:
			t.onMoveSizeEnd(hwnd)
		case EVENT_SYSTEM_MINIMIZESTART:
			t.onMinimized(hwnd)
		case EVENT_SYSTEM_MINIMIZEEND:
			t.onRestored(hwnd)
		}
		return 0 // WinEvent callbacks return 0, no chaining
	})
)

// installWinEventHook subscribes the WM to the window-event stream. Must be
// called on the daemon thread; out-of-context callbacks are delivered to
// this thread's message loop.
func installWinEventHook(t *tilingWM) {
	wmInstance = t
	h, _, err := procSetWinEventHook.Call(
		EVENT_SYSTEM_FOREGROUND, // min
		EVENT_OBJECT_LOCATIONCHANGE, // max: covers every event we dispatch on
		0,
		winEventCallback,
		0, // all processes
		0, // all threads
		WINEVENT_OUTOFCONTEXT|WINEVENT_SKIPOWNPROCESS,
	)
	if h == 0 {
		exitf(1, "SetWinEventHook failed: %v", err)
	}
	winEventHook = windows.Handle(h)
}

func uninstallWinEventHook() {
	if winEventHook != 0 {
		procUnhookWinEvent.Call(uintptr(winEventHook))
		winEventHook = 0
	}
	wmInstance = nil
}

/* ---------------- Startup adoption ---------------- */

var (
	adoptTarget *tilingWM
	enumAdoptCB = windows.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		h := windows.Handle(hwnd)
		if adoptTarget != nil && isManageable(h) {
			adoptTarget.manage(newManagedWindow(h))
		}
		return 1
	})
)

// adoptExistingWindows reconstructs WM state at startup by replaying the
// rules over everything already on screen.
func adoptExistingWindows(t *tilingWM) {
	adoptTarget = t
	procEnumWindows.Call(enumAdoptCB, 0)
	adoptTarget = nil
	// EnumWindows walks top-to-bottom in z-order; keep the actual foreground
	// window active.
	fg, _, _ := procGetForegroundWindow.Call()
	if fg != 0 {
		t.onForeground(windows.Handle(fg))
	}
}
