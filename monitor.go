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
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/sys/windows"
)

const defaultWorkspaceCount = 4

/* ---------------- Workspace ---------------- */

// workspace is an ordered windowlist with a designated active slot. The
// list keeps minimized and non-tilable windows in place; layout skips them.
type workspace struct {
	name    string
	windows []*managedWindow
	active  int // index into windows, -1 when empty
}

func newWorkspace(name string) *workspace {
	return &workspace{name: name, active: -1}
}

func (ws *workspace) activeWindow() *managedWindow {
	if ws.active < 0 || ws.active >= len(ws.windows) {
		return nil
	}
	return ws.windows[ws.active]
}

func (ws *workspace) indexOf(w *managedWindow) int {
	for i, x := range ws.windows {
		if x == w {
			return i
		}
	}
	return -1
}

// add appends, or inserts at the window's static slot, bumping any prior
// occupant of that slot to the first free one.
func (ws *workspace) add(w *managedWindow) {
	if w.staticIndex < 0 {
		ws.windows = append(ws.windows, w)
		if ws.active < 0 {
			ws.active = 0
		}
		return
	}

	k := w.staticIndex
	for len(ws.windows) <= k {
		ws.windows = append(ws.windows, nil)
	}
	if prior := ws.windows[k]; prior != nil {
		slot := ws.firstFreeSlot()
		if slot < 0 {
			ws.windows = append(ws.windows, prior)
		} else {
			ws.windows[slot] = prior
		}
	}
	ws.windows[k] = w
	if ws.active < 0 {
		ws.active = k
	}
}

func (ws *workspace) firstFreeSlot() int {
	for i, w := range ws.windows {
		if w == nil {
			return i
		}
	}
	return -1
}

func (ws *workspace) remove(w *managedWindow) bool {
	i := ws.indexOf(w)
	if i < 0 {
		return false
	}
	ws.windows = append(ws.windows[:i], ws.windows[i+1:]...)
	switch {
	case len(ws.windows) == 0:
		ws.active = -1
	case ws.active > i:
		ws.active--
	case ws.active >= len(ws.windows):
		ws.active = len(ws.windows) - 1
	}
	return true
}

// compact drops the nil placeholders static insertion may have left behind.
// Called before layout so slot geometry and list geometry agree.
func (ws *workspace) compact() {
	out := ws.windows[:0]
	act := ws.activeWindow()
	for _, w := range ws.windows {
		if w != nil {
			out = append(out, w)
		}
	}
	ws.windows = out
	if len(ws.windows) == 0 {
		ws.active = -1
		return
	}
	ws.active = 0
	if act != nil {
		if i := ws.indexOf(act); i >= 0 {
			ws.active = i
		}
	}
}

// tilables returns the windows layout should place: in list order, skipping
// minimized and non-tilable entries (both keep their slots).
func (ws *workspace) tilables() []*managedWindow {
	var out []*managedWindow
	for _, w := range ws.windows {
		if w == nil || !w.tilable || w.minimized {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (ws *workspace) cycleActive(delta int) *managedWindow {
	n := len(ws.windows)
	if n == 0 {
		return nil
	}
	if ws.active < 0 {
		ws.active = 0
	}
	ws.active = ((ws.active+delta)%n + n) % n
	return ws.windows[ws.active]
}

func (ws *workspace) swapActive(delta int) {
	n := len(ws.windows)
	if n < 2 || ws.active < 0 {
		return
	}
	j := ((ws.active+delta)%n + n) % n
	ws.windows[ws.active], ws.windows[j] = ws.windows[j], ws.windows[ws.active]
	ws.active = j
}

// setMaster swaps the active window into slot 0; if it already is the
// master, it swaps with slot 1 instead so the command always does something.
func (ws *workspace) setMaster() {
	n := len(ws.windows)
	if n < 2 || ws.active < 0 {
		return
	}
	target := 0
	if ws.active == 0 {
		target = 1
	}
	ws.windows[ws.active], ws.windows[target] = ws.windows[target], ws.windows[ws.active]
	ws.active = target
}

// roll rotates the whole list by delta, the active index following its
// window.
func (ws *workspace) roll(delta int) {
	n := len(ws.windows)
	if n < 2 {
		return
	}
	d := ((delta % n) + n) % n
	rolled := make([]*managedWindow, 0, n)
	rolled = append(rolled, ws.windows[n-d:]...)
	rolled = append(rolled, ws.windows[:n-d]...)
	ws.windows = rolled
	if ws.active >= 0 {
		ws.active = (ws.active + d) % n
	}
}

/* ---------------- Monitor ---------------- */

// monitorInfo is one physical display. The identity is the device path
// string, not the HMONITOR: handles get re-issued on topology changes, the
// device path comes back.
type monitorInfo struct {
	id      string
	handle  windows.Handle
	rect    tileRect
	work    tileRect
	primary bool
	dpi     uint32
	inches  float64
	ratio   float64 // physical width / height

	workspaces []*workspace
	activeWS   int
	themeIdx   int
	monoForced bool
}

func (m *monitorInfo) workspace() *workspace {
	return m.workspaces[m.activeWS]
}

func newMonitorWorkspaces(n int) []*workspace {
	if n <= 0 {
		n = defaultWorkspaceCount
	}
	out := make([]*workspace, n)
	for i := range out {
		out[i] = newWorkspace(fmt.Sprintf("%d", i+1))
	}
	return out
}

/* ---------------- Enumeration ---------------- */

var (
	enumMonitorsResult []*monitorInfo
	enumMonitorsCB     = windows.NewCallback(func(hMonitor, hdc, lprc, lparam uintptr) uintptr {
		var mi MONITORINFOEX
		mi.CbSize = uint32(unsafe.Sizeof(mi))
		ret, _, _ := procGetMonitorInfo.Call(hMonitor, uintptr(unsafe.Pointer(&mi)))
		if ret == 0 {
			return 1 // keep enumerating
		}
		devName := windows.UTF16ToString(mi.SzDevice[:])

		m := &monitorInfo{
			id:      monitorDeviceID(devName),
			handle:  windows.Handle(hMonitor),
			rect:    fromRECT(mi.RcMonitor),
			work:    fromRECT(mi.RcWork),
			primary: mi.DwFlags&MONITORINFOF_PRIMARY != 0,
			dpi:     monitorDPI(windows.Handle(hMonitor)),
		}
		m.inches, m.ratio = monitorPhysical(devName, m.rect)
		enumMonitorsResult = append(enumMonitorsResult, m)
		return 1
	})
)

// enumMonitors snapshots the current display topology. Caller is on the
// daemon thread; the package-level result slice relies on that.
func enumMonitors() []*monitorInfo {
	enumMonitorsResult = nil
	procEnumDisplayMonitors.Call(0, 0, enumMonitorsCB, 0)

	// Primary first, then left-to-right: stable command ordering for
	// next/prev monitor.
	out := enumMonitorsResult
	enumMonitorsResult = nil
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if (b.primary && !a.primary) || (!a.primary && !b.primary && b.rect.x < a.rect.x) {
				out[j-1], out[j] = out[j], out[j-1]
			} else {
				break
			}
		}
	}
	return out
}

// monitorDeviceID resolves the stable device-interface path for a display
// device name like `\\.\DISPLAY1`. Falls back to the name itself.
func monitorDeviceID(devName string) string {
	var dd DISPLAY_DEVICE
	dd.Cb = uint32(unsafe.Sizeof(dd))
	ret, _, _ := procEnumDisplayDevices.Call(
		uintptr(unsafe.Pointer(mustUTF16(devName))),
		0,
		uintptr(unsafe.Pointer(&dd)),
		1, // EDD_GET_DEVICE_INTERFACE_NAME
	)
	if ret == 0 {
		return devName
	}
	id := windows.UTF16ToString(dd.DeviceID[:])
	if id == "" {
		return devName
	}
	return id
}

func monitorDPI(hMonitor windows.Handle) uint32 {
	if procGetDpiForMonitor.Find() != nil {
		return 96
	}
	var dpiX, dpiY uint32
	hr, _, _ := procGetDpiForMonitor.Call(
		uintptr(hMonitor),
		MDT_EFFECTIVE_DPI,
		uintptr(unsafe.Pointer(&dpiX)),
		uintptr(unsafe.Pointer(&dpiY)),
	)
	if hr != 0 || dpiX == 0 {
		return 96
	}
	return dpiX
}

// monitorPhysical reads the panel's physical millimeters off a device DC
// and derives diagonal inches plus width/height ratio.
func monitorPhysical(devName string, rc tileRect) (inches, ratio float64) {
	ratio = 16.0 / 9.0
	if rc.h > 0 {
		ratio = float64(rc.w) / float64(rc.h)
	}

	p := mustUTF16(devName)
	hdc, _, _ := procCreateDC.Call(
		uintptr(unsafe.Pointer(p)),
		uintptr(unsafe.Pointer(p)),
		0, 0,
	)
	if hdc == 0 {
		return 24, ratio
	}
	defer procDeleteDC.Call(hdc)

	wmm, _, _ := procGetDeviceCaps.Call(hdc, HORZSIZE)
	hmm, _, _ := procGetDeviceCaps.Call(hdc, VERTSIZE)
	if wmm == 0 || hmm == 0 {
		return 24, ratio
	}
	winch := float64(wmm) / 25.4
	hinch := float64(hmm) / 25.4
	inches = math.Sqrt(winch*winch + hinch*hinch)
	ratio = winch / hinch
	return inches, ratio
}
