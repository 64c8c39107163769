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
	"unsafe"

	"golang.org/x/sys/windows"
)

// Off-screen parking spot for windows of hidden workspaces. Far enough out
// that no topology reaches it, and it keeps z-order and taskbar state
// intact where minimizing would not.
const (
	parkX int32 = -32000
	parkY int32 = -32000
)

// managedWindow is one tracked top-level window. The handle is the
// identity; everything else is a cache refreshed on observation.
type managedWindow struct {
	hwnd  windows.Handle
	exe   string // lowercased basename
	title string
	class string

	lastRect tileRect

	// tiling effects from the rules
	tilable     bool
	staticIndex int // fixed slot in its workspace, -1 for none

	minimized bool
	parked    bool

	// expectRect is set right before we issue a move; the induced
	// location-change event is matched against it and swallowed.
	expectRect tileRect
	hasExpect  bool
}

func newManagedWindow(hwnd windows.Handle) *managedWindow {
	return &managedWindow{
		hwnd:        hwnd,
		exe:         getExeBasename(hwnd),
		title:       getWindowText(hwnd),
		class:       getClassName(hwnd),
		tilable:     true,
		staticIndex: -1,
	}
}

// winOps is the placement seam between the WM's list logic and the OS. The
// real implementation talks Win32; tests record calls.
type winOps interface {
	setRect(w *managedWindow, r tileRect)
	activate(w *managedWindow)
	minimize(w *managedWindow)
	restore(w *managedWindow)
	park(w *managedWindow)
	unpark(w *managedWindow, r tileRect)
	queryRect(w *managedWindow) (tileRect, bool)
}

/* ---------------- Real implementation ---------------- */

type osOps struct {
	// Bound compensation can be disabled globally when a window toolchain
	// reports frames the DWM math gets wrong.
	compensate bool
}

func isCloaked(hwnd windows.Handle) bool {
	var cloaked uint32
	hr, _, _ := procDwmGetWindowAttribute.Call(
		uintptr(hwnd),
		DWMWA_CLOAKED,
		uintptr(unsafe.Pointer(&cloaked)),
		unsafe.Sizeof(cloaked),
	)
	return hr == 0 && cloaked != 0
}

// isManageable: visible top-level root window with a title, not a tool or
// no-activate window, not DWM-cloaked (other virtual desktop / suspended
// UWP shells).
func isManageable(hwnd windows.Handle) bool {
	if hwnd == 0 || !isLiveWindow(hwnd) || !isWindowVisible(hwnd) {
		return false
	}
	root, _, _ := procGetAncestor.Call(uintptr(hwnd), GA_ROOTOWNER)
	if windows.Handle(root) != hwnd {
		return false
	}
	if getWindowText(hwnd) == "" {
		return false
	}
	style, err := getWindowLongPtr(hwnd, GWL_STYLE)
	if err != nil || uint32(style)&WS_CHILD != 0 {
		return false
	}
	exStyle, err := getWindowLongPtr(hwnd, GWL_EXSTYLE)
	if err != nil {
		return false
	}
	ex := uint32(exStyle)
	if ex&WS_EX_TOOLWINDOW != 0 || ex&WS_EX_NOACTIVATE != 0 {
		return false
	}
	if isCloaked(hwnd) {
		return false
	}
	return true
}

// frameOffsets measures the invisible DWM border: the difference between
// GetWindowRect and the extended frame bounds. Inflating a target rect by
// these offsets makes the visible frame land exactly on the target.
func frameOffsets(hwnd windows.Handle) (l, t, r, b int32) {
	win, ok := getWindowRectRaw(hwnd)
	if !ok {
		return
	}
	var frame RECT
	hr, _, _ := procDwmGetWindowAttribute.Call(
		uintptr(hwnd),
		DWMWA_EXTENDED_FRAME_BOUNDS,
		uintptr(unsafe.Pointer(&frame)),
		unsafe.Sizeof(frame),
	)
	if hr != 0 {
		return
	}
	return frame.Left - win.Left, frame.Top - win.Top,
		win.Right - frame.Right, win.Bottom - frame.Bottom
}

func (o *osOps) setRect(w *managedWindow, r tileRect) {
	target := r
	if o.compensate {
		l, t, rr, bb := frameOffsets(w.hwnd)
		target.x -= l
		target.y -= t
		target.w += l + rr
		target.h += t + bb
	}
	ret, _, _ := procSetWindowPos.Call(
		uintptr(w.hwnd),
		uintptr(HWND_TOP),
		uintptr(target.x), uintptr(target.y),
		uintptr(target.w), uintptr(target.h),
		SWP_NOZORDER|SWP_NOACTIVATE,
	)
	if ret == 0 {
		// Transient: the window may have just closed or be elevated. The
		// next event re-converges the state.
		logf("SetWindowPos failed for hwnd=0x%x (%s), dropping", w.hwnd, w.exe)
		return
	}
	w.lastRect = r
}

func (o *osOps) queryRect(w *managedWindow) (tileRect, bool) {
	raw, ok := getWindowRectRaw(w.hwnd)
	if !ok {
		return tileRect{}, false
	}
	return fromRECT(raw), true
}

func isWindowForeground(hwnd windows.Handle) bool {
	fg, _, _ := procGetForegroundWindow.Call()
	return windows.Handle(fg) == hwnd
}

func isOwnWindow(hwnd windows.Handle) bool {
	if hwnd == 0 {
		return false
	}
	var pid uint32
	r1, _, _ := procGetWindowThreadProcessId.Call(
		uintptr(hwnd),
		uintptr(unsafe.Pointer(&pid)),
	)
	if r1 == 0 {
		return false
	}
	return pid == windows.GetCurrentProcessId()
}

// forceForeground focuses the window by attaching to its thread's input
// queue, which sidesteps the OS focus-stealing prevention without having to
// fake a click into the target.
func forceForeground(target windows.Handle) bool {
	if target == 0 {
		return false
	}
	if isWindowForeground(target) {
		return true
	}
	if isOwnWindow(target) {
		fgRet, _, _ := procSetForegroundWindow.Call(uintptr(target))
		return fgRet != 0
	}

	var targetPID uint32
	r1, _, err := procGetWindowThreadProcessId.Call(uintptr(target), uintptr(unsafe.Pointer(&targetPID)))
	if r1 == 0 {
		logf("GetWindowThreadProcessId failed: %v", err)
		return false
	}
	targetTID := uint32(r1)

	curTID := windows.GetCurrentThreadId()
	attachRet, _, attachErr := procAttachThreadInput.Call(uintptr(curTID), uintptr(targetTID), 1)
	if attachRet == 0 {
		logf("AttachThreadInput failed: %v", attachErr)
		return false
	}

	fgRet, _, fgErr := procSetForegroundWindow.Call(uintptr(target))
	procAttachThreadInput.Call(uintptr(curTID), uintptr(targetTID), 0) // detach always

	if fgRet != 1 {
		lastErr := windows.GetLastError()
		logf("failed SetForegroundWindow ret=%d err='%v' lastErr:'%v'", fgRet, fgErr, lastErr)
		return false
	}
	return true
}

func (o *osOps) activate(w *managedWindow) {
	if isIconic(w.hwnd) {
		procShowWindow.Call(uintptr(w.hwnd), SW_RESTORE)
	}
	if !forceForeground(w.hwnd) {
		return
	}
	// Center the cursor over the window so focus-follows-pointer habits and
	// wheel scrolling land where the user is looking.
	if r, ok := o.queryRect(w); ok {
		procSetCursorPos.Call(uintptr(r.x+r.w/2), uintptr(r.y+r.h/2))
	}
}

func (o *osOps) minimize(w *managedWindow) {
	procShowWindow.Call(uintptr(w.hwnd), SW_MINIMIZE)
	w.minimized = true
}

func (o *osOps) restore(w *managedWindow) {
	procShowWindow.Call(uintptr(w.hwnd), SW_RESTORE)
	w.minimized = false
}

func toggleMaximize(hwnd windows.Handle) {
	if isMaximized(hwnd) {
		procShowWindow.Call(uintptr(hwnd), SW_RESTORE)
	} else {
		procShowWindow.Call(uintptr(hwnd), SW_MAXIMIZE)
	}
}

// park moves a window off-screen instead of minimizing it: no taskbar
// flicker, z-order preserved, and it keeps receiving WinEvents.
func (o *osOps) park(w *managedWindow) {
	if w.parked {
		return
	}
	px, py := parkX, parkY
	procSetWindowPos.Call(
		uintptr(w.hwnd),
		uintptr(HWND_TOP),
		uintptr(px), uintptr(py),
		0, 0,
		SWP_NOSIZE|SWP_NOZORDER|SWP_NOACTIVATE,
	)
	w.parked = true
}

func (o *osOps) unpark(w *managedWindow, r tileRect) {
	w.parked = false
	o.setRect(w, r)
}
