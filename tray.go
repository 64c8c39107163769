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
	"unsafe"

	"golang.org/x/sys/windows"
)

// menuEntry is one tray menu item. Services and the quit entry are appended
// automatically; configurations can add their own toggles.
type menuEntry struct {
	label     string
	enabled   bool
	checked   func() bool
	onTrigger func()
}

type trayState struct {
	icon NOTIFYICONDATA
}

const trayIconUID = 1

func initTray(d *daemon) (*trayState, error) {
	t := &trayState{}

	t.icon.HWnd = d.hwnd
	t.icon.CbSize = uint32(unsafe.Sizeof(t.icon))
	t.icon.UID = trayIconUID
	t.icon.UFlags = NIF_TIP | NIF_ICON | NIF_MESSAGE

	const IDI_APPLICATION = 32512
	hIcon, _, _ := procLoadIcon.Call(0, IDI_APPLICATION)
	t.icon.HIcon = windows.Handle(hIcon)
	t.icon.UCallbackMessage = wmTrayIcon
	t.icon.UTimeoutOrVersion = NOTIFYICON_VERSION_4

	copy(t.icon.SzTip[:], windows.StringToUTF16("winjig"))

	ret1, _, err1 := procShellNotifyIcon.Call(NIM_ADD, uintptr(unsafe.Pointer(&t.icon)))
	if ret1 == 0 {
		return nil, fmt.Errorf("failed to add tray icon: %v", err1)
	}

	// Must happen after NIM_ADD.
	ret2, _, err2 := procShellNotifyIcon.Call(NIM_SETVERSION, uintptr(unsafe.Pointer(&t.icon)))
	if ret2 == 0 {
		logf("NIM_SETVERSION for tray icon failed: '%v'", err2)
	}

	return t, nil
}

func (t *trayState) cleanup() {
	if t.icon.HWnd == 0 {
		return
	}
	t.icon.UFlags = 0
	ret, _, err := procShellNotifyIcon.Call(NIM_DELETE, uintptr(unsafe.Pointer(&t.icon)))
	if ret == 0 {
		logf("Failed to delete tray icon: %v", err)
	}
	t.icon = NOTIFYICONDATA{}
}

// showInfo raises a tray notification balloon with the diagnostic text.
func (t *trayState) showInfo(title, msg string) {
	logf("systray info: %s", msg)
	t.icon.UFlags |= NIF_INFO
	copy(t.icon.SzInfoTitle[:], windows.StringToUTF16(title))
	copy(t.icon.SzInfo[:], windows.StringToUTF16(msg))
	procShellNotifyIcon.Call(NIM_MODIFY, uintptr(unsafe.Pointer(&t.icon)))
}

/* ---------------- Popup menu ---------------- */

const (
	menuIDQuit  = 1
	menuIDFirst = 100
)

func (d *daemon) onTrayMessage(lParam uintptr) {
	// NOTIFYICON_VERSION_4 packs the event in the low word.
	switch uint32(lParam & 0xFFFF) {
	case WM_RBUTTONUP, WM_CONTEXTMENU:
		d.showTrayMenu()
	}
}

func (d *daemon) showTrayMenu() {
	if d.tray == nil {
		return
	}
	hMenu, _, _ := procCreatePopupMenu.Call()
	if hMenu == 0 {
		return
	}
	defer procDestroyMenu.Call(hMenu)

	actions := map[uintptr]func(){}
	nextID := uintptr(menuIDFirst)

	appendItem := func(label string, flags uintptr, fn func()) {
		id := nextID
		nextID++
		actions[id] = fn
		procAppendMenu.Call(hMenu, MF_STRING|flags, id, uintptr(unsafe.Pointer(mustUTF16(label))))
	}

	for _, e := range d.menu {
		e := e
		flags := uintptr(0)
		if !e.enabled {
			flags |= MF_GRAYED
		}
		if e.checked != nil && e.checked() {
			flags |= MF_CHECKED
		}
		appendItem(e.label, flags, e.onTrigger)
	}

	if len(d.services) > 0 {
		procAppendMenu.Call(hMenu, MF_SEPARATOR, 0, 0)
		for _, e := range d.services {
			e := e
			if e.state == svcRunning {
				appendItem("Stop "+e.svc.Name(), MF_CHECKED, func() { d.stopService(e, true) })
			} else {
				appendItem("Start "+e.svc.Name(), 0, func() { d.startService(e) })
			}
		}
	}

	procAppendMenu.Call(hMenu, MF_SEPARATOR, 0, 0)
	procAppendMenu.Call(hMenu, MF_STRING, menuIDQuit, uintptr(unsafe.Pointer(mustUTF16("Quit"))))

	var pt POINT
	procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))

	// The menu needs the owner window foregrounded, or it refuses to
	// dismiss when the user clicks away.
	procSetForegroundWindow.Call(uintptr(d.hwnd))

	cmd, _, _ := procTrackPopupMenu.Call(
		hMenu,
		TPM_RETURNCMD|TPM_NONOTIFY,
		uintptr(pt.X), uintptr(pt.Y),
		0,
		uintptr(d.hwnd),
		0,
	)
	switch {
	case cmd == 0:
		// dismissed
	case cmd == menuIDQuit:
		logf("quit selected from tray menu")
		procPostQuitMessage.Call(0)
	default:
		if fn := actions[cmd]; fn != nil {
			d.runGuarded(fn)
		}
	}
}

func (d *daemon) addMenuEntry(label string, checked func() bool, onTrigger func()) {
	d.menu = append(d.menu, menuEntry{
		label:     label,
		enabled:   true,
		checked:   checked,
		onTrigger: onTrigger,
	})
}
