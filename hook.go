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
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Everything we SendInput carries this dwExtraInfo sentinel. The hook procs
// test it first and pass such events through untouched; that is what keeps
// the engine's own output from re-entering the engine. Foreign injected
// input (LLKHF_INJECTED without our sentinel) still goes through the
// pipeline so other tools' synthetic keys remain remappable.
const injectSentinel uintptr = 0x574A4947 // "WJIG"

var (
	kbdHook      windows.Handle
	mouseHook    windows.Handle
	hookThreadID uint32

	// The engine the hook procs feed. Set before the hooks are installed,
	// never written afterwards.
	hookEngine *jmkEngine
)

var hookPanicPayload atomic.Value

/* ---------------- Injection ---------------- */

// sendKeys emits one atomic SendInput burst for a slice of key actions.
// Wheel and mouse-button synthetics become mouse input; everything else is
// keyboard input. Safe from any thread.
func sendKeys(actions []keyAction) {
	if len(actions) == 0 {
		return
	}
	inputs := make([]INPUT, 0, len(actions))
	for _, a := range actions {
		if a.key.isMouse() {
			in, ok := mouseInputFor(a)
			if !ok {
				continue
			}
			inputs = append(inputs, in)
			continue
		}
		var flags uint32
		if !a.down {
			flags |= KEYEVENTF_KEYUP
		}
		if a.key.isExtended() {
			flags |= KEYEVENTF_EXTENDEDKEY
		}
		inputs = append(inputs, INPUT{
			Type: INPUT_KEYBOARD,
			Ki: KEYBDINPUT{
				WVk:         uint16(a.key),
				DwFlags:     flags,
				DwExtraInfo: injectSentinel,
			},
		})
	}
	if len(inputs) == 0 {
		return
	}
	ret, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if ret != uintptr(len(inputs)) {
		logf("SendInput injected %d of %d events: %v", ret, len(inputs), err)
	}
}

func mouseInputFor(a keyAction) (INPUT, bool) {
	var flags uint32
	var data uint32
	switch a.key {
	case vkLButton:
		if a.down {
			flags = MOUSEEVENTF_LEFTDOWN
		} else {
			flags = MOUSEEVENTF_LEFTUP
		}
	case vkRButton:
		if a.down {
			flags = MOUSEEVENTF_RIGHTDOWN
		} else {
			flags = MOUSEEVENTF_RIGHTUP
		}
	case vkMButton:
		if a.down {
			flags = MOUSEEVENTF_MIDDLEDOWN
		} else {
			flags = MOUSEEVENTF_MIDDLEUP
		}
	case vkXButton1, vkXButton2:
		if a.down {
			flags = MOUSEEVENTF_XDOWN
		} else {
			flags = MOUSEEVENTF_XUP
		}
		if a.key == vkXButton1 {
			data = XBUTTON1
		} else {
			data = XBUTTON2
		}
	case vkWheelUp, vkWheelDown:
		if !a.down {
			return INPUT{}, false // a wheel notch has no release
		}
		flags = MOUSEEVENTF_WHEEL
		if a.key == vkWheelUp {
			data = uint32(WHEEL_DELTA)
		} else {
			data = uint32(^uint32(WHEEL_DELTA) + 1) // -WHEEL_DELTA
		}
	case vkWheelLeft, vkWheelRight:
		if !a.down {
			return INPUT{}, false
		}
		flags = MOUSEEVENTF_HWHEEL
		if a.key == vkWheelRight {
			data = uint32(WHEEL_DELTA)
		} else {
			data = uint32(^uint32(WHEEL_DELTA) + 1)
		}
	default:
		return INPUT{}, false
	}

	in := INPUT{Type: INPUT_MOUSE}
	mi := (*MOUSEINPUT)(unsafe.Pointer(&in.Ki))
	mi.MouseData = data
	mi.DwFlags = flags
	mi.DwExtraInfo = injectSentinel
	return in, true
}

/* ---------------- Keyboard hook ---------------- */

// For low-level hooks: return non-zero to swallow the event, call
// CallNextHookEx to pass it along.
func keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode < 0 {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	k := (*KBDLLHOOKSTRUCT)(unsafe.Pointer(lParam))

	if k.DwExtraInfo == injectSentinel {
		// Our own SendInput output looping back. Hands off, or we'd summon
		// an infinite keyboard demon.
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	ev := keyEvent{
		key:    vKey(k.VkCode),
		down:   wParam == WM_KEYDOWN || wParam == WM_SYSKEYDOWN,
		timeMS: k.Time,
	}
	emit, suppress := hookEngine.onEvent(ev)
	if len(emit) > 0 {
		// SendInput queues synchronously, so these land in the input queue
		// before the hook returns and before any later physical event.
		sendKeys(emit)
	}
	if suppress {
		return 1
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

/* ---------------- Mouse hook ---------------- */

func mouseProc(nCode int, wParam, lParam uintptr) uintptr {
	if nCode < 0 {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	info := (*MSLLHOOKSTRUCT)(unsafe.Pointer(lParam))

	if info.DwExtraInfo == injectSentinel {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	var key vKey
	var down bool
	var wheel bool

	switch wParam {
	case WM_LBUTTONDOWN, WM_LBUTTONUP:
		key, down = vkLButton, wParam == WM_LBUTTONDOWN
	case WM_RBUTTONDOWN, WM_RBUTTONUP:
		key, down = vkRButton, wParam == WM_RBUTTONDOWN
	case WM_MBUTTONDOWN, WM_MBUTTONUP:
		key, down = vkMButton, wParam == WM_MBUTTONDOWN
	case WM_XBUTTONDOWN, WM_XBUTTONUP:
		down = wParam == WM_XBUTTONDOWN
		if info.MouseData>>16 == XBUTTON2 {
			key = vkXButton2
		} else {
			key = vkXButton1
		}
	case WM_MOUSEWHEEL, WM_MOUSEHWHEEL:
		wheel = true
		delta := int16(info.MouseData >> 16)
		if wParam == WM_MOUSEWHEEL {
			if delta > 0 {
				key = vkWheelUp
			} else {
				key = vkWheelDown
			}
		} else {
			if delta > 0 {
				key = vkWheelRight
			} else {
				key = vkWheelLeft
			}
		}
	default:
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	if wheel {
		// A wheel notch is a synthetic down+up pair through the engine.
		downEmit, downSup := hookEngine.onEvent(keyEvent{key: key, down: true, timeMS: info.Time})
		upEmit, _ := hookEngine.onEvent(keyEvent{key: key, down: false, timeMS: info.Time})
		if len(downEmit) > 0 {
			sendKeys(downEmit)
		}
		if len(upEmit) > 0 {
			sendKeys(upEmit)
		}
		if downSup {
			return 1
		}
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	emit, suppress := hookEngine.onEvent(keyEvent{key: key, down: down, timeMS: info.Time})
	if len(emit) > 0 {
		sendKeys(emit)
	}
	if suppress {
		return 1
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

/* ---------------- Hook worker thread ---------------- */

// hookWorker owns both low-level hooks on a dedicated OS thread with its own
// message pump. Hook callbacks run on this thread; they must stay in the
// single-digit-millisecond range, which is why everything heavier is posted
// to the daemon thread.
func hookWorker(engine *jmkEngine) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer secondaryDefer()

	// The cross-thread panic bridge: store the payload, nuke the main
	// pump's GetMessage loop, then wait for main to take over teardown.
	defer func() {
		if r := recover(); r != nil {
			hookPanicPayload.Store(r)

			if status, ok := r.(exitStatus); ok {
				logf("hook thread intentionally exited with code: '%d' and error message: '%s'", status.Code, status.Message)
			} else {
				logf("--- hook thread CRASH: %v ---\nStack: %s\n--- END---", r, debug.Stack())
			}
			logf("CRITICAL: from hook thread, signaling main thread to die...")

			procPostThreadMessage.Call(uintptr(mainThreadID), WM_QUIT, 0, 0)

			const waitForMainSeconds = 2
			select {
			case <-mainAcknowledgedShutdown:
				logf("hook thread is now waiting for main to exit us...")
				select {}
			case <-time.After(waitForMainSeconds * time.Second):
				logf("hook thread done waiting for main to die, proceeding to the emergency exit...")
			}
		}
		logf("hook thread clean exit (but not quitting thread)")
		select {}
	}()

	hookThreadID = windows.GetCurrentThreadId()
	if mainThreadID == hookThreadID {
		exitf(1, "main loop and hooks are NOT on two different threads, broken logic")
	}
	logf("Hook worker thread started. ThreadID: %d", hookThreadID)

	hookEngine = engine

	kbdCB := windows.NewCallback(keyboardProc)
	hk, _, err := procSetWindowsHookEx.Call(WH_KEYBOARD_LL, kbdCB, 0, 0)
	if hk == 0 {
		exitf(1, "SetWindowsHookEx(WH_KEYBOARD_LL) failed: %v", err)
		unreachable()
	}
	kbdHook = windows.Handle(hk)
	defer func() {
		procUnhookWindowsHookEx.Call(uintptr(kbdHook))
		kbdHook = 0
		logf("unhooked kbdHook")
	}()

	mouseCB := windows.NewCallback(mouseProc)
	hm, _, err := procSetWindowsHookEx.Call(WH_MOUSE_LL, mouseCB, 0, 0)
	if hm == 0 {
		exitf(1, "SetWindowsHookEx(WH_MOUSE_LL) failed: %v", err)
		unreachable()
	}
	mouseHook = windows.Handle(hm)
	defer func() {
		procUnhookWindowsHookEx.Call(uintptr(mouseHook))
		mouseHook = 0
		logf("unhooked mouseHook")
	}()

	// The thread's private message loop. The hook callbacks are dispatched
	// while this thread sits inside GetMessage.
	var msg MSG
	for {
		ret, _, _ := procGetMessage.Call(
			uintptr(unsafe.Pointer(&msg)),
			0, 0, 0,
		)
		if ret == 0 || ret == ^uintptr(0) {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}

	logf("Hook worker thread received WM_QUIT or error, exiting and unhooking...")
}

// stopHookWorker asks the hook thread's pump to quit.
func stopHookWorker() {
	if hookThreadID != 0 {
		procPostThreadMessage.Call(uintptr(hookThreadID), WM_QUIT, 0, 0)
	}
}
