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

// winjig is a tiling window manager, keyboard/mouse rewriter and service
// host for Windows, in one tray-resident process. One pair of low-level
// input hooks feeds the key engine; one WinEvent hook feeds the tiler; one
// message pump runs everything that is allowed to take its time.
package main

import (
	"os"
	"runtime"

	"golang.org/x/sys/windows"
)

func init() {
	// Exactly three execution contexts: the main message pump, the hook
	// thread, and the log worker. Set before anything can spawn goroutines.
	runtime.GOMAXPROCS(3)
}

func main() {
	// The message pump and every Win32 window we create are bound to this
	// thread. Lock it before anything else.
	runtime.LockOSThread()

	go logWorker()

	defer secondaryDefer() // runs only if the primary defer itself fails
	defer primaryDefer()   // the one true exit path

	installCtrlHandlerIfConsole()
	ensureSingleInstance("winjig_single_instance")

	logf("GOMAXPROCS pinned to %d", runtime.GOMAXPROCS(0))

	if err := runApplication(); err != nil {
		exitf(2, "Error: %v", err)
	}
}

func runApplication() error {
	assertStructSizes()
	logf("Started")

	initDPIAwareness() // before any window creation or it does nothing

	mainThreadID = windows.GetCurrentThreadId()
	logf("main loop thread started. ThreadID: %d", mainThreadID)

	cfg := defaultConfig()
	if len(os.Args) > 1 {
		if err := cfg.applyFileOverrides(os.Args[1]); err != nil {
			return err
		}
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	d := newDaemon()
	daemonInstance = d
	hwnd, err := createMessageWindow()
	if err != nil {
		return err
	}
	d.hwnd = hwnd

	ops := &osOps{compensate: cfg.compensate}
	wm := newTilingWM(ops, cfg.rules, cfg.themes, cfg.workspaceCount)
	wm.monitorOf = monitorIndexFor(wm)

	engine := newJmkEngine(cfg.layers, d.post, d.schedule, sendKeys)
	if err := cfg.wireHotkeys(engine, wm); err != nil {
		return err
	}

	tray, err := initTray(d)
	if err != nil {
		exitf(1, "Failed to init tray: %v", err)
	}
	d.tray = tray

	d.addMenuEntry("Border compensation",
		func() bool { return ops.compensate },
		func() { ops.compensate = !ops.compensate })
	d.addMenuEntry("Log ignored windows",
		func() bool { return wm.logIgnored },
		func() { wm.logIgnored = !wm.logIgnored })

	wm.attachMonitors(enumMonitors())
	installWinEventHook(wm)
	adoptExistingWindows(wm)
	wm.arrangeAll()

	// Dead-handle sweep: destroy events can be lost while we are not yet
	// hooked or during session switches.
	d.registerTask("sweep_dead_windows", 5000, wm.sweepDead)

	go hookWorker(engine)

	d.startAll()

	// Teardown must run on this thread, in this order, whether we exit
	// cleanly or through the panic ladder.
	deinitFn = func() {
		deinitFn = nil
		d.stopAll()
		stopHookWorker()
		uninstallWinEventHook()
		sendKeys(engine.releaseStuckState()) // no stranded modifiers
		wm.restoreAll()                      // no windows left parked off-screen
		tray.showInfo("winjig", "shutting down")
		tray.cleanup()
		if d.hwnd != 0 {
			procDestroyWindow.Call(uintptr(d.hwnd))
			d.hwnd = 0
		}
	}

	tray.showInfo("winjig", "running")

	d.run()
	return nil
}

// monitorIndexFor resolves which of the WM's monitors a window sits on,
// by handle, falling back to the focused monitor.
func monitorIndexFor(t *tilingWM) func(w *managedWindow) int {
	return func(w *managedWindow) int {
		h, _, _ := procMonitorFromWindow.Call(uintptr(w.hwnd), MONITOR_DEFAULTTONEAREST)
		if h == 0 {
			return -1
		}
		for i, m := range t.monitors {
			if m.handle == windows.Handle(h) {
				return i
			}
		}
		return -1
	}
}
