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
	"os"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

type exitStatus struct {
	Code    int
	Message string
}

// exitf is the fatal path: it panics with an exitStatus which the deferred
// exit ladder turns into a clean teardown plus os.Exit(code).
func exitf(code int, format string, a ...interface{}) {
	panic(exitStatus{
		Code:    code,
		Message: fmt.Sprintf(format, a...),
	})
}

func unreachable() {
	panic("unreachable code was reached, bad assumptions then ;p")
}

var currentExitCode int = 0

// Closed by primaryDefer so the hook thread's watchdog stops waiting.
var mainAcknowledgedShutdown = make(chan struct{})

// deinitFn is set once wiring is done; primaryDefer calls it on the main
// thread so hooks, tray and parked windows are undone in order.
var deinitFn func()

// primary defer: the one true exit path, runs on the main thread.
func primaryDefer() {
	select {
	case <-mainAcknowledgedShutdown:
		// already closed
	default:
		close(mainAcknowledgedShutdown)
	}

	if r := recover(); r != nil {
		if status, ok := r.(exitStatus); ok {
			currentExitCode = status.Code
			logf("Program intentionally exited with code: '%d' and error message: '%s'", currentExitCode, status.Message)
		} else {
			currentExitCode = 1
			logf("--- CRASH: %v ---\nStack: %s\n--- END---", r, debug.Stack())
		}
	}

	if deinitFn != nil {
		deinitFn()
	}

	logf("Execution finished.")

	releaseSingleInstance()
	closeAndFlushLog()
	os.Exit(currentExitCode) // oughtta be the only os.Exit! well 1of2
}

// secondary defer: never runs unless primaryDefer itself panics.
func secondaryDefer() {
	var exitcode int
	if r2 := recover(); r2 != nil {
		logf("!secondary defer here! [CRITICAL ERROR IN primary DEFER]: '%v'\n%s\n----snip----", r2, debug.Stack())
		exitcode = 120
	} else {
		logf("!secondary defer here! This shouldn't be reached ever; primary defer didn't os.Exit as it should.")
		exitcode = 121
	}
	closeAndFlushLog()
	os.Exit(exitcode) // 2of2
}

/* ---------------- Single instance ---------------- */

var mutexHandle windows.Handle

func ensureSingleInstance(name string) {
	// Session-local: one instance per login session, "Local\" prefix.
	h, err := windows.CreateMutex(nil, false, mustUTF16("Local\\"+name))
	if err != nil {
		if h != 0 {
			windows.CloseHandle(h)
		}
		exitf(3, "another instance is already running (mutex %q: %v)", name, err)
	}
	mutexHandle = h
}

func releaseSingleInstance() {
	if mutexHandle != 0 {
		windows.CloseHandle(mutexHandle)
		mutexHandle = 0
	}
}

/* ---------------- Console ctrl handler ---------------- */

const (
	CTRL_C_EVENT     = 0
	CTRL_BREAK_EVENT = 1
	CTRL_CLOSE_EVENT = 2
)

var mainThreadID uint32

var ctrlSeen atomic.Bool

var ctrlHandler = windows.NewCallback(func(ctrlType uint32) uintptr {
	switch ctrlType {
	case CTRL_C_EVENT, CTRL_BREAK_EVENT, CTRL_CLOSE_EVENT:
		if ctrlSeen.Swap(true) {
			return 1 // already shutting down
		}
		logf("console ctrl event %d, requesting shutdown", ctrlType)
		procPostThreadMessage.Call(uintptr(mainThreadID), WM_QUIT, 0, 0)
		return 1
	}
	return 0
})

func getConsoleWindow() (windows.HWND, error) {
	r1, _, err := procGetConsoleWindow.Call()

	hwnd := windows.HWND(r1)
	if hwnd == 0 {
		// syscall wrappers often return err == "The operation completed
		// successfully." when no failure occurred, so treat that as nil.
		if err != nil && err != windows.ERROR_SUCCESS {
			return 0, err
		}
		// No console is a normal state, not an error.
		return 0, nil
	}
	return hwnd, nil
}

func hasRealConsole() bool {
	hwnd, err := getConsoleWindow()
	if err != nil {
		return false
	}
	return hwnd != 0
}

func installCtrlHandlerIfConsole() {
	if !hasRealConsole() {
		return
	}
	logf("Installing Ctrl+C handler due to console.")
	procSetConsoleCtrlHandler.Call(ctrlHandler, 1)
}
