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
	"container/heap"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

/* ---------------- Services & tasks ---------------- */

// service is a long-running collaborator hosted by the daemon. Start and
// Stop are called on the daemon thread; Stop must return within 2 seconds.
type service interface {
	Name() string
	Start() error
	Stop() error
}

type svcState int

const (
	svcStopped svcState = iota
	svcRunning
	svcStopping
)

type serviceEntry struct {
	svc         service
	state       svcState
	autorestart bool
	backoffMS   uint32 // doubles 1s → 60s on repeated deaths
	userStopped bool
}

type periodicTask struct {
	name     string
	periodMS uint32
	fn       func()
}

/* ---------------- Timer heap ---------------- */

type timerEntry struct {
	dueMS    uint64
	fn       func()
	periodMS uint32 // 0 = one-shot
	idx      int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].dueMS < h[j].dueMS }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].idx = i; h[j].idx = j }
func (h *timerHeap) Push(x interface{}) { e := x.(*timerEntry); e.idx = len(*h); *h = append(*h, e) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

/* ---------------- Daemon ---------------- */

const (
	daemonTimerID   = 1
	minTimerSliceMS = 16
	backoffFloorMS  = 1000
	backoffCeilMS   = 60000
	stopBudget      = 2 * time.Second
)

// daemon owns the main thread's message pump. Every user callback — hotkey
// actions, tap-hold SendFns, WM commands, timers, service transitions —
// runs here. The hook thread reaches this thread only through post().
type daemon struct {
	hwnd windows.Handle

	// The doorbell pattern: producers enqueue and post wmDrainCalls; the
	// wndproc drains. A full channel drops (and counts) rather than blocks,
	// the hook thread must never wait on us.
	calls        chan func()
	droppedCalls atomic.Uint64

	timers timerHeap
	nowMS  func() uint64

	services []*serviceEntry
	tasks    []*periodicTask

	tray    *trayState
	menu    []menuEntry
	quitReq bool
}

var daemonInstance *daemon

func newDaemon() *daemon {
	return &daemon{
		calls: make(chan func(), 2048),
		nowMS: func() uint64 {
			t, _, _ := procGetTickCount64.Call()
			return uint64(t)
		},
	}
}

// post enqueues fn to run on the daemon thread. Safe from any thread,
// never blocks.
func (d *daemon) post(fn func()) {
	select {
	case d.calls <- fn:
	default:
		logf("daemon call queue full, callback dropped (%d so far)", d.droppedCalls.Add(1))
		return
	}
	if d.hwnd != 0 {
		procPostMessage.Call(uintptr(d.hwnd), wmDrainCalls, 0, 0)
	}
}

func (d *daemon) drainCalls() {
	for {
		select {
		case fn := <-d.calls:
			d.runGuarded(fn)
		default:
			return
		}
	}
}

// runGuarded keeps a panicking user callback from unwinding into the
// message pump (and from there into the OS).
func (d *daemon) runGuarded(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logf("callback panic: %v\nStack: %s", r, debug.Stack())
		}
	}()
	fn()
}

// schedule runs fn once after delayMS on the daemon thread.
func (d *daemon) schedule(delayMS uint32, fn func()) {
	d.post(func() {
		heap.Push(&d.timers, &timerEntry{dueMS: d.nowMS() + uint64(delayMS), fn: fn})
		d.armTimer()
	})
}

// interval runs fn every periodMS until the daemon exits.
func (d *daemon) interval(periodMS uint32, fn func()) {
	d.post(func() {
		heap.Push(&d.timers, &timerEntry{dueMS: d.nowMS() + uint64(periodMS), fn: fn, periodMS: periodMS})
		d.armTimer()
	})
}

func (d *daemon) armTimer() {
	if d.timers.Len() == 0 {
		procKillTimer.Call(uintptr(d.hwnd), daemonTimerID)
		return
	}
	now := d.nowMS()
	due := d.timers[0].dueMS
	var wait uint64 = minTimerSliceMS
	if due > now {
		wait = due - now
		if wait < minTimerSliceMS {
			wait = minTimerSliceMS
		}
	}
	procSetTimer.Call(uintptr(d.hwnd), daemonTimerID, uintptr(wait), 0)
}

func (d *daemon) fireTimers() {
	now := d.nowMS()
	for d.timers.Len() > 0 && d.timers[0].dueMS <= now {
		e := heap.Pop(&d.timers).(*timerEntry)
		d.runGuarded(e.fn)
		if e.periodMS > 0 {
			e.dueMS = d.nowMS() + uint64(e.periodMS)
			heap.Push(&d.timers, e)
		}
	}
	d.armTimer()
}

/* ---------------- Service lifecycle ---------------- */

func (d *daemon) registerService(svc service, autorestart bool) {
	d.services = append(d.services, &serviceEntry{
		svc:         svc,
		autorestart: autorestart,
		backoffMS:   backoffFloorMS,
	})
}

func (d *daemon) registerTask(name string, periodMS uint32, fn func()) {
	d.tasks = append(d.tasks, &periodicTask{name: name, periodMS: periodMS, fn: fn})
}

func (d *daemon) startService(e *serviceEntry) {
	if e.state != svcStopped {
		return
	}
	e.userStopped = false
	if err := e.svc.Start(); err != nil {
		logf("service %s failed to start: %v", e.svc.Name(), err)
		d.notify("winjig", fmt.Sprintf("service %s failed to start: %v", e.svc.Name(), err))
		if e.autorestart {
			d.scheduleRestart(e)
		}
		return
	}
	e.state = svcRunning
	e.backoffMS = backoffFloorMS
	logf("service %s running", e.svc.Name())
}

// stopService is cooperative with a hard 2-second budget: the Stop call
// runs on a reaper goroutine and its completion is posted back; a timeout
// just abandons the service as stopped.
func (d *daemon) stopService(e *serviceEntry, userRequested bool) {
	if e.state != svcRunning {
		return
	}
	e.state = svcStopping
	if userRequested {
		e.userStopped = true
	}
	done := make(chan error, 1)
	go func() {
		done <- e.svc.Stop()
	}()
	go func() {
		var err error
		select {
		case err = <-done:
		case <-time.After(stopBudget):
			err = fmt.Errorf("stop timed out after %v", stopBudget)
		}
		d.post(func() {
			if err != nil {
				logf("service %s stop: %v", e.svc.Name(), err)
			}
			e.state = svcStopped
			logf("service %s stopped", e.svc.Name())
		})
	}()
}

// serviceDied is the reap path for services that exit on their own (e.g. a
// supervised child process). Autorestart backs off 1s doubling to 60s.
func (d *daemon) serviceDied(e *serviceEntry) {
	e.state = svcStopped
	logf("service %s died", e.svc.Name())
	if e.autorestart && !e.userStopped {
		d.scheduleRestart(e)
	}
}

func (d *daemon) scheduleRestart(e *serviceEntry) {
	delay := e.backoffMS
	e.backoffMS = nextBackoff(e.backoffMS)
	logf("service %s restarting in %dms", e.svc.Name(), delay)
	d.schedule(delay, func() {
		if e.state == svcStopped && !e.userStopped {
			d.startService(e)
		}
	})
}

func nextBackoff(cur uint32) uint32 {
	next := cur * 2
	if next > backoffCeilMS {
		next = backoffCeilMS
	}
	if next < backoffFloorMS {
		next = backoffFloorMS
	}
	return next
}

func (d *daemon) startAll() {
	for _, e := range d.services {
		d.startService(e)
	}
	for _, t := range d.tasks {
		d.interval(t.periodMS, t.fn)
	}
}

func (d *daemon) stopAll() {
	for _, e := range d.services {
		d.stopService(e, true)
	}
}

/* ---------------- Message window & pump ---------------- */

func createMessageWindow() (windows.Handle, error) {
	if curThreadID := windows.GetCurrentThreadId(); mainThreadID != curThreadID {
		exitf(1, "unexpected: message window created off the main thread (main=%d cur=%d)", mainThreadID, curThreadID)
	}
	className, err := windows.UTF16PtrFromString("winjigHidden")
	if err != nil {
		return 0, fmt.Errorf("UTF16PtrFromString failed for class name: %w", err)
	}

	var wc WNDCLASSEX
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	wc.LpfnWndProc = daemonWndProc
	wc.LpszClassName = className
	hinst, _, _ := procGetModuleHandle.Call(0)
	wc.HInstance = windows.Handle(hinst)

	procSetLastError.Call(0)
	ret, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc)))
	if ret == 0 {
		lastErr := windows.GetLastError()
		return 0, fmt.Errorf("RegisterClassEx failed: %v (error code: %w)", err, lastErr)
	}

	hwndRaw, _, err := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		0,
		0,
		0, 0, 0, 0,
		0,
		0,
		uintptr(wc.HInstance),
		0,
	)
	if hwndRaw == 0 {
		lastErr := windows.GetLastError()
		return 0, fmt.Errorf("CreateWindowEx failed: %v (error code: %w)", err, lastErr)
	}

	return windows.Handle(hwndRaw), nil
}

var daemonWndProc = windows.NewCallback(func(hwnd uintptr, msg uint32, wParam, lParam uintptr) uintptr {
	d := daemonInstance
	if d == nil {
		ret, _, _ := procDefWindowProc.Call(hwnd, uintptr(msg), wParam, lParam)
		return ret
	}

	switch msg {
	case wmDrainCalls:
		d.drainCalls()
		return 0

	case WM_TIMER:
		if wParam == daemonTimerID {
			d.fireTimers()
			return 0
		}

	case WM_DISPLAYCHANGE:
		if wmInstance != nil {
			wmInstance.onDisplayChange()
		}
		return 0

	case wmTrayIcon:
		d.onTrayMessage(lParam)
		return 0

	case WM_QUERYENDSESSION:
		logf("system is asking permission to end session")
		return 1 // allow

	case WM_ENDSESSION:
		if wParam != 0 {
			logf("WM_ENDSESSION: system shutdown or restart detected")
			exitf(20, "due to WM_ENDSESSION")
			unreachable()
		}
		return 0

	case WM_CLOSE:
		procDestroyWindow.Call(hwnd)
		return 0

	case WM_DESTROY:
		procPostQuitMessage.Call(0)
		return 0
	}

	ret, _, _ := procDefWindowProc.Call(hwnd, uintptr(msg), wParam, lParam)
	return ret
})

// run pumps messages until WM_QUIT. GetMessage parks the thread at 0% CPU;
// hooks, WinEvents, timers and doorbells all wake it.
func (d *daemon) run() {
	var msg MSG
	for {
		r, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
	}

	// The loop exited. Re-throw a hook-thread panic on this thread so the
	// primary defer sees it.
	if p := hookPanicPayload.Load(); p != nil {
		logf("main loop exited because the hook thread panicked")
		panic(p)
	}
	logf("main loop exited normally")
}

func (d *daemon) notify(title, msgText string) {
	if d.tray != nil {
		d.tray.showInfo(title, msgText)
		return
	}
	logf("notify: %s: %s", title, msgText)
}
