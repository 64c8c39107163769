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
	"time"

	"golang.org/x/sys/windows"
)

var (
	logFile   *os.File
	useStderr bool // true if os.Stderr is valid/writable
)

func init() {
	useStderr = false

	h := windows.Handle(os.Stderr.Fd())
	var mode uint32
	err := windows.GetConsoleMode(h, &mode)
	if err != nil {
		return
	}
	n, err := windows.GetFileType(h)
	if err != nil {
		return
	}
	useStderr = (n != windows.INVALID_FILE_ATTRIBUTES)
	if useStderr {
		_, writeErr := os.Stderr.WriteString("") // zero-write test
		useStderr = writeErr == nil
	}
}

func initLogFile() {
	if logFile != nil {
		return
	}
	f, err := os.OpenFile(
		"winjig_debug.log",
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err == nil {
		logFile = f
	}
}

var (
	// Hook-thread code logs through here; the buffer only matters under a
	// burst while the worker is behind on a slow console.
	logChanSize   uint64 = 4096
	logChan              = make(chan string, logChanSize)
	logWorkerDone        = make(chan struct{}) // the "I'm finished" signal

	droppedLogEvents       atomic.Uint64
	maxChannelFillForLogs  atomic.Uint64
)

// logf is safe from any thread including the hook thread: the send is
// non-blocking, a full buffer drops the message instead of lagging input.
func logf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	now := time.Now().Format("Mon Jan 2 15:04:05.000000000 MST 2006")
	finalMsg := fmt.Sprintf("[%s] %s\n", now, s)

	currentDepth := uint64(len(logChan))
	for {
		oldMax := maxChannelFillForLogs.Load()
		if currentDepth <= oldMax || maxChannelFillForLogs.CompareAndSwap(oldMax, currentDepth) {
			break
		}
	}

	select {
	case logChan <- finalMsg:
	default:
		droppedLogEvents.Add(1)
	}
}

func logWorker() {
	defer func() {
		// Executes after close(logChan) and a drained buffer, or on a panic
		// here; releases closeAndFlushLog.
		close(logWorkerDone)
	}()

	defer func() {
		if r2 := recover(); r2 != nil {
			directLoggerf("![CRITICAL ERROR IN logWorker thread]: '%v'\n%s\n----snip----", r2, debug.Stack())
		} else {
			directLoggerf("logWorker thread here, normal exit")
		}
	}()

	// Runs on its own thread: even if a write blocks, the hook thread keeps
	// spinning at full speed.
	for msg := range logChan {
		internalLogger(msg)
	}

	drops := droppedLogEvents.Load()
	if drops > 0 {
		directLoggerf("Dropped %s log events due to a full buffer.", withCommas(drops))
	}
	peak := maxChannelFillForLogs.Load()
	if peak > 1 {
		directLoggerf("Peak queued on log channel: %s, out of logChanSize: %s", withCommas(peak), withCommas(logChanSize))
	}
}

// directLoggerf bypasses the channel; only for the worker itself and the
// post-close shutdown path.
func directLoggerf(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	now := time.Now().Format("Mon Jan 2 15:04:05.000000000 MST 2006")
	internalLogger(fmt.Sprintf("[%s] %s\n", now, s))
}

// never call this directly, call logf or directLoggerf
func internalLogger(finalMsg string) {
	if useStderr {
		fmt.Fprintf(os.Stderr, "%s", finalMsg)
		return
	}

	if logFile == nil {
		initLogFile()
		if logFile == nil {
			return
		}
	}

	fmt.Fprintf(logFile, "%s", finalMsg)
	logFile.Sync()
}

func closeAndFlushLog() {
	close(logChan) // the worker drains everything queued before close
	<-logWorkerDone
}

func withCommas(n uint64) string {
	s := fmt.Sprintf("%d", n)
	out := make([]byte, 0, len(s)+len(s)/3)
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
