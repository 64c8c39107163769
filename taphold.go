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

// Tap-hold phases. A dual-role key buffers its press until either the term
// timer expires, another key interrupts (both resolve to hold), or the key
// is released in time (tap). A quick re-press after a tap keeps emitting the
// tap key so autorepeat works; every in-window press re-arms the window.
type thPhase int

const (
	thIdle thPhase = iota
	thPending
	thHeld
	thQuickTap  // tap committed, window open, key currently up
	thQuickHeld // re-pressed within the window, acting as the tap key
)

const (
	defaultTermMS     = 200
	defaultQuickTapMS = 120
)

type tapHoldState struct {
	key         vKey
	b           binding
	phase       thPhase
	gen         int // bumped to invalidate in-flight timer callbacks
	pushedLayer int // layer pushed on hold commit, -1 otherwise
}

func (e *jmkEngine) tapHoldFor(key vKey, b binding) *tapHoldState {
	ts := e.holds[key]
	if ts == nil {
		ts = &tapHoldState{key: key, b: b, pushedLayer: -1}
		e.holds[key] = ts
	}
	ts.b = b // the binding under the current layer stack wins
	return ts
}

// tapHoldPress handles a physical press of a tap-hold key. Always suppresses
// the original; emissions depend on the phase. Caller holds e.mu.
func (e *jmkEngine) tapHoldPress(ts *tapHoldState) []keyAction {
	switch ts.phase {
	case thIdle:
		ts.phase = thPending
		ts.gen++
		e.pendingOrder = append(e.pendingOrder, ts.key)
		gen := ts.gen
		e.schedule(ts.b.term(), func() { e.termExpired(ts.key, gen) })
		return nil
	case thPending, thHeld:
		// OS autorepeat of the physical key while undecided or held.
		return nil
	case thQuickTap:
		// Re-press inside the quick-tap window: this rapid sequence is taps
		// only, hold is disabled for it.
		ts.phase = thQuickHeld
		ts.gen++ // cancel the window timer
		return []keyAction{{ts.key2tap(), true}}
	case thQuickHeld:
		// Autorepeat while rapid-held: repeat the tap key.
		return []keyAction{{ts.key2tap(), true}}
	}
	return nil
}

// tapHoldRelease handles the physical release. Caller holds e.mu.
func (e *jmkEngine) tapHoldRelease(ts *tapHoldState) []keyAction {
	switch ts.phase {
	case thPending:
		// Released within term: it's a tap.
		ts.gen++
		e.dropPending(ts.key)
		ts.phase = thQuickTap
		e.armQuickTap(ts)
		tap := ts.key2tap()
		return []keyAction{{tap, true}, {tap, false}}
	case thHeld:
		ts.phase = thIdle
		return e.commitHoldRelease(ts)
	case thQuickHeld:
		ts.phase = thQuickTap
		e.armQuickTap(ts)
		return []keyAction{{ts.key2tap(), false}}
	}
	// Idle/quick-tap release: nothing of ours is down, let it through so a
	// release never gets stranded.
	return nil
}

func (e *jmkEngine) armQuickTap(ts *tapHoldState) {
	ts.gen++
	gen := ts.gen
	e.schedule(ts.b.quickTap(), func() { e.quickTapExpired(ts.key, gen) })
}

// flushPendingExcept commits every pending tap-hold as a hold, in press
// order. This is the "another key was used, so it's a hold" path.
// Caller holds e.mu.
func (e *jmkEngine) flushPendingExcept(except vKey) []keyAction {
	var out []keyAction
	var keep []vKey
	for _, k := range e.pendingOrder {
		if k == except {
			keep = append(keep, k)
			continue
		}
		ts := e.holds[k]
		if ts == nil || ts.phase != thPending {
			continue
		}
		ts.gen++ // cancel term timer
		out = append(out, e.commitHold(ts)...)
	}
	e.pendingOrder = keep
	return out
}

func (e *jmkEngine) dropPending(key vKey) {
	for i, k := range e.pendingOrder {
		if k == key {
			e.pendingOrder = append(e.pendingOrder[:i], e.pendingOrder[i+1:]...)
			return
		}
	}
}

// commitHold resolves the hold side: push a layer, press a modifier, or run
// a callback. Caller holds e.mu.
func (e *jmkEngine) commitHold(ts *tapHoldState) []keyAction {
	ts.phase = thHeld
	if ts.b.holdLayer >= 0 {
		e.stack = append(e.stack, ts.b.holdLayer)
		ts.pushedLayer = ts.b.holdLayer
		return nil
	}
	if ts.b.holdFn != nil {
		e.post(ts.b.holdFn)
		return nil
	}
	e.logicalDown[ts.b.hold] = true
	return []keyAction{{ts.b.hold, true}}
}

func (e *jmkEngine) commitHoldRelease(ts *tapHoldState) []keyAction {
	if ts.pushedLayer >= 0 {
		// Pop the most recent frame for this layer.
		for i := len(e.stack) - 1; i > 0; i-- {
			if e.stack[i] == ts.pushedLayer {
				e.stack = append(e.stack[:i], e.stack[i+1:]...)
				break
			}
		}
		ts.pushedLayer = -1
		return nil
	}
	if ts.b.holdFn != nil {
		return nil
	}
	delete(e.logicalDown, ts.b.hold)
	return []keyAction{{ts.b.hold, false}}
}

// termExpired runs on the daemon thread via the scheduled timer.
func (e *jmkEngine) termExpired(key vKey, gen int) {
	e.mu.Lock()
	ts := e.holds[key]
	if ts == nil || ts.gen != gen || ts.phase != thPending {
		e.mu.Unlock()
		return
	}
	e.dropPending(key)
	out := e.commitHold(ts)
	e.mu.Unlock()
	if len(out) > 0 {
		e.emit(out)
	}
}

func (e *jmkEngine) quickTapExpired(key vKey, gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts := e.holds[key]
	if ts == nil || ts.gen != gen || ts.phase != thQuickTap {
		return
	}
	ts.phase = thIdle
}

func (ts *tapHoldState) key2tap() vKey {
	return ts.b.tap
}

func (b binding) term() uint32 {
	if b.termMS == 0 {
		return defaultTermMS
	}
	return b.termMS
}

func (b binding) quickTap() uint32 {
	if b.quickTapMS == 0 {
		return defaultQuickTapMS
	}
	return b.quickTapMS
}
