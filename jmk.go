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
	"sync"
)

/* ---------------- Bindings ---------------- */

type bindKind int

const (
	bindSend bindKind = iota
	bindSendFn
	bindTapHold
)

// binding is a closed sum: exactly one of the three kinds, discriminated by
// kind. No interfaces here on purpose, the hook path switches on it.
type binding struct {
	kind bindKind

	to vKey   // bindSend target
	fn func() // bindSendFn callback, runs on the daemon thread

	// bindTapHold
	tap        vKey
	hold       vKey // modifier hold; unused if holdLayer >= 0 or holdFn set
	holdFn     func()
	holdLayer  int // layer index pushed while held, -1 for none
	termMS     uint32
	quickTapMS uint32
}

func sendTo(k vKey) binding {
	return binding{kind: bindSend, to: k, holdLayer: -1}
}

func sendFn(f func()) binding {
	return binding{kind: bindSendFn, fn: f, holdLayer: -1}
}

func tapHoldMod(tap, hold vKey, termMS, quickTapMS uint32) binding {
	return binding{kind: bindTapHold, tap: tap, hold: hold, holdLayer: -1,
		termMS: termMS, quickTapMS: quickTapMS}
}

func tapHoldLayer(tap vKey, layerIdx int, termMS, quickTapMS uint32) binding {
	return binding{kind: bindTapHold, tap: tap, holdLayer: layerIdx,
		termMS: termMS, quickTapMS: quickTapMS}
}

func tapHoldFn(tap vKey, f func(), termMS, quickTapMS uint32) binding {
	return binding{kind: bindTapHold, tap: tap, holdFn: f, holdLayer: -1,
		termMS: termMS, quickTapMS: quickTapMS}
}

// keymapLayer is a partial keymap overlay. Layer 0 is the base; further
// layers are pushed by tap-hold holds and looked up top-down.
type keymapLayer struct {
	name  string
	binds map[vKey]binding
}

/* ---------------- Hotkeys ---------------- */

type hotkey struct {
	keys chord
	send []keyAction
	fn   func()
}

// sendChord builds the emission burst for a synthetic chord: modifiers down
// in order, non-modifiers tapped, modifiers released in reverse.
func sendChord(c chord) []keyAction {
	var mods, rest []vKey
	for _, k := range c {
		if k.isModifier() {
			mods = append(mods, k)
		} else {
			rest = append(rest, k)
		}
	}
	out := make([]keyAction, 0, 2*len(c))
	for _, m := range mods {
		out = append(out, keyAction{m, true})
	}
	for _, k := range rest {
		out = append(out, keyAction{k, true}, keyAction{k, false})
	}
	for i := len(mods) - 1; i >= 0; i-- {
		out = append(out, keyAction{mods[i], false})
	}
	return out
}

/* ---------------- Engine ---------------- */

// jmkEngine transforms the inbound physical event stream into an outbound
// synthetic stream. State is guarded by one coarse mutex: the hook thread
// calls onEvent, the daemon thread delivers timer expiries.
type jmkEngine struct {
	mu sync.Mutex

	layers []*keymapLayer
	stack  []int // active layer indices, stack[0] == 0 always

	holds        map[vKey]*tapHoldState
	pendingOrder []vKey // pending tap-hold keys in physical press order

	logicalDown map[vKey]bool // post-remap depressed set, drives chords
	physSend    map[vKey]vKey // physical key -> emitted key, for releases
	absorbed    map[vKey]bool // physical keys whose release is swallowed

	hotkeys    map[string]*hotkey
	firedChord chord // non-nil until a constituent goes up

	post     func(fn func())                    // run on the daemon thread
	schedule func(delayMS uint32, fn func())    // one-shot timer, daemon thread
	emit     func(actions []keyAction)          // out-of-band injection (timer path)
}

func newJmkEngine(layers []*keymapLayer, post func(func()), schedule func(uint32, func()), emit func([]keyAction)) *jmkEngine {
	if len(layers) == 0 {
		layers = []*keymapLayer{{name: "base", binds: map[vKey]binding{}}}
	}
	return &jmkEngine{
		layers:      layers,
		stack:       []int{0},
		holds:       map[vKey]*tapHoldState{},
		logicalDown: map[vKey]bool{},
		physSend:    map[vKey]vKey{},
		absorbed:    map[vKey]bool{},
		hotkeys:     map[string]*hotkey{},
		post:        post,
		schedule:    schedule,
		emit:        emit,
	}
}

// addHotkey registers a chord. Registering the same key set twice is a
// configuration error and fails fast.
func (e *jmkEngine) addHotkey(c chord, send []keyAction, fn func()) error {
	canon := c.canon()
	if old, dup := e.hotkeys[canon]; dup {
		return fmt.Errorf("hotkey %s overlaps already-registered %s", c, old.keys)
	}
	e.hotkeys[canon] = &hotkey{keys: c, send: send, fn: fn}
	return nil
}

// lookup resolves key through the layer stack, top-down, first hit wins.
func (e *jmkEngine) lookup(key vKey) (binding, bool) {
	for i := len(e.stack) - 1; i >= 0; i-- {
		li := e.stack[i]
		if li < 0 || li >= len(e.layers) {
			continue
		}
		if b, ok := e.layers[li].binds[key]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// onEvent is the hook entry point. Returns the actions to inject (in order,
// before any later physical event) and whether to suppress the original.
func (e *jmkEngine) onEvent(ev keyEvent) ([]keyAction, bool) {
	if ev.injected {
		// Our own SendInput output looping back: forward untouched, touch
		// nothing.
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.down {
		return e.onPress(ev)
	}
	return e.onRelease(ev)
}

func (e *jmkEngine) onPress(ev keyEvent) ([]keyAction, bool) {
	// Any other key pressed while a tap-hold is undecided resolves it to a
	// hold, and the hold's emission must precede this key's.
	pre := e.flushPendingExcept(ev.key)

	b, bound := e.lookup(ev.key)
	if bound {
		switch b.kind {
		case bindSend:
			if fire, out := e.checkChord(b.to, ev.key, pre); fire {
				return out, true
			}
			e.physSend[ev.key] = b.to
			e.logicalDown[b.to] = true
			return append(pre, keyAction{b.to, true}), true
		case bindSendFn:
			e.absorbed[ev.key] = true
			if b.fn != nil {
				e.post(b.fn)
			}
			return pre, true
		case bindTapHold:
			ts := e.tapHoldFor(ev.key, b)
			return append(pre, e.tapHoldPress(ts)...), true
		}
	}

	// Unbound key.
	if fire, out := e.checkChord(ev.key, ev.key, pre); fire {
		return out, true
	}
	e.logicalDown[ev.key] = true
	if len(pre) > 0 {
		// A hold was committed by this press: the original event must be
		// suppressed and re-emitted after the hold modifier, or the OS sees
		// them out of order.
		return append(pre, keyAction{ev.key, true}), true
	}
	return nil, false
}

func (e *jmkEngine) onRelease(ev keyEvent) ([]keyAction, bool) {
	if e.absorbed[ev.key] {
		delete(e.absorbed, ev.key)
		delete(e.logicalDown, ev.key)
		e.noteLogicalUp(ev.key)
		return nil, true
	}

	if ts := e.holds[ev.key]; ts != nil && ts.phase != thIdle {
		return e.tapHoldRelease(ts), true
	}

	if target, ok := e.physSend[ev.key]; ok {
		delete(e.physSend, ev.key)
		delete(e.logicalDown, target)
		e.noteLogicalUp(target)
		return []keyAction{{target, false}}, true
	}

	delete(e.logicalDown, ev.key)
	e.noteLogicalUp(ev.key)
	return nil, false
}

// noteLogicalUp clears the fired-chord latch once a constituent goes up,
// re-arming the hotkey.
func (e *jmkEngine) noteLogicalUp(key vKey) {
	if e.firedChord == nil {
		return
	}
	for _, k := range e.firedChord {
		if k == key {
			e.firedChord = nil
			return
		}
	}
}

// checkChord tests whether pressing logical key completes a registered
// chord. On fire it returns the full emission: pending-hold commits, then
// releases for depressed modifiers, then the hotkey's own output. The
// triggering physical key's release is absorbed.
func (e *jmkEngine) checkChord(logical, physical vKey, pre []keyAction) (bool, []keyAction) {
	if e.firedChord != nil {
		return false, nil
	}

	downs := make(chord, 0, len(e.logicalDown)+1)
	for k := range e.logicalDown {
		downs = append(downs, k)
	}
	downs = append(downs, logical)
	downs.sort()

	hk, ok := e.hotkeys[downs.canon()]
	if !ok {
		return false, nil
	}

	out := pre
	// Modifier cleanup: whatever modifiers the OS currently believes are
	// down would contaminate the synthetic chord. logicalDown keeps tracking
	// the physical depression so the chord can re-fire while they are held.
	for _, k := range downs {
		if k != logical && k.isModifier() && e.logicalDown[k] {
			out = append(out, keyAction{k, false})
		}
	}
	out = append(out, hk.send...)
	if hk.fn != nil {
		e.post(hk.fn)
	}
	e.absorbed[physical] = true
	e.firedChord = hk.keys
	return true, out
}

// releaseStuckState emits releases for everything the engine still believes
// is down: held hold-modifiers and remapped keys. Called at shutdown so no
// modifier is stranded in the OS input state.
func (e *jmkEngine) releaseStuckState() []keyAction {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []keyAction
	for _, ts := range e.holds {
		if ts.phase == thHeld {
			out = append(out, e.commitHoldRelease(ts)...)
			ts.phase = thIdle
		}
		ts.gen++
	}
	e.pendingOrder = e.pendingOrder[:0]
	for k := range e.logicalDown {
		out = append(out, keyAction{k, false})
		delete(e.logicalDown, k)
	}
	e.physSend = map[vKey]vKey{}
	e.absorbed = map[vKey]bool{}
	e.firedChord = nil
	return out
}
