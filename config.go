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
)

// appConfig is the assembled configuration. Configuration is code: this is
// built by defaultConfig plus whatever the optional data file overrides.
type appConfig struct {
	layers  []*keymapLayer
	hotkeys []hotkeyConfig

	rules  []*windowRule
	themes []*layoutTheme

	workspaceCount int
	compensate     bool
}

// hotkeyConfig binds a physical chord to either a synthetic chord or a
// named WM command, resolved against the command registry at wire-up time.
// Opaque names instead of function pointers: the table stays printable for
// diagnostics.
type hotkeyConfig struct {
	keys     string // "Win+J"
	sendKeys string // "Alt+F4": synthetic chord to emit, or
	command  string // "next_window": WM command name
}

func mustRule(exe, title, class string, mutate func(*windowRule)) *windowRule {
	r, err := newRule(exe, title, class)
	if err != nil {
		panic(err)
	}
	if mutate != nil {
		mutate(r)
	}
	return r
}

func boolPtr(b bool) *bool { return &b }

func defaultConfig() *appConfig {
	base := &keymapLayer{name: "base", binds: map[vKey]binding{
		// CapsLock: Escape on tap, Ctrl on hold. The classic.
		vkCapital: tapHoldMod(vkEscape, vkLControl, 0, 0),
	}}

	cfg := &appConfig{
		layers:         []*keymapLayer{base},
		workspaceCount: defaultWorkspaceCount,
		compensate:     true,
	}

	cfg.hotkeys = []hotkeyConfig{
		{keys: "Win+J", command: "next_window"},
		{keys: "Win+K", command: "prev_window"},
		{keys: "Win+Shift+J", command: "swap_next"},
		{keys: "Win+Shift+K", command: "swap_prev"},
		{keys: "Win+Return", command: "set_master"},
		{keys: "Win+N", command: "roll_next"},
		{keys: "Win+P", command: "roll_prev"},
		{keys: "Win+T", command: "toggle_tilable"},
		{keys: "Win+M", command: "toggle_mono"},
		{keys: "Win+Up", command: "toggle_maximize"},
		{keys: "Win+Down", command: "minimize"},
		{keys: "Win+Space", command: "next_theme"},
		{keys: "Win+Shift+Space", command: "prev_theme"},
		{keys: "Win+1", command: "switch_to_workspace_1"},
		{keys: "Win+2", command: "switch_to_workspace_2"},
		{keys: "Win+3", command: "switch_to_workspace_3"},
		{keys: "Win+4", command: "switch_to_workspace_4"},
		{keys: "Win+Shift+1", command: "move_to_workspace_1"},
		{keys: "Win+Shift+2", command: "move_to_workspace_2"},
		{keys: "Win+Shift+3", command: "move_to_workspace_3"},
		{keys: "Win+Shift+4", command: "move_to_workspace_4"},
		{keys: "Win+Comma", command: "prev_monitor"},
		{keys: "Win+Period", command: "next_monitor"},
		{keys: "Win+Shift+Comma", command: "move_to_prev_monitor"},
		{keys: "Win+Shift+Period", command: "move_to_next_monitor"},
		{keys: "Win+R", command: "arrange_all"},
	}

	// Shell frames and system surfaces are never ours to manage; anything
	// else is decided by the user's rules file.
	cfg.rules = []*windowRule{
		mustRule("", "", "^(Shell_TrayWnd|Shell_SecondaryTrayWnd|Progman|WorkerW)$", func(r *windowRule) {
			r.manageable = boolPtr(false)
		}),
		mustRule("", "", "^(XamlExplorerHostIslandWindow|MultitaskingViewFrame)$", func(r *windowRule) {
			r.manageable = boolPtr(false)
		}),
	}

	cfg.themes = []*layoutTheme{
		{name: "dwindle", tile: dwindle, gap: 4},
		{
			name: "widescreen_dwindle", tile: widescreenDwindle, gap: 4,
			// Big panels get the widescreen split.
			affinity: func(inches, ratio float64) int {
				if inches >= 30 && ratio > 1.9 {
					return 10
				}
				return -1
			},
		},
		{name: "mono", tile: monocle},
		{name: "obs_dwindle", tile: obsDwindle, gap: 4},
		{name: "static8", tile: static8, gap: 4},
	}

	return cfg
}

// applyFileOverrides merges the optional data file into the config: its
// rules append after the built-ins, its themes replace the defaults.
func (cfg *appConfig) applyFileOverrides(path string) error {
	cf, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	for _, rs := range cf.Rules {
		r, err := rs.build()
		if err != nil {
			return err
		}
		cfg.rules = append(cfg.rules, r)
	}
	if len(cf.Themes) > 0 {
		themes := make([]*layoutTheme, 0, len(cf.Themes))
		for _, ts := range cf.Themes {
			t, err := ts.build()
			if err != nil {
				return err
			}
			themes = append(themes, t)
		}
		cfg.themes = themes
	}
	return nil
}

// validate fails fast on configuration mistakes, naming the offender.
func (cfg *appConfig) validate() error {
	if err := validateRules(cfg.rules); err != nil {
		return err
	}
	seen := map[string]string{}
	for _, hc := range cfg.hotkeys {
		c, err := parseChord(hc.keys)
		if err != nil {
			return err
		}
		if prev, dup := seen[c.canon()]; dup {
			return fmt.Errorf("hotkey %q overlaps %q", hc.keys, prev)
		}
		seen[c.canon()] = hc.keys
		if hc.sendKeys != "" {
			if _, err := parseChord(hc.sendKeys); err != nil {
				return err
			}
		}
	}
	if len(cfg.themes) == 0 {
		return fmt.Errorf("no themes configured")
	}
	return nil
}

// wireHotkeys registers the hotkey table with the engine, resolving command
// names against the WM's registry. Callbacks reach the daemon thread via
// the engine's post seam.
func (cfg *appConfig) wireHotkeys(engine *jmkEngine, wm *tilingWM) error {
	cmds := wm.commands()
	for _, hc := range cfg.hotkeys {
		c, err := parseChord(hc.keys)
		if err != nil {
			return err
		}
		var send []keyAction
		var fn func()
		if hc.sendKeys != "" {
			target, err := parseChord(hc.sendKeys)
			if err != nil {
				return err
			}
			send = sendChord(target)
		}
		if hc.command != "" {
			cmd, ok := cmds[hc.command]
			if !ok {
				return fmt.Errorf("hotkey %q: unknown command %q", hc.keys, hc.command)
			}
			fn = cmd
		}
		if send == nil && fn == nil {
			return fmt.Errorf("hotkey %q has neither keys to send nor a command", hc.keys)
		}
		if err := engine.addHotkey(c, send, fn); err != nil {
			return err
		}
	}
	return nil
}
