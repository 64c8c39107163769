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
	"os"
	"path/filepath"
	"testing"
)

func TestRuleMatching(t *testing.T) {
	r := mustRule("cmd\\.exe", "nvim", "", nil)

	if !r.matches("cmd.exe", "nvim - main.go", "ConsoleWindowClass") {
		t.Fatal("must match")
	}
	if !r.matches("CMD.EXE", "nvim", "x") {
		t.Fatal("exe matching must be case-insensitive")
	}
	if r.matches("cmd.exe", "powershell", "x") {
		t.Fatal("title mismatch must not match")
	}
	if r.matches("explorer.exe", "nvim", "x") {
		t.Fatal("exe mismatch must not match")
	}
}

func TestRuleEmptyPatternsMatchAll(t *testing.T) {
	r := mustRule("", "", "", nil)
	if !r.matches("anything.exe", "whatever", "SomeClass") {
		t.Fatal("empty rule must match everything")
	}
}

func TestApplyRulesFirstEffectWins(t *testing.T) {
	rules := []*windowRule{
		mustRule("a\\.exe", "", "", func(r *windowRule) { r.staticIndex = 2 }),
		mustRule("a\\.exe", "", "", func(r *windowRule) { r.staticIndex = 5; r.preferredMonitor = 1 }),
	}
	eff := applyRules(rules, "a.exe", "t", "c")
	if eff.staticIndex != 2 {
		t.Fatalf("staticIndex = %d, want the first match", eff.staticIndex)
	}
	if eff.preferredMonitor != 1 {
		t.Fatalf("preferredMonitor = %d, want 1", eff.preferredMonitor)
	}
}

func TestApplyRulesIgnoreShortCircuits(t *testing.T) {
	rules := []*windowRule{
		mustRule("a\\.exe", "", "", func(r *windowRule) { r.manageable = boolPtr(false) }),
		mustRule("a\\.exe", "", "", func(r *windowRule) { r.staticIndex = 1 }),
	}
	eff := applyRules(rules, "a.exe", "t", "c")
	if eff.manageable {
		t.Fatal("manageable=false rule must win outright")
	}
}

func TestValidateRulesDuplicateStatic(t *testing.T) {
	rules := []*windowRule{
		mustRule("a\\.exe", "", "", func(r *windowRule) { r.staticIndex = 0 }),
		mustRule("b\\.exe", "", "", func(r *windowRule) { r.staticIndex = 0 }),
	}
	if err := validateRules(rules); err == nil {
		t.Fatal("duplicate static index must fail validation")
	}
}

func TestBadPatternRejected(t *testing.T) {
	if _, err := newRule("(", "", ""); err == nil {
		t.Fatal("invalid regexp must error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "winjig.yaml")
	data := `
rules:
  - exe: "cmd\\.exe"
    title: nvim
    static_index: 0
  - class: "^SplashWindow$"
    manageable: false
themes:
  - name: big
    tiler: widescreen_dwindle
    gap: 6
    min_inches: 30
  - name: small
    tiler: dwindle
    gap: 4
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cf, err := loadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cf.Rules) != 2 || len(cf.Themes) != 2 {
		t.Fatalf("parsed %d rules, %d themes", len(cf.Rules), len(cf.Themes))
	}

	r0, err := cf.Rules[0].build()
	if err != nil {
		t.Fatal(err)
	}
	if r0.staticIndex != 0 || !r0.matches("cmd.exe", "nvim", "") {
		t.Fatalf("rule 0 built wrong: %+v", r0)
	}

	r1, err := cf.Rules[1].build()
	if err != nil {
		t.Fatal(err)
	}
	if r1.manageable == nil || *r1.manageable {
		t.Fatal("manageable=false lost in translation")
	}

	th0, err := cf.Themes[0].build()
	if err != nil {
		t.Fatal(err)
	}
	if th0.gap != 6 || th0.affinity == nil {
		t.Fatalf("theme 0 built wrong: %+v", th0)
	}
	if th0.affinity(32, 2.0) <= th0.affinity(24, 2.0) {
		t.Fatal("min_inches affinity must prefer the larger panel")
	}

	if _, err := (themeSpec{Name: "x", Tiler: "bogus"}).build(); err == nil {
		t.Fatal("unknown tiler must error")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	cfg.hotkeys = append(cfg.hotkeys, hotkeyConfig{keys: "Win+J", command: "next_window"})
	if err := cfg.validate(); err == nil {
		t.Fatal("overlapping hotkeys must fail validation")
	}

	cfg = defaultConfig()
	cfg.hotkeys = []hotkeyConfig{{keys: "Win+Bogus", command: "next_window"}}
	if err := cfg.validate(); err == nil {
		t.Fatal("unknown key name must fail validation")
	}
}
