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
	"regexp"

	"gopkg.in/yaml.v3"
)

// windowRule matches windows by exe/title/class regexes and applies an
// effect set. Empty patterns match everything; the first matching rule of
// each effect wins, rules are checked in declaration order.
type windowRule struct {
	exePat   string
	titlePat string
	classPat string

	rxExe   *regexp.Regexp
	rxTitle *regexp.Regexp
	rxClass *regexp.Regexp

	manageable       *bool
	tilable          *bool
	preferredMonitor int // -1 = wherever the window appeared
	staticIndex      int // -1 = none
}

func newRule(exePat, titlePat, classPat string) (*windowRule, error) {
	r := &windowRule{
		exePat:           exePat,
		titlePat:         titlePat,
		classPat:         classPat,
		preferredMonitor: -1,
		staticIndex:      -1,
	}
	var err error
	if exePat != "" {
		if r.rxExe, err = regexp.Compile("(?i)" + exePat); err != nil {
			return nil, fmt.Errorf("rule exe pattern %q: %w", exePat, err)
		}
	}
	if titlePat != "" {
		if r.rxTitle, err = regexp.Compile(titlePat); err != nil {
			return nil, fmt.Errorf("rule title pattern %q: %w", titlePat, err)
		}
	}
	if classPat != "" {
		if r.rxClass, err = regexp.Compile(classPat); err != nil {
			return nil, fmt.Errorf("rule class pattern %q: %w", classPat, err)
		}
	}
	return r, nil
}

func (r *windowRule) matches(exe, title, class string) bool {
	if r.rxExe != nil && !r.rxExe.MatchString(exe) {
		return false
	}
	if r.rxTitle != nil && !r.rxTitle.MatchString(title) {
		return false
	}
	if r.rxClass != nil && !r.rxClass.MatchString(class) {
		return false
	}
	return true
}

// ruleEffect is the merged result of every matching rule.
type ruleEffect struct {
	manageable       bool
	tilable          bool
	preferredMonitor int
	staticIndex      int
}

// applyRules folds the rule list over a window's attributes. Any matching
// rule with manageable=false short-circuits: the window is ignored outright.
func applyRules(rules []*windowRule, exe, title, class string) ruleEffect {
	eff := ruleEffect{manageable: true, tilable: true, preferredMonitor: -1, staticIndex: -1}
	for _, r := range rules {
		if !r.matches(exe, title, class) {
			continue
		}
		if r.manageable != nil && !*r.manageable {
			eff.manageable = false
			return eff
		}
		if r.tilable != nil {
			eff.tilable = *r.tilable
		}
		if r.preferredMonitor >= 0 && eff.preferredMonitor < 0 {
			eff.preferredMonitor = r.preferredMonitor
		}
		if r.staticIndex >= 0 && eff.staticIndex < 0 {
			eff.staticIndex = r.staticIndex
		}
	}
	return eff
}

// validateRules fails fast on configurations that would corrupt the
// windowlist later: two rules pinning different matchers to the same static
// slot is almost always a typo.
func validateRules(rules []*windowRule) error {
	seen := map[int]*windowRule{}
	for _, r := range rules {
		if r.staticIndex < 0 {
			continue
		}
		if prev, dup := seen[r.staticIndex]; dup {
			return fmt.Errorf("duplicate static_window_index %d: rule (exe=%q title=%q) and rule (exe=%q title=%q)",
				r.staticIndex, prev.exePat, prev.titlePat, r.exePat, r.titlePat)
		}
		seen[r.staticIndex] = r
	}
	return nil
}

/* ---------------- Optional rules/themes file ---------------- */

// The data half of the configuration (rules and theme declarations) can be
// overridden from a YAML file so it is editable without recompiling. The
// behavior half (layers, hotkeys, services) stays code.

type ruleSpec struct {
	Exe              string `yaml:"exe"`
	Title            string `yaml:"title"`
	Class            string `yaml:"class"`
	Manageable       *bool  `yaml:"manageable"`
	Tilable          *bool  `yaml:"tilable"`
	PreferredMonitor *int   `yaml:"preferred_monitor"`
	StaticIndex      *int   `yaml:"static_index"`
}

type themeSpec struct {
	Name     string `yaml:"name"`
	Tiler    string `yaml:"tiler"`
	Gap      int32  `yaml:"gap"`
	MaxAreas int    `yaml:"max_areas"`
	MinInches float64 `yaml:"min_inches"`
}

type configFile struct {
	Rules  []ruleSpec  `yaml:"rules"`
	Themes []themeSpec `yaml:"themes"`
}

func loadConfigFile(path string) (*configFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &cf, nil
}

func (rs ruleSpec) build() (*windowRule, error) {
	r, err := newRule(rs.Exe, rs.Title, rs.Class)
	if err != nil {
		return nil, err
	}
	r.manageable = rs.Manageable
	r.tilable = rs.Tilable
	if rs.PreferredMonitor != nil {
		r.preferredMonitor = *rs.PreferredMonitor
	}
	if rs.StaticIndex != nil {
		r.staticIndex = *rs.StaticIndex
	}
	return r, nil
}

func (ts themeSpec) build() (*layoutTheme, error) {
	tile, ok := tilersByName[ts.Tiler]
	if !ok {
		return nil, fmt.Errorf("theme %q: unknown tiler %q", ts.Name, ts.Tiler)
	}
	t := &layoutTheme{
		name:     ts.Name,
		tile:     tile,
		gap:      ts.Gap,
		maxAreas: ts.MaxAreas,
	}
	if ts.MinInches > 0 {
		minInches := ts.MinInches
		t.affinity = func(inches, ratio float64) int {
			if inches >= minInches {
				return 1
			}
			return -1
		}
	}
	return t, nil
}
