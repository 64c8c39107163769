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

import "testing"

func TestParseVKey(t *testing.T) {
	cases := []struct {
		in   string
		want vKey
	}{
		{"A", vKey('A')},
		{"a", vKey('A')},
		{"7", vKey('7')},
		{"F12", vkF12},
		{"f24", vkF24},
		{"Win", vkLWin},
		{"WIN", vkLWin},
		{"ctrl", vkLControl},
		{"LCONTROL", vkLControl},
		{"alt", vkLMenu},
		{"Esc", vkEscape},
		{"escape", vkEscape},
		{"caps", vkCapital},
		{"CAPITAL", vkCapital},
		{"enter", vkReturn},
		{"WHEEL_UP", vkWheelUp},
		{"wheel_down", vkWheelDown},
		{"XBUTTON1", vkXButton1},
		{"xbutton2", vkXButton2},
		{" Space ", vkSpace},
	}
	for _, c := range cases {
		got, err := parseVKey(c.in)
		if err != nil {
			t.Fatalf("parseVKey(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parseVKey(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseVKeyUnknown(t *testing.T) {
	if _, err := parseVKey("HYPER"); err == nil {
		t.Fatal("unknown key name must error")
	}
	if _, err := parseVKey(""); err == nil {
		t.Fatal("empty key name must error")
	}
}

func TestParseChord(t *testing.T) {
	a, err := parseChord("Win+Shift+J")
	if err != nil {
		t.Fatal(err)
	}
	b, err := parseChord("shift+j+WIN")
	if err != nil {
		t.Fatal(err)
	}
	if a.canon() != b.canon() {
		t.Fatalf("chord equality is order-sensitive: %q vs %q", a.canon(), b.canon())
	}
	if len(a) != 3 {
		t.Fatalf("chord has %d keys, want 3", len(a))
	}
}

func TestParseChordErrors(t *testing.T) {
	if _, err := parseChord("Win+Bogus"); err == nil {
		t.Fatal("unknown token must error")
	}
	if _, err := parseChord("Win+Win"); err == nil {
		t.Fatal("duplicate key must error")
	}
	if _, err := parseChord(""); err == nil {
		t.Fatal("empty chord must error")
	}
}

func TestVKeyString(t *testing.T) {
	if vkCapital.String() != "CAPITAL" {
		t.Fatalf("CAPITAL prints as %q", vkCapital.String())
	}
	if vKey('Q').String() != "Q" {
		t.Fatalf("Q prints as %q", vKey('Q').String())
	}
	if vkWheelUp.String() != "WHEEL_UP" {
		t.Fatalf("WHEEL_UP prints as %q", vkWheelUp.String())
	}
}

func TestIsModifier(t *testing.T) {
	for _, k := range []vKey{vkShift, vkLShift, vkRShift, vkControl, vkLControl,
		vkRControl, vkMenu, vkLMenu, vkRMenu, vkLWin, vkRWin} {
		if !k.isModifier() {
			t.Fatalf("%v must be a modifier", k)
		}
	}
	for _, k := range []vKey{vKey('A'), vkEscape, vkWheelUp, vkF1} {
		if k.isModifier() {
			t.Fatalf("%v must not be a modifier", k)
		}
	}
}
