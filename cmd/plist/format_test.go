package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/lookingstars/Xcodeproj/value"
)

func sample() *value.Map {
	m := value.NewMap(3)
	m.Set("name", value.Str("demo"))
	m.Set("targets", value.Seq{value.Str("app"), value.Str("tests")})
	nested := value.NewMap(1)
	nested.Set("enabled", value.Bool(true))
	m.Set("settings", nested)
	return m
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		name   string
		format string
		data   string
	}{
		{"json", "json", `{"name":"demo","targets":["app","tests"],"settings":{"enabled":true}}`},
		{"yaml", "yaml", "name: demo\ntargets:\n  - app\n  - tests\nsettings:\n  enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSource([]byte(tt.data), tt.format)
			if err != nil {
				t.Fatalf("parseSource failed: %v", err)
			}
			if !value.Equal(sample(), got) {
				t.Errorf("parseSource = %v, want %v", got, sample())
			}
		})
	}
}

func TestParseSource_Scalars(t *testing.T) {
	got, err := parseSource([]byte("n: 42\nz: 1.5\nnothing:\n"), "yaml")
	if err != nil {
		t.Fatalf("parseSource failed: %v", err)
	}
	want := map[string]any{"n": "42", "z": "1.5", "nothing": ""}
	if diff := cmp.Diff(want, value.Native(got)); diff != "" {
		t.Errorf("parseSource mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSource_YAMLKeyText(t *testing.T) {
	data := "n: 42\nyes: a\non: [x]\nOff: false\ny:\n  no: b\n"
	got, err := parseSource([]byte(data), "yaml")
	if err != nil {
		t.Fatalf("parseSource failed: %v", err)
	}
	want := map[string]any{
		"n":   "42",
		"yes": "a",
		"on":  []any{"x"},
		"Off": false,
		"y":   map[string]any{"no": "b"},
	}
	if diff := cmp.Diff(want, value.Native(got)); diff != "" {
		t.Errorf("parseSource mismatch (-want +got):\n%s", diff)
	}

	m := got.(*value.Map)
	if diff := cmp.Diff([]string{"n", "yes", "on", "Off", "y"}, m.Keys()); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSource_YAMLAliasAndEmpty(t *testing.T) {
	got, err := parseSource([]byte("base: &b hex\ncopy: *b\nraw: 0x1F\n"), "yaml")
	if err != nil {
		t.Fatalf("parseSource failed: %v", err)
	}
	want := map[string]any{"base": "hex", "copy": "hex", "raw": "0x1F"}
	if diff := cmp.Diff(want, value.Native(got)); diff != "" {
		t.Errorf("parseSource mismatch (-want +got):\n%s", diff)
	}

	got, err = parseSource(nil, "yaml")
	if err != nil {
		t.Fatalf("parseSource(empty) failed: %v", err)
	}
	if m, ok := got.(*value.Map); !ok || m.Len() != 0 {
		t.Errorf("parseSource(empty) = %v, want empty mapping", got)
	}

	if _, err := parseSource([]byte("? [a]\n: b\n"), "yaml"); err == nil {
		t.Error("Expected error for a sequence key")
	}
}

func TestParseSource_UnknownFormat(t *testing.T) {
	if _, err := parseSource([]byte("{}"), "toml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"json", []string{`"name": "demo"`, `"enabled": true`}},
		{"yaml", []string{"name: demo", "- app", "enabled: true"}},
		{"go", []string{`"name"`, `"demo"`}},
		{"tree", []string{"name", "demo", "[1]", "tests"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := render(sample(), tt.format)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}

	if _, err := render(sample(), "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestRender_YAMLKeepsOrder(t *testing.T) {
	out, err := render(sample(), "yaml")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Index(out, "name:") > strings.Index(out, "targets:") ||
		strings.Index(out, "targets:") > strings.Index(out, "settings:") {
		t.Errorf("keys out of insertion order:\n%s", out)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedModel(t *testing.T) *browseModel {
	t.Helper()
	m := newBrowseModel("demo.plist", func() (*value.Map, error) { return sample(), nil })
	msg := m.Init()()
	m.Update(msg)
	if m.state != stateNavigate {
		t.Fatalf("state = %v, want navigate", m.state)
	}
	return m
}

func TestBrowse_Navigate(t *testing.T) {
	m := loadedModel(t)

	m.Update(key("down"))
	m.Update(key("enter"))
	if got := m.path(); got != "root.targets" {
		t.Errorf("path = %q, want root.targets", got)
	}
	if n := len(m.visible()); n != 2 {
		t.Errorf("visible = %d entries, want 2", n)
	}

	m.Update(key("enter"))
	if got := m.path(); got != "root.targets" {
		t.Errorf("entering a leaf changed path to %q", got)
	}

	m.Update(key("esc"))
	if got := m.path(); got != "root" {
		t.Errorf("path = %q, want root", got)
	}
	if !strings.Contains(m.View(), "targets") {
		t.Errorf("View missing targets:\n%s", m.View())
	}
}

func TestBrowse_Filter(t *testing.T) {
	m := loadedModel(t)

	m.Update(key("/"))
	if m.state != stateFilter {
		t.Fatalf("state = %v, want filter", m.state)
	}
	for _, r := range "set" {
		m.Update(key(string(r)))
	}
	vis := m.visible()
	if len(vis) != 1 || vis[0].label != "settings" {
		t.Fatalf("visible = %v, want settings only", vis)
	}

	m.Update(key("enter"))
	m.Update(key("enter"))
	if got := m.path(); got != "root.settings" {
		t.Errorf("path = %q, want root.settings", got)
	}
	if m.filter.Value() != "" {
		t.Errorf("filter = %q after descending, want empty", m.filter.Value())
	}
}

func TestBrowse_LoadError(t *testing.T) {
	m := newBrowseModel("bad.plist", func() (*value.Map, error) {
		return nil, errTest
	})
	m.Update(m.Init()())
	if !strings.Contains(m.View(), "boom") {
		t.Errorf("View does not show the error:\n%s", m.View())
	}
	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("q did not quit")
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
