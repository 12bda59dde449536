package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kr/pretty"
	"gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/lookingstars/Xcodeproj/value"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// render formats m for display.
func render(m *value.Map, format string) (string, error) {
	switch format {
	case "tree":
		var b strings.Builder
		writeTree(&b, m, 0)
		return b.String(), nil
	case "json":
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return "", err
		}
		return buf.String(), nil
	case "yaml":
		out, err := yaml.Marshal(toYAML(m))
		if err != nil {
			return "", err
		}
		return string(out), nil
	case "go":
		return pretty.Sprintf("%# v\n", value.Native(m)), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// parseSource decodes a JSON or YAML document into a value.
func parseSource(data []byte, format string) (value.Value, error) {
	switch format {
	case "json":
		return value.DecodeJSON(bytes.NewReader(data))
	case "yaml":
		var doc yamlv3.Node
		if err := yamlv3.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			return value.NewMap(0), nil
		}
		return fromYAML(doc.Content[0])
	}
	return nil, fmt.Errorf("unknown input format %q", format)
}

// fromYAML converts a YAML node. Keys and non-boolean scalars keep the text
// they were written with, so "no:" stays a key and "0x1F" is not reformatted.
func fromYAML(n *yamlv3.Node) (value.Value, error) {
	switch n.Kind {
	case yamlv3.AliasNode:
		return fromYAML(n.Alias)
	case yamlv3.MappingNode:
		m := value.NewMap(len(n.Content) / 2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yamlv3.AliasNode {
				k = k.Alias
			}
			if k.Kind != yamlv3.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", k.Line)
			}
			v, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		return m, nil
	case yamlv3.SequenceNode:
		seq := make(value.Seq, len(n.Content))
		for i, e := range n.Content {
			v, err := fromYAML(e)
			if err != nil {
				return nil, err
			}
			seq[i] = v
		}
		return seq, nil
	case yamlv3.ScalarNode:
		switch n.ShortTag() {
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return value.Bool(b), nil
		case "!!null":
			return value.Str(""), nil
		}
		return value.Str(n.Value), nil
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func toYAML(v value.Value) any {
	switch x := v.(type) {
	case *value.Map:
		out := make(yaml.MapSlice, 0, x.Len())
		for k, e := range x.All() {
			out = append(out, yaml.MapItem{Key: k, Value: toYAML(e)})
		}
		return out
	case value.Seq:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toYAML(e)
		}
		return out
	}
	return value.Native(v)
}

func writeTree(b *strings.Builder, v value.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	switch x := v.(type) {
	case *value.Map:
		for k, e := range x.All() {
			b.WriteString(indent)
			b.WriteString(keyStyle.Render(k))
			writeChild(b, e, depth)
		}
	case value.Seq:
		for i, e := range x {
			b.WriteString(indent)
			b.WriteString(typeStyle.Render(value.IndexSegment(i)))
			writeChild(b, e, depth)
		}
	}
}

func writeChild(b *strings.Builder, v value.Value, depth int) {
	switch v.Kind() {
	case value.KindMap, value.KindSeq:
		b.WriteString(":\n")
		writeTree(b, v, depth+1)
	default:
		b.WriteString(": ")
		b.WriteString(leafText(v))
		b.WriteByte('\n')
	}
}

func leafText(v value.Value) string {
	if v.Kind() == value.KindBool {
		return typeStyle.Render(v.String())
	}
	return resultStyle.Render(fmt.Sprintf("%q", v.String()))
}

// summary describes a node in one line.
func summary(v value.Value) string {
	switch x := v.(type) {
	case *value.Map:
		return typeStyle.Render(fmt.Sprintf("{%d keys}", x.Len()))
	case value.Seq:
		return typeStyle.Render(fmt.Sprintf("[%d items]", len(x)))
	}
	return leafText(v)
}
