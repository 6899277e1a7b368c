package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/five82/xnatrack/internal/app"
	"github.com/five82/xnatrack/internal/xnat"
)

// Format selects how results are written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

const descriptionWidth = 60

// Options configure a Renderer.
type Options struct {
	Format Format
	Theme  string
}

// Renderer writes command results to a stream.
type Renderer struct {
	w      io.Writer
	format Format
	styles Styles
	json   *json.Encoder
	yaml   *yaml.Encoder

	counts map[summaryKey]int
	order  []summaryKey
}

type summaryKey struct {
	action string
	status app.Status
}

// NewRenderer returns a Renderer writing to w. Colors are only emitted when
// w is a terminal.
func NewRenderer(w io.Writer, opts Options) *Renderer {
	r := &Renderer{
		w:      w,
		format: opts.Format,
		styles: GetTheme(opts.Theme).Styles(lipgloss.NewRenderer(w)),
		counts: map[summaryKey]int{},
	}
	switch r.format {
	case FormatJSON:
		r.json = json.NewEncoder(w)
	case FormatYAML:
		r.yaml = yaml.NewEncoder(w)
		r.yaml.SetIndent(2)
	default:
		r.format = FormatText
	}
	return r
}

// Render writes one result.
func (r *Renderer) Render(res app.Result) error {
	key := summaryKey{action: res.Action, status: res.Status}
	if r.counts[key] == 0 {
		r.order = append(r.order, key)
	}
	r.counts[key]++

	switch r.format {
	case FormatJSON:
		return r.json.Encode(res)
	case FormatYAML:
		return r.yaml.Encode(res)
	default:
		return r.renderText(res)
	}
}

// Close writes the trailing action summary in text mode and flushes any
// buffered document.
func (r *Renderer) Close() error {
	if r.yaml != nil {
		return r.yaml.Close()
	}
	if r.format != FormatText || r.total() < 2 {
		return nil
	}
	var b strings.Builder
	b.WriteString(r.styles.MutedText.Render("action summary:") + "\n")
	actions := []string{}
	for _, k := range r.order {
		if !slices.Contains(actions, k.action) {
			actions = append(actions, k.action)
		}
	}
	for _, action := range actions {
		var parts []string
		for _, k := range r.order {
			if k.action == action {
				parts = append(parts, fmt.Sprintf("%s: %d", r.styles.StatusStyle(k.status).Render(string(k.status)), r.counts[k]))
			}
		}
		fmt.Fprintf(&b, "  %s (%s)\n", action, strings.Join(parts, ", "))
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) total() int {
	n := 0
	for _, c := range r.counts {
		n += c
	}
	return n
}

func (r *Renderer) renderText(res app.Result) error {
	var b strings.Builder
	status := r.styles.StatusStyle(res.Status).Render(string(res.Status))
	fmt.Fprintf(&b, "%s(%s):", res.Action, status)
	if res.Path != "" {
		b.WriteString(" " + r.styles.AccentText.Render(res.Path))
	}
	if res.File != nil && res.File.ByteSize > 0 {
		b.WriteString(" " + r.styles.FaintText.Render("("+humanizeBytes(res.File.ByteSize)+")"))
	} else if res.Type != "" {
		b.WriteString(" " + r.styles.FaintText.Render("("+res.Type+")"))
	}
	if res.Message != "" {
		b.WriteString(" [" + res.Message + "]")
	}
	b.WriteString("\n")

	for _, item := range res.Items {
		b.WriteString("  - " + item + "\n")
	}
	if len(res.Records) > 0 {
		writeRecords(&b, r.styles, res.Records)
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// writeRecords lists server records as an ID column followed by a name.
func writeRecords(b *strings.Builder, styles Styles, records []xnat.Record) {
	type row struct{ id, name string }
	rows := make([]row, 0, len(records))
	width := 0
	for _, raw := range records {
		rec := raw.Lower()
		id, _ := rec.String("id")
		name, ok := rec.String("name")
		if !ok {
			name, _ = rec.String("description")
		}
		rows = append(rows, row{id: id, name: name})
		width = max(width, len([]rune(id)))
	}
	for _, r := range rows {
		line := "  " + padRight(r.id, width)
		if r.name != "" {
			line += "  " + styles.MutedText.Render(truncate(r.name, descriptionWidth))
		}
		b.WriteString(line + "\n")
	}
}
