package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/ledgerview/ledgerview/grouping"
	"github.com/arthur-debert/ledgerview/types"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	nullValue = "-"
)

// groupOutput is one group of a listed view, with its totals when the
// server reported any
type groupOutput struct {
	Key    string             `json:"key" yaml:"key"`
	Label  string             `json:"label" yaml:"label"`
	Rows   []types.Record     `json:"rows" yaml:"rows"`
	Totals map[string]float64 `json:"totals,omitempty" yaml:"totals,omitempty"`
}

// viewOutput is a listed view
type viewOutput struct {
	Name   string        `json:"name,omitempty" yaml:"name,omitempty"`
	View   string        `json:"view" yaml:"view"`
	Groups []groupOutput `json:"groups" yaml:"groups"`
}

func newViewOutput(name string, key types.ViewKey, groups []types.Group, totals []types.GroupTotals) viewOutput {
	out := viewOutput{Name: name, View: key.String(), Groups: make([]groupOutput, 0, len(groups))}
	for _, g := range groups {
		metrics, _ := grouping.TotalsForGroup(totals, g.Key)
		out.Groups = append(out.Groups, groupOutput{Key: g.Key, Label: g.Label, Rows: g.Rows, Totals: metrics})
	}
	return out
}

// OutputFormatter renders command results in the configured format
type OutputFormatter struct {
	format string
	w      io.Writer
}

// NewOutputFormatter creates a new output formatter
func NewOutputFormatter(format string, w io.Writer) *OutputFormatter {
	return &OutputFormatter{format: format, w: w}
}

// Structured writes data as JSON or YAML. In table format it falls back to
// the renderTable callback.
func (of *OutputFormatter) Structured(data interface{}, renderTable func()) error {
	switch of.format {
	case formatJSON:
		encoder := json.NewEncoder(of.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case formatYAML:
		encoder := yaml.NewEncoder(of.w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	default:
		renderTable()
		return nil
	}
}

// Records writes a flat record list
func (of *OutputFormatter) Records(rows []types.Record) error {
	return of.Structured(rows, func() {
		of.recordTable(rows)
	})
}

// Record writes a single record
func (of *OutputFormatter) Record(r types.Record) error {
	return of.Structured(r, func() {
		t := of.newTable()
		t.AppendRows([]table.Row{
			{"kind", r.Kind},
			{"id", r.ID},
			{"number", orNull(r.Number)},
			{"counterparty", orNull(r.Counterparty)},
			{"tag", orNull(r.Tag)},
			{"total", formatTotal(r.Total)},
			{"date", formatDate(r.Date)},
			{"notes", orNull(r.Notes)},
			{"version", r.Version},
		})
		t.Render()
	})
}

// Views writes one or more listed views
func (of *OutputFormatter) Views(views []viewOutput) error {
	var data interface{} = views
	if len(views) == 1 {
		data = views[0]
	}
	return of.Structured(data, func() {
		for _, v := range views {
			of.viewTable(v)
		}
	})
}

// Totals writes a totals list
func (of *OutputFormatter) Totals(list []types.GroupTotals) error {
	return of.Structured(list, func() {
		t := of.newTable()
		t.AppendHeader(table.Row{"group", types.MetricCount, types.MetricTotal})
		for _, g := range list {
			t.AppendRow(table.Row{g.GroupKey, formatMetric(g.Metrics, types.MetricCount), formatMetric(g.Metrics, types.MetricTotal)})
		}
		t.Render()
	})
}

func (of *OutputFormatter) viewTable(v viewOutput) {
	title := v.View
	if v.Name != "" {
		title = v.Name + ": " + v.View
	}
	fmt.Fprintf(of.w, "== %s ==\n", title)
	for _, g := range v.Groups {
		if len(v.Groups) > 1 || g.Key != grouping.AllKey {
			header := fmt.Sprintf("-- %s (%d)", g.Label, len(g.Rows))
			if g.Totals != nil {
				header += fmt.Sprintf(" total %s", formatMetric(g.Totals, types.MetricTotal))
			}
			fmt.Fprintln(of.w, header)
		}
		of.recordTable(g.Rows)
	}
	fmt.Fprintln(of.w)
}

func (of *OutputFormatter) recordTable(rows []types.Record) {
	t := of.newTable()
	t.AppendHeader(table.Row{"kind", "id", "number", "date", "counterparty", "tag", "total"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Kind, r.ID, orNull(r.Number), formatDate(r.Date), orNull(r.Counterparty), orNull(r.Tag), formatTotal(r.Total)})
	}
	t.Render()
}

func (of *OutputFormatter) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(of.w)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault
	return t
}

func orNull(s string) string {
	if s == "" {
		return nullValue
	}
	return s
}

func formatTotal(v *float64) string {
	if v == nil {
		return nullValue
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatDate(d *time.Time) string {
	if d == nil {
		return nullValue
	}
	return d.Format(types.DayLayout)
}

func formatMetric(metrics map[string]float64, name string) string {
	v, ok := metrics[name]
	if !ok {
		return nullValue
	}
	if name == types.MetricCount {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
