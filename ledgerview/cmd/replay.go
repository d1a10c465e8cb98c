package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/ledgerview/ledgerview/console"
	"github.com/arthur-debert/ledgerview/types"
)

// Script is a replay script: views to open and mutations to apply in order
type Script struct {
	Views []ScriptView `yaml:"views"`
	Steps []ScriptStep `yaml:"steps"`
}

// ScriptView declares one open view
type ScriptView struct {
	Name    string        `yaml:"name"`
	Entity  string        `yaml:"entity"`
	Sort    string        `yaml:"sort"`
	Desc    bool          `yaml:"desc"`
	Group   string        `yaml:"group"`
	Filters ScriptFilters `yaml:"filters"`
}

// ScriptFilters mirrors types.Filters with plain strings for dates
type ScriptFilters struct {
	Kinds        []string `yaml:"kinds"`
	Counterparty string   `yaml:"counterparty"`
	Tag          string   `yaml:"tag"`
	Search       string   `yaml:"search"`
	From         string   `yaml:"from"`
	To           string   `yaml:"to"`
}

// ScriptStep is exactly one mutation
type ScriptStep struct {
	Create *ScriptCreate `yaml:"create"`
	Edit   *ScriptEdit   `yaml:"edit"`
	Delete *ScriptTarget `yaml:"delete"`
}

// ScriptTarget names an existing record, either by kind and id or by the
// alias a previous create step gave it
type ScriptTarget struct {
	Ref  string `yaml:"ref"`
	Kind string `yaml:"kind"`
	ID   int64  `yaml:"id"`
}

// ScriptCreate creates a record; As names it for later steps
type ScriptCreate struct {
	As           string `yaml:"as"`
	Kind         string `yaml:"kind"`
	Number       string `yaml:"number"`
	Counterparty string `yaml:"counterparty"`
	Tag          string `yaml:"tag"`
	Notes        string `yaml:"notes"`
	Total        string `yaml:"total"`
	Date         string `yaml:"date"`
}

// ScriptEdit changes the fields present under Set. An empty total or date
// clears the field.
type ScriptEdit struct {
	ScriptTarget `yaml:",inline"`
	Set          struct {
		Number       *string `yaml:"number"`
		Counterparty *string `yaml:"counterparty"`
		Tag          *string `yaml:"tag"`
		Notes        *string `yaml:"notes"`
		Total        *string `yaml:"total"`
		Date         *string `yaml:"date"`
	} `yaml:"set"`
}

// stepOutput is the state of every view after one step
type stepOutput struct {
	Step   int           `json:"step" yaml:"step"`
	Action string        `json:"action" yaml:"action"`
	Views  []viewOutput  `json:"views" yaml:"views"`
	Record *types.Record `json:"record,omitempty" yaml:"record,omitempty"`
}

type replayOutput struct {
	Steps   []stepOutput       `json:"steps" yaml:"steps"`
	Metrics map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// addReplayCommand adds the replay command
func (cli *CLI) addReplayCommand() {
	replayCmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Open views, apply scripted mutations and print every view after each step",
		Long: `Replay a YAML script against the configured store. Views are loaded once;
after that every change reaches them only through local propagation, so the
output shows exactly what an open screen would display.

Script format:
  views:
    - name: recent
      sort: date
      desc: true
      group: month
  steps:
    - create: {as: a, kind: invoice, number: INV-1, total: 120, date: 2024-03-01}
    - edit: {ref: a, set: {date: 2024-01-15}}
    - delete: {ref: a}`,

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeReplayCommand(cmd, args[0])
		},
	}
	replayCmd.Flags().Bool("metrics", false, "Print propagation counters at the end")

	cli.rootCmd.AddCommand(replayCmd)
}

// LoadScript reads and checks a replay script
func LoadScript(path string) (*Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewStoreError("read script", err)
	}
	return ParseScript(raw)
}

// ParseScript decodes a replay script
func ParseScript(raw []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, &CLIError{Operation: "parse script", Cause: "invalid YAML", Details: err.Error(), Underlying: err}
	}
	if len(s.Views) == 0 {
		return nil, &CLIError{Operation: "parse script", Cause: "no views declared"}
	}
	for i, step := range s.Steps {
		n := 0
		for _, set := range []bool{step.Create != nil, step.Edit != nil, step.Delete != nil} {
			if set {
				n++
			}
		}
		if n != 1 {
			return nil, &CLIError{
				Operation: "parse script",
				Cause:     fmt.Sprintf("step %d must have exactly one of create, edit or delete", i+1),
			}
		}
	}
	return &s, nil
}

func (v ScriptView) key() (types.ViewKey, error) {
	const op = "open view"
	var f types.Filters
	for _, k := range v.Filters.Kinds {
		kind, err := parseKind(op, k)
		if err != nil {
			return types.ViewKey{}, err
		}
		f.Kinds = append(f.Kinds, kind)
	}
	f.Counterparty = v.Filters.Counterparty
	f.Tag = v.Filters.Tag
	f.Search = v.Filters.Search
	if v.Filters.From != "" {
		d, err := parseDay(op, "from", v.Filters.From)
		if err != nil {
			return types.ViewKey{}, err
		}
		f.From = d
	}
	if v.Filters.To != "" {
		d, err := parseDay(op, "to", v.Filters.To)
		if err != nil {
			return types.ViewKey{}, err
		}
		f.To = d
	}

	entity := types.EntityDocuments
	if v.Entity != "" {
		entity = types.EntityType(strings.ToLower(v.Entity))
	} else if len(f.Kinds) > 0 {
		entity = f.Kinds[0].Entity()
	}

	var spec types.SortSpec
	if v.Sort != "" {
		field, err := types.ParseSortField(v.Sort)
		if err != nil {
			return types.ViewKey{}, NewValidationError(op, "sort", v.Sort, sortSuggestion())
		}
		spec = types.SortSpec{Field: field, Descending: v.Desc}
	}
	mode, err := types.ParseGroupingMode(v.Group)
	if err != nil {
		return types.ViewKey{}, NewValidationError(op, "group", v.Group)
	}
	return types.NewViewKey(entity, f, spec, mode), nil
}

func (c ScriptCreate) record() (types.Record, error) {
	const op = "create record"
	kind, err := parseKind(op, c.Kind)
	if err != nil {
		return types.Record{}, err
	}
	rec := types.Record{Kind: kind, Number: c.Number, Counterparty: c.Counterparty, Tag: c.Tag, Notes: c.Notes}
	if c.Total != "" {
		if rec.Total, err = parseTotal(op, c.Total); err != nil {
			return types.Record{}, err
		}
	}
	if c.Date != "" {
		if rec.Date, err = parseDay(op, "date", c.Date); err != nil {
			return types.Record{}, err
		}
	}
	return rec, nil
}

func (e ScriptEdit) patch() (types.Patch, error) {
	const op = "edit record"
	p := types.Patch{
		Number:       e.Set.Number,
		Counterparty: e.Set.Counterparty,
		Tag:          e.Set.Tag,
		Notes:        e.Set.Notes,
	}
	var err error
	if e.Set.Total != nil {
		if strings.TrimSpace(*e.Set.Total) == "" {
			p.ClearTotal = true
		} else if p.Total, err = parseTotal(op, *e.Set.Total); err != nil {
			return types.Patch{}, err
		}
	}
	if e.Set.Date != nil {
		if strings.TrimSpace(*e.Set.Date) == "" {
			p.ClearDate = true
		} else if p.Date, err = parseDay(op, "date", *e.Set.Date); err != nil {
			return types.Patch{}, err
		}
	}
	return p, nil
}

// replayer applies a script through one console session
type replayer struct {
	console *console.Console
	names   []string
	subs    []*console.Subscription
	aliases map[string]types.RecordRef
}

func (r *replayer) resolve(t ScriptTarget) (types.RecordRef, error) {
	if t.Ref != "" {
		ref, ok := r.aliases[t.Ref]
		if !ok {
			return types.RecordRef{}, &CLIError{Operation: "replay", Cause: fmt.Sprintf("unknown ref %q", t.Ref),
				Suggestions: []string{"Name the record with 'as' in an earlier create step"}}
		}
		return ref, nil
	}
	kind, err := parseKind("replay", t.Kind)
	if err != nil {
		return types.RecordRef{}, err
	}
	return types.RecordRef{Kind: kind, ID: t.ID}, nil
}

func (r *replayer) apply(ctx context.Context, step ScriptStep) (string, *types.Record, error) {
	switch {
	case step.Create != nil:
		rec, err := step.Create.record()
		if err != nil {
			return "", nil, err
		}
		created, err := r.console.Create(ctx, rec)
		if err != nil {
			return "", nil, WrapError("create record", err)
		}
		if step.Create.As != "" {
			r.aliases[step.Create.As] = created.Ref()
		}
		return fmt.Sprintf("create %s %d", created.Kind, created.ID), &created, nil

	case step.Edit != nil:
		ref, err := r.resolve(step.Edit.ScriptTarget)
		if err != nil {
			return "", nil, err
		}
		patch, err := step.Edit.patch()
		if err != nil {
			return "", nil, err
		}
		updated, err := r.console.Edit(ctx, ref.Kind, ref.ID, patch)
		if err != nil {
			return "", nil, notFoundOr("edit record", ref.Kind, ref.ID, err)
		}
		return fmt.Sprintf("edit %s %d", ref.Kind, ref.ID), &updated, nil

	default:
		ref, err := r.resolve(*step.Delete)
		if err != nil {
			return "", nil, err
		}
		if err := r.console.Delete(ctx, ref.Kind, ref.ID); err != nil {
			return "", nil, notFoundOr("delete record", ref.Kind, ref.ID, err)
		}
		return fmt.Sprintf("delete %s %d", ref.Kind, ref.ID), nil, nil
	}
}

func (r *replayer) snapshot(ctx context.Context) ([]viewOutput, error) {
	out := make([]viewOutput, 0, len(r.subs))
	for i, sub := range r.subs {
		v, err := renderView(ctx, r.console, r.names[i], sub)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (cli *CLI) executeReplayCommand(cmd *cobra.Command, path string) error {
	script, err := LoadScript(path)
	if err != nil {
		return err
	}
	withMetrics, _ := cmd.Flags().GetBool("metrics")
	ctx := cmd.Context()

	return cli.withConsole(func(cfg Config, c *console.Console) error {
		r := &replayer{console: c, aliases: make(map[string]types.RecordRef)}
		for i, v := range script.Views {
			key, err := v.key()
			if err != nil {
				return err
			}
			sub, err := c.Subscribe(key)
			if err != nil {
				return NewValidationError("open view", "view", key.String(), err.Error())
			}
			defer sub.Close()
			if err := sub.LoadAll(ctx); err != nil {
				return WrapError("load view", err)
			}
			name := v.Name
			if name == "" {
				name = fmt.Sprintf("view%d", i+1)
			}
			r.names = append(r.names, name)
			r.subs = append(r.subs, sub)
		}

		var transcript replayOutput
		views, err := r.snapshot(ctx)
		if err != nil {
			return WrapError("replay", err)
		}
		transcript.Steps = append(transcript.Steps, stepOutput{Step: 0, Action: "load", Views: views})

		for i, step := range script.Steps {
			action, rec, err := r.apply(ctx, step)
			if err != nil {
				return err
			}
			views, err := r.snapshot(ctx)
			if err != nil {
				return WrapError("replay", err)
			}
			transcript.Steps = append(transcript.Steps, stepOutput{Step: i + 1, Action: action, Views: views, Record: rec})
		}

		if withMetrics {
			metrics, err := propagationMetrics()
			if err != nil {
				return WrapError("gather metrics", err)
			}
			transcript.Metrics = metrics
		}

		of := cli.formatter(cfg)
		return of.Structured(transcript, func() {
			for _, s := range transcript.Steps {
				fmt.Fprintf(cli.out, "# step %d: %s\n", s.Step, s.Action)
				for _, v := range s.Views {
					of.viewTable(v)
				}
			}
			if len(transcript.Metrics) > 0 {
				names := make([]string, 0, len(transcript.Metrics))
				for name := range transcript.Metrics {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintln(cli.out, "# metrics")
				for _, name := range names {
					fmt.Fprintf(cli.out, "%s %g\n", name, transcript.Metrics[name])
				}
			}
		})
	})
}

// propagationMetrics reads the propagation counters from the default
// prometheus registry, keyed as name{op}
func propagationMetrics() (map[string]float64, error) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "ledgerview_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			out[mf.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}
