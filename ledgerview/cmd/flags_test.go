package main

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/arthur-debert/ledgerview/types"
)

func recordFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addRecordFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return flags
}

func TestRecordFromFlags(t *testing.T) {
	flags := recordFlagSet(t, "--number", "INV-9", "--counterparty", "Acme", "--total", "19.90", "--date", "2024-05-06")
	rec, err := recordFromFlags(types.KindInvoice, flags)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Number != "INV-9" || rec.Counterparty != "Acme" {
		t.Errorf("unexpected text fields: %+v", rec)
	}
	if rec.Total == nil || *rec.Total != 19.90 {
		t.Errorf("unexpected total: %v", rec.Total)
	}
	if rec.Date == nil || !rec.Date.Equal(*types.Day(2024, 5, 6)) {
		t.Errorf("unexpected date: %v", rec.Date)
	}

	rec, err = recordFromFlags(types.KindBriefing, recordFlagSet(t, "--notes", "kickoff"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Total != nil || rec.Date != nil {
		t.Error("unset total and date must stay null")
	}
}

func TestPatchFromFlags(t *testing.T) {
	t.Run("only changed flags are patched", func(t *testing.T) {
		p, err := patchFromFlags(recordFlagSet(t, "--tag", "rent"))
		if err != nil {
			t.Fatal(err)
		}
		if p.Tag == nil || *p.Tag != "rent" {
			t.Errorf("expected tag patch, got %+v", p)
		}
		if p.Number != nil || p.Counterparty != nil || p.Total != nil || p.Date != nil {
			t.Errorf("unexpected fields in patch: %+v", p)
		}
	})

	t.Run("empty total and date clear", func(t *testing.T) {
		p, err := patchFromFlags(recordFlagSet(t, "--total", "", "--date", ""))
		if err != nil {
			t.Fatal(err)
		}
		if !p.ClearTotal || !p.ClearDate {
			t.Errorf("expected clears, got %+v", p)
		}
	})

	t.Run("empty text sets empty string", func(t *testing.T) {
		p, err := patchFromFlags(recordFlagSet(t, "--counterparty", ""))
		if err != nil {
			t.Fatal(err)
		}
		if p.Counterparty == nil || *p.Counterparty != "" {
			t.Errorf("expected empty counterparty patch, got %+v", p)
		}
	})

	t.Run("no flags is an error", func(t *testing.T) {
		if _, err := patchFromFlags(recordFlagSet(t)); err == nil {
			t.Error("expected error for empty patch")
		}
	})
}

func TestViewKeyFromFlags(t *testing.T) {
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	addFilterFlags(flags)
	flags.String("sort", "", "")
	flags.Bool("desc", false, "")
	flags.String("group", "", "")
	if err := flags.Parse([]string{"--kind", "briefing", "--sort", "number", "--group", "tag", "--from", "2024-01-01"}); err != nil {
		t.Fatal(err)
	}

	key, err := viewKeyFromFlags(flags)
	if err != nil {
		t.Fatal(err)
	}
	if key.Entity != types.EntityBriefings {
		t.Errorf("expected entity derived from kind, got %q", key.Entity)
	}
	if key.Sort.Field != types.SortByNumber || key.Sort.Descending {
		t.Errorf("unexpected sort: %v", key.Sort)
	}
	if key.Grouping != types.GroupByTag {
		t.Errorf("unexpected grouping: %q", key.Grouping)
	}
	if key.Filters.From == nil || !key.Filters.From.Equal(*types.Day(2024, 1, 1)) {
		t.Errorf("unexpected from filter: %v", key.Filters.From)
	}
}
