package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/jedib0t/go-pretty/table"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/ledgerview/ledgerview/console"
	"github.com/arthur-debert/ledgerview/ledgerview/remote"
	"github.com/arthur-debert/ledgerview/types"
)

// addConfigCommand adds the config command
func (cli *CLI) addConfigCommand() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeShowConfig()
		},
	}
	cli.rootCmd.AddCommand(configCmd)
}

// addAddCommand adds the add command
func (cli *CLI) addAddCommand() {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a record",
		Long: `Create a record. The store assigns the id and version.

Examples:
  ledgerview add --kind invoice --number INV-1 --counterparty Acme --total 120 --date 2024-03-01
  ledgerview add --kind briefing --notes "Kickoff" --date 2024-04-01`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeAddCommand(cmd)
		},
	}
	addCmd.Flags().StringP("kind", "k", "", "Record kind (invoice|receipt|credit_note|briefing)")
	addRecordFlags(addCmd.Flags())
	_ = addCmd.MarkFlagRequired("kind")

	cli.rootCmd.AddCommand(addCmd)
}

// addEditCommand adds the edit command
func (cli *CLI) addEditCommand() {
	editCmd := &cobra.Command{
		Use:   "edit <kind> <id>",
		Short: "Change fields of a record",
		Long: `Change fields of a record. Only the flags you pass are changed; an empty
--total or --date clears that field.

Examples:
  ledgerview edit invoice 3 --total 99.90
  ledgerview edit receipt 1 --date ""`,

		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeEditCommand(cmd, args)
		},
	}
	addRecordFlags(editCmd.Flags())

	cli.rootCmd.AddCommand(editCmd)
}

// addRemoveCommand adds the rm command
func (cli *CLI) addRemoveCommand() {
	rmCmd := &cobra.Command{
		Use:     "rm <kind> <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a record",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeRemoveCommand(cmd, args)
		},
	}
	cli.rootCmd.AddCommand(rmCmd)
}

// addShowCommand adds the show command
func (cli *CLI) addShowCommand() {
	showCmd := &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show a single record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeShowCommand(cmd, args)
		},
	}
	cli.rootCmd.AddCommand(showCmd)
}

// addListCommand adds the list command
func (cli *CLI) addListCommand() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List records as a sorted, grouped view",
		Long: `Load every page of a view and print it, grouped when --group is set.

Examples:
  ledgerview list
  ledgerview list --sort total --desc --group month
  ledgerview list --kind invoice --counterparty acme --from 2024-01-01`,

		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeListCommand(cmd)
		},
	}
	addFilterFlags(listCmd.Flags())
	listCmd.Flags().String("sort", "", "Sort field (date|total|number|counterparty|id|created_at); default date descending")
	listCmd.Flags().Bool("desc", false, "Sort descending")
	listCmd.Flags().StringP("group", "g", "", "Grouping (none|month|counterparty|tag)")

	cli.rootCmd.AddCommand(listCmd)
}

// addTotalsCommand adds the totals command
func (cli *CLI) addTotalsCommand() {
	totalsCmd := &cobra.Command{
		Use:   "totals",
		Short: "Show count and total per group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.executeTotalsCommand(cmd)
		},
	}
	addFilterFlags(totalsCmd.Flags())
	totalsCmd.Flags().StringP("group", "g", "month", "Grouping (none|month|counterparty|tag)")

	cli.rootCmd.AddCommand(totalsCmd)
}

func (cli *CLI) formatter(cfg Config) *OutputFormatter {
	return NewOutputFormatter(cfg.Format, cli.out)
}

func (cli *CLI) executeShowConfig() error {
	cfg := cli.config()
	settings := map[string]interface{}{"settings": cfg}
	if file := cli.viperInst.ConfigFileUsed(); file != "" {
		settings["config_file"] = file
	}
	of := cli.formatter(cfg)
	return of.Structured(settings, func() {
		t := of.newTable()
		t.AppendRow(table.Row{"db", cfg.DB})
		t.AppendRow(table.Row{"backend", cfg.Backend})
		t.AppendRow(table.Row{"format", cfg.Format})
		t.AppendRow(table.Row{"log-level", cfg.LogLevel})
		t.AppendRow(table.Row{"verbose", cfg.Verbose})
		t.AppendRow(table.Row{"page-size", cfg.PageSize})
		t.AppendRow(table.Row{"filter-matching", cfg.FilterMatching})
		if file := cli.viperInst.ConfigFileUsed(); file != "" {
			t.AppendRow(table.Row{"config file", file})
		}
		t.Render()
	})
}

func (cli *CLI) executeAddCommand(cmd *cobra.Command) error {
	kindName, _ := cmd.Flags().GetString("kind")
	kind, err := parseKind("add record", kindName)
	if err != nil {
		return err
	}
	rec, err := recordFromFlags(kind, cmd.Flags())
	if err != nil {
		return err
	}

	return cli.withConsole(func(cfg Config, c *console.Console) error {
		created, err := c.Create(cmd.Context(), rec)
		if err != nil {
			return WrapError("add record", err, CommonSuggestions.CheckFlags)
		}
		return cli.formatter(cfg).Record(created)
	})
}

func (cli *CLI) executeEditCommand(cmd *cobra.Command, args []string) error {
	kind, id, err := parseRef("edit record", args)
	if err != nil {
		return err
	}
	patch, err := patchFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	return cli.withConsole(func(cfg Config, c *console.Console) error {
		updated, err := c.Edit(cmd.Context(), kind, id, patch)
		if err != nil {
			return notFoundOr("edit record", kind, id, err)
		}
		return cli.formatter(cfg).Record(updated)
	})
}

func (cli *CLI) executeRemoveCommand(cmd *cobra.Command, args []string) error {
	kind, id, err := parseRef("delete record", args)
	if err != nil {
		return err
	}
	return cli.withConsole(func(cfg Config, c *console.Console) error {
		if err := c.Delete(cmd.Context(), kind, id); err != nil {
			return notFoundOr("delete record", kind, id, err)
		}
		if cfg.Format == formatTable {
			_, err := cli.out.Write([]byte("deleted " + string(kind) + " " + strconv.FormatInt(id, 10) + "\n"))
			return err
		}
		return cli.formatter(cfg).Structured(map[string]interface{}{"deleted": types.RecordRef{Kind: kind, ID: id}}, func() {})
	})
}

func (cli *CLI) executeShowCommand(cmd *cobra.Command, args []string) error {
	kind, id, err := parseRef("show record", args)
	if err != nil {
		return err
	}
	return cli.withConsole(func(cfg Config, c *console.Console) error {
		rec, err := c.Detail(cmd.Context(), kind, id)
		if err != nil {
			return notFoundOr("show record", kind, id, err)
		}
		return cli.formatter(cfg).Record(rec)
	})
}

func (cli *CLI) executeListCommand(cmd *cobra.Command) error {
	key, err := viewKeyFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	return cli.withConsole(func(cfg Config, c *console.Console) error {
		view, err := loadView(cmd.Context(), c, "", key)
		if err != nil {
			return WrapError("list records", err, CommonSuggestions.CheckFlags)
		}
		return cli.formatter(cfg).Views([]viewOutput{view})
	})
}

func (cli *CLI) executeTotalsCommand(cmd *cobra.Command) error {
	const op = "compute totals"
	entity, filters, err := filtersFromFlags(op, cmd.Flags())
	if err != nil {
		return err
	}
	mode, err := groupFromFlags(op, cmd.Flags())
	if err != nil {
		return err
	}

	return cli.withConsole(func(cfg Config, c *console.Console) error {
		list, err := c.Totals(cmd.Context(), entity, filters, mode)
		if err != nil {
			return WrapError(op, err)
		}
		return cli.formatter(cfg).Totals(list)
	})
}

// loadView subscribes to key, loads every page and renders the groups with
// their totals
func loadView(ctx context.Context, c *console.Console, name string, key types.ViewKey) (viewOutput, error) {
	sub, err := c.Subscribe(key)
	if err != nil {
		return viewOutput{}, NewValidationError("open view", "view", key.String(), err.Error())
	}
	defer sub.Close()

	if err := sub.LoadAll(ctx); err != nil {
		return viewOutput{}, err
	}
	return renderView(ctx, c, name, sub)
}

func renderView(ctx context.Context, c *console.Console, name string, sub *console.Subscription) (viewOutput, error) {
	key := sub.Key()
	var totals []types.GroupTotals
	if key.Grouping != types.GroupNone {
		list, err := c.Totals(ctx, key.Entity, key.Filters, key.Grouping)
		if err != nil {
			return viewOutput{}, err
		}
		totals = list
	}
	return newViewOutput(name, key, sub.Groups(), totals), nil
}

func notFoundOr(operation string, kind types.Kind, id int64, err error) error {
	if errors.Is(err, remote.ErrNotFound) {
		return NewNotFoundError(operation, string(kind), strconv.FormatInt(id, 10), err, CommonSuggestions.CheckID)
	}
	return WrapError(operation, err)
}
