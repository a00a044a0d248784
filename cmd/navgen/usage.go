package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/navgen/compiler"
	"github.com/syssam/navgen/compiler/diag"
	"github.com/syssam/navgen/compiler/usage"
)

// usageReport is the output of the usage command.
type usageReport struct {
	Entities    []usage.Summary `json:"entities" yaml:"entities"`
	Restored    []string        `json:"restored,omitempty" yaml:"restored,omitempty"`
	Diagnostics diag.List       `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func newUsageCmd(a *app) *cobra.Command {
	var (
		format string
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "usage [packages]",
		Short: "Report the relationship paths each entity is navigated through",
		Long: `Discover navigation chains and print, for every entity, whether usage was
observed and the paths of its usage tree.

With --save (the default) the discovered usage is stored so that a later
"navgen generate" over the entity packages alone can reuse it.

Examples:
  navgen usage
  navgen usage ./... --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q: want text, json or yaml", format)
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			snap, err := a.snapshot(cmd.Context(), args)
			if err != nil {
				return err
			}
			an, _, err := p.Analyze(cmd.Context(), snap)
			if err != nil {
				return err
			}
			if save {
				if err := p.SaveUsage(an); err != nil {
					return err
				}
			}
			return writeReport(a.out, format, newUsageReport(an))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&save, "save", true, "store the discovered usage for later generate runs")
	return cmd
}

func newUsageReport(an *compiler.Analysis) usageReport {
	return usageReport{
		Entities:    an.Usage.Summaries(),
		Restored:    an.Restored,
		Diagnostics: an.Diagnostics,
	}
}

func writeReport(w io.Writer, format string, r usageReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tSTATE\tPATHS")
	for _, e := range r.Entities {
		paths := strings.Join(e.Paths, ", ")
		if paths == "" {
			paths = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Entity, e.State, paths)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(r.Restored) > 0 {
		fmt.Fprintf(w, "\nrestored from store: %s\n", strings.Join(r.Restored, ", "))
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w)
		if err := diag.Fprint(w, r.Diagnostics); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, diag.Summary(r.Diagnostics))
	return nil
}
