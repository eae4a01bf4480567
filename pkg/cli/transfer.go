package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/ajanda/pkg/model"
	"github.com/harrisonrobin/ajanda/pkg/orgmode"
	"github.com/harrisonrobin/ajanda/pkg/taskwarrior"
	"github.com/harrisonrobin/ajanda/pkg/tasktree"
)

func newImportCmd(opts *options) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks from Taskwarrior or Org-mode",
	}
	cmd.PersistentFlags().StringVarP(&parent, "parent", "p", "", "put the imported tasks under this task")

	var filter []string
	tw := &cobra.Command{
		Use:   "taskwarrior [export.json|-]",
		Short: "Import a Taskwarrior export, or run `task export` when no file is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := taskwarrior.NewClient()
			var (
				tasks []taskwarrior.Task
				err   error
			)
			switch {
			case len(args) == 0:
				tasks, err = client.GetTasks(cmd.Context(), filter)
			case args[0] == "-":
				tasks, err = client.ParseTasks(cmd.InOrStdin())
			default:
				var f *os.File
				if f, err = os.Open(args[0]); err != nil {
					return err
				}
				defer f.Close()
				tasks, err = client.ParseTasks(f)
			}
			if err != nil {
				return err
			}
			items, err := taskwarrior.Drafts(tasks)
			if err != nil {
				return err
			}
			return runImport(cmd, opts, parent, items)
		},
	}
	tw.Flags().StringSliceVar(&filter, "filter", []string{"status:pending"}, "taskwarrior filter used with `task export`")

	org := &cobra.Command{
		Use:   "org <file.org>...",
		Short: "Import the TODO headings of Org-mode files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := orgmode.ParseFiles(args)
			if err != nil {
				return err
			}
			return runImport(cmd, opts, parent, items)
		},
	}

	cmd.AddCommand(tw, org)
	return cmd
}

func runImport(cmd *cobra.Command, opts *options, parent string, items []tasktree.Imported) error {
	if len(items) == 0 {
		fmt.Fprintln(out(cmd), "Nothing to import.")
		return nil
	}
	return withApp(cmd, opts, func(a *app) error {
		rootID := ""
		if parent != "" {
			p, err := resolve(a.engine.Snapshot(), parent)
			if err != nil {
				return err
			}
			rootID = p.ID
		}
		created, _, err := a.engine.Import(items, rootID)
		if len(created) > 0 {
			fmt.Fprintf(out(cmd), "Imported %d task(s)\n", len(created))
		}
		return err
	})
}

type exportDoc struct {
	Version int          `json:"version" yaml:"version"`
	Tasks   []model.Task `json:"tasks" yaml:"tasks"`
}

func newExportCmd(opts *options) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task, archived ones included, as YAML or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				doc := exportDoc{Version: 1, Tasks: a.engine.Snapshot().Tasks()}

				var w io.Writer = out(cmd)
				if output != "" && output != "-" {
					f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return encode(w, format, doc)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "yaml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write instead of stdout")
	return cmd
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown format %q: must be yaml or json", format)
}
