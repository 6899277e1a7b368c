package commands

import (
	"github.com/spf13/cobra"

	"github.com/five82/xnatrack/internal/app"
)

func newQueryCmd(global *globalOptions, version string) *cobra.Command {
	var opts app.QueryOptions

	cmd := &cobra.Command{
		Use:   "query URL",
		Short: "List the projects of a server or the subjects of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := global.setup(cmd, version)
			if err != nil {
				return err
			}
			opts.URL = args[0]
			return render(r, a.Query(cmd.Context(), opts))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Project, "project", "p", "", "list the subjects of this project")
	f.StringVar(&opts.Credential, "credential", "", `credential name, or "anonymous"`)
	return cmd
}

func newQueryFilesCmd(global *globalOptions, version string) *cobra.Command {
	var opts app.QueryFilesOptions

	cmd := &cobra.Command{
		Use:   "query-files URL",
		Short: "List the files of experiments with their download URLs",
		Long: `Resolve experiments by project and subject, or take them from --experiment,
and print one flattened record per file. With --table the records are also
written to a CSV URL table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := global.setup(cmd, version)
			if err != nil {
				return err
			}
			opts.URL = args[0]
			return render(r, a.QueryFiles(cmd.Context(), opts))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Project, "project", "p", "", "restrict to a project")
	f.StringVarP(&opts.Subject, "subject", "s", "", "restrict to a subject")
	f.StringArrayVarP(&opts.Experiments, "experiment", "e", nil, "experiment ID (repeatable, overrides project and subject)")
	f.StringVar(&opts.Credential, "credential", "", `credential name, or "anonymous"`)
	f.StringVar(&opts.Table, "table", "", "also write a URL table to this path")
	f.BoolVarP(&opts.Force, "force", "f", false, "overwrite an existing table")
	f.BoolVar(&opts.ResourceColumn, "resource-column", false, "add the resource collection column to the table")
	return cmd
}
