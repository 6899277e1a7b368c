package commands

import (
	"github.com/spf13/cobra"

	"github.com/five82/xnatrack/internal/app"
)

func newUpdateCmd(global *globalOptions, version string) *cobra.Command {
	var opts app.UpdateOptions

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the files of tracked subjects",
		Long: `Build a URL table per subject under code/addurl_files and register
the listed files with the dataset. Pass --subject list to see the available
subjects, or --subject all to update every subject of the project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := global.setup(cmd, version)
			if err != nil {
				return err
			}
			return render(r, a.Update(cmd.Context(), opts))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Dataset, "dataset", "d", "", "dataset to update (default: working directory)")
	f.StringArrayVarP(&opts.Subjects, "subject", "s", nil, `subject ID to update, "list" or "all" (repeatable)`)
	f.StringVar(&opts.Credential, "credential", "", "credential name (default: the configured one)")
	f.StringVar(&opts.IfExists, "ifexists", "", "action for files that already exist (overwrite, skip)")
	f.StringVar(&opts.Reckless, "reckless", "", `"fast" registers URLs without downloading content`)
	f.BoolVarP(&opts.Force, "force", "f", false, "rebuild existing URL tables")
	f.BoolVar(&opts.ResourceColumn, "resource-column", false, "add the resource collection column to URL tables")
	f.IntVarP(&opts.Jobs, "jobs", "J", 0, "parallel registration jobs (0: registrar default)")
	return cmd
}
