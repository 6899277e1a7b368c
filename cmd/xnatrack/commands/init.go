package commands

import (
	"github.com/spf13/cobra"

	"github.com/five82/xnatrack/internal/app"
	"github.com/five82/xnatrack/internal/config"
)

func newInitCmd(global *globalOptions, version string) *cobra.Command {
	var opts app.InitOptions

	cmd := &cobra.Command{
		Use:   "init URL",
		Short: "Configure a dataset to track an XNAT project",
		Long: `Connect to an XNAT server and record which project the dataset tracks.
Without --project, the projects available to the session are listed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := global.setup(cmd, version)
			if err != nil {
				return err
			}
			opts.URL = args[0]
			return render(r, a.Init(cmd.Context(), opts))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Dataset, "dataset", "d", "", "dataset to configure (default: working directory)")
	f.StringVarP(&opts.Project, "project", "p", "", "XNAT project ID to track")
	f.StringVarP(&opts.PathSpec, "pathspec", "O", config.DefaultPathSpec, "dataset path template for downloaded files")
	f.StringVar(&opts.Credential, "credential", "", `credential name, or "anonymous" (default: derived from the server host)`)
	f.BoolVarP(&opts.Force, "force", "f", false, "reinitialize an already configured dataset")
	return cmd
}
