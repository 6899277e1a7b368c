package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/five82/xnatrack/cmd/xnatrack/internal/clierr"
	"github.com/five82/xnatrack/internal/app"
	"github.com/five82/xnatrack/internal/xnat"
)

func newCredentialCmd(global *globalOptions, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage stored XNAT credentials",
	}

	var user string
	set := &cobra.Command{
		Use:   "set NAME",
		Short: "Store a credential; the password is read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return clierr.New(clierr.ExitUsage, "--user is required")
			}
			password, err := readPassword(cmd)
			if err != nil {
				return clierr.Wrap(clierr.ExitUsage, "read password", err)
			}
			a, r, err := global.setup(cmd, version)
			if err != nil {
				return err
			}
			res := a.SetCredential(args[0], xnat.Credential{User: user, Password: password})
			return render(r, slices.Values([]app.Result{res}))
		},
	}
	set.Flags().StringVarP(&user, "user", "u", "", "XNAT user name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the names of stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := global.setup(cmd, version)
			if err != nil {
				return err
			}
			return render(r, slices.Values([]app.Result{a.ListCredentials()}))
		},
	}

	cmd.AddCommand(set, list)
	return cmd
}

// readPassword returns the first line of stdin. A terminal gets a prompt
// and no echo.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(f.Fd()) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		secret, err := term.ReadPassword(f.Fd())
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		if len(secret) == 0 {
			return "", errors.New("empty password")
		}
		return string(secret), nil
	}

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password on stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}
