package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"garc/pkg/auth"
	"garc/pkg/ui"
)

func newConfigureCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Store Gab credentials in a profile",
		Long: `Prompt for a Gab account and password and store them under a profile
in the credential file (default ~/.garc, profile "main").

With --keyring the password goes to the system keychain and the profile only
records the account name.`,
		Example: `  garc configure
  garc configure --profile research --keyring`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}
	cmd.Flags().BoolVar(&a.opts.keyring, "keyring", false, "store the password in the system keychain")
	return cmd
}

func (a *app) configure(cmd *cobra.Command) error {
	store, err := a.profileStore()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)
	out := cmd.ErrOrStderr()

	account := a.opts.account
	if account == "" {
		fmt.Fprint(out, "Gab account: ")
		if account, err = readLine(reader); err != nil {
			return fmt.Errorf("failed to read account: %w", err)
		}
	}
	if account == "" {
		return errors.New("account is required")
	}

	password := a.opts.password
	if password == "" {
		fmt.Fprint(out, "Password: ")
		if password, err = readPassword(in, reader); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(out)
	}
	if password == "" {
		return errors.New("password is required")
	}

	creds := auth.Credentials{Account: account, Password: password}
	if err := store.Save(a.opts.profile, creds, a.opts.keyring); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Profile %q saved to %s", a.opts.profile, store.Path))
	ui.PrintInfo("Account", account)
	ui.PrintInfo("Password", auth.Mask(password))
	if a.opts.keyring {
		ui.PrintDim("The password is kept in the system keychain.")
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when in is a terminal
func readPassword(in io.Reader, r *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(password)), nil
	}
	return readLine(r)
}
