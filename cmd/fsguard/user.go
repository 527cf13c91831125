package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ManouchehrRasoulli/fsguard/pkg/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var pwFile string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the stream password file",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user; the password is prompted for",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		password, err := readPassword(fmt.Sprintf("Password for %s: ", args[0]))
		if err != nil {
			return err
		}
		confirm, err := readPassword(fmt.Sprintf("Confirm password for %s: ", args[0]))
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("password does not match")
		}

		if err = store.Add(args[0], password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s added\n", args[0])
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"rm"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err = store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s deleted\n", args[0])
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		for _, name := range store.Users() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	userCmd.PersistentFlags().StringVarP(&pwFile, "pw-file", "f", "", "password file (defaults to server.pw_file of the configuration)")
	userCmd.AddCommand(userAddCmd, userDeleteCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}

func openStore() (*auth.Store, error) {
	file := pwFile
	if file == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		file = cfg.Server.PwFile
	}
	if file == "" {
		return nil, errors.New("no password file: pass --pw-file or set server.pw_file")
	}
	return auth.Open(file)
}

var stdin = bufio.NewReader(os.Stdin)

// readPassword reads a line from stdin, without echo when it is a terminal.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
