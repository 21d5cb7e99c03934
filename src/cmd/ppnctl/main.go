// Command ppnctl administers the participant portal: leaders, experiments,
// schema migrations and participant exports.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"ppn-portal/src/config"
	"ppn-portal/src/database"
	"ppn-portal/src/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "ppnctl",
		Short:        "Administer the participant portal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logrus.WarnLevel
			if verbose {
				level = logrus.InfoLevel
			}
			logger.UseOutput(cmd.ErrOrStderr(), level)
			return config.LoadDotEnv()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress to stderr")

	cmd.AddCommand(newBirthDateCmd())
	cmd.AddCommand(newHashPasswordCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newLeaderCmd())
	cmd.AddCommand(newExperimentCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// openDB は環境変数の設定でデータベースに接続する
func openDB(cmd *cobra.Command) (*database.DB, error) {
	cfg := config.LoadConfig()
	db, err := database.NewDB(database.ConfigFrom(cfg.Database), logger.Log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cmd.Context()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// readSecret reads a password without echo from a terminal, or one line
// from the command input otherwise.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return readLine(cmd.InOrStdin())
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
