package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"ppn-portal/src/birthdate"
	"ppn-portal/src/config"
	"ppn-portal/src/domain"
	"ppn-portal/src/i18n"
	"ppn-portal/src/infrastructure/repository"
	"ppn-portal/src/logger"
	"ppn-portal/src/service"
	"ppn-portal/src/table"
	"ppn-portal/src/usecase"

	"github.com/spf13/cobra"
)

func newBirthDateCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "birthdate <dd-mm-yyyy>",
		Short: "Evaluate a birth date the way the registration form does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := i18n.NewCatalog()
			if err != nil {
				return err
			}
			minDate, err := domain.ParseISODate(config.LoadConfig().Locale.BirthDateMinimum)
			if err != nil {
				return fmt.Errorf("invalid BIRTH_DATE_MINIMUM: %w", err)
			}

			loc := catalog.Localizer(lang)
			e := loc.Evaluator()
			e.MinDate = minDate
			result := e.Evaluate(args[0])

			var text string
			switch result.Kind {
			case birthdate.Valid:
				text = fmt.Sprintf("%s (%s)", result.Display, result.Date)
			case birthdate.Invalid:
				text = loc.Lookup(birthdate.KeyInvalid)
			case birthdate.TooEarly:
				text = loc.Lookup(birthdate.KeyTooEarly)
			case birthdate.Empty:
				text = loc.Lookup("birthdate:error:required")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", result.Kind, text)
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", i18n.DefaultLanguage, "language of the month names and messages")

	return cmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", db.Driver())
			return nil
		},
	}
}

func newLeaderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leader",
		Short: "Manage experiment leaders",
	}

	var name, email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a leader account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			leader, err := repository.NewLeaderRepository(db, logger.Log).Create(cmd.Context(), &domain.Leader{
				Name:         name,
				Email:        strings.ToLower(strings.TrimSpace(email)),
				PasswordHash: hash,
				IsActive:     true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "leader %d created\n", leader.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&email, "email", "", "login e-mail address")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")

	cmd.AddCommand(add)
	return cmd
}

func newExperimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Manage experiments",
	}

	var (
		name     string
		leaderID int
		closed   bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := repository.NewLeaderRepository(db, logger.Log).GetByID(cmd.Context(), leaderID); err != nil {
				return err
			}
			exp, err := repository.NewParticipantRepository(db, logger.Log).CreateExperiment(cmd.Context(), &domain.Experiment{
				Name:     name,
				LeaderID: leaderID,
				Open:     !closed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "experiment %d created\n", exp.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "experiment name")
	add.Flags().IntVar(&leaderID, "leader", 0, "id of the leading experimenter")
	add.Flags().BoolVar(&closed, "closed", false, "create the experiment closed for registration")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("leader")

	cmd.AddCommand(add)
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		experimentID int
		out          string
		lang         string
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the participants of an experiment as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := i18n.NewCatalog()
			if err != nil {
				return err
			}
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			uc := usecase.NewParticipantUsecase(repository.NewParticipantRepository(db, logger.Log), catalog, usecase.Options{Logger: logger.Log})

			var confirmer table.Confirmer = table.Always(true)
			if !yes {
				confirmer = promptConfirmer(cmd)
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if err := uc.ExportCSV(cmd.Context(), experimentID, w, confirmer, lang); err != nil {
				if out != "" {
					os.Remove(out)
				}
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&experimentID, "experiment", 0, "experiment id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&lang, "lang", i18n.DefaultLanguage, "language of the column headers")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the personal data confirmation")
	_ = cmd.MarkFlagRequired("experiment")

	return cmd
}

// promptConfirmer は確認メッセージを表示して y/ja の入力で同意とみなす
func promptConfirmer(cmd *cobra.Command) table.Confirmer {
	return table.ConfirmFunc(func(message string) bool {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", message)
		answer, err := readLine(cmd.InOrStdin())
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes", "j", "ja":
			return true
		default:
			return false
		}
	})
}
