package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/medvault-api/internal/config"
	"github.com/jwalitptl/medvault-api/internal/repository/sqlstore"
	"github.com/jwalitptl/medvault-api/internal/service/appointment"
	"github.com/jwalitptl/medvault-api/internal/service/event"
	"github.com/jwalitptl/medvault-api/internal/service/roster"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg *config.Config
	db  *sqlx.DB
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "medvaultctl",
		Short:         "Operate the MedVault appointments store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("MEDVAULT_CONFIG"), "Path to config.yml")

	open := func(ctx context.Context, migrate bool) (*env, error) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		dbCfg := cfg.Database
		dbCfg.AutoMigrate = migrate
		db, err := sqlstore.Open(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return &env{cfg: cfg, db: db, log: logger.Setup(cfg.Log.Level, cfg.Log.Format)}, nil
	}

	rootCmd.AddCommand(migrateCmd(open))
	rootCmd.AddCommand(rosterCmd(open))
	rootCmd.AddCommand(slotsCmd(open))
	return rootCmd
}

type opener func(ctx context.Context, migrate bool) (*env, error)

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", e.cfg.Database.Driver)
			return nil
		},
	}
}

func rosterCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Show or replace a doctor's slot roster",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the slots a doctor offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := doctorFlag(cmd)
			if err != nil {
				return err
			}
			e, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.db.Close()

			provider, err := newRoster(e)
			if err != nil {
				return err
			}
			slots, err := provider.Slots(cmd.Context(), doctorID, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(slots, " "))
			return nil
		},
	}
	showCmd.Flags().String("doctor", "", "Doctor id")
	cmd.AddCommand(showCmd)

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Replace a doctor's roster; an empty --slots falls back to the clinic default",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := doctorFlag(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetStringSlice("slots")
			e, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.db.Close()

			provider, err := newRoster(e)
			if err != nil {
				return err
			}
			slots, err := provider.Set(cmd.Context(), doctorID, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "roster for %s: %s\n", doctorID, strings.Join(slots, " "))
			return nil
		},
	}
	setCmd.Flags().String("doctor", "", "Doctor id")
	setCmd.Flags().StringSlice("slots", nil, "Comma separated HH:MM slots")
	cmd.AddCommand(setCmd)

	return cmd
}

func slotsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List a doctor's free slots on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := doctorFlag(cmd)
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			e, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.db.Close()

			provider, err := newRoster(e)
			if err != nil {
				return err
			}
			loc, err := e.cfg.Appointments.Location()
			if err != nil {
				return err
			}
			svc := appointment.NewService(
				sqlstore.NewAppointmentRepository(e.db),
				provider,
				event.NewEventService(sqlstore.NewOutboxRepository(e.db), e.log),
				metrics.New(e.cfg.Metrics.Namespace, prometheus.NewRegistry()),
				e.log,
				appointment.WithLocation(loc),
			)

			slots, err := svc.ListAvailableSlots(cmd.Context(), doctorID, date)
			if err != nil {
				return err
			}
			if len(slots) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no free slots")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(slots, " "))
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date in YYYY-MM-DD form")
	return cmd
}

func newRoster(e *env) (*roster.Cached, error) {
	defaults, err := roster.NewStatic(e.cfg.Appointments.DefaultSlots, e.cfg.Appointments.DoctorSlots)
	if err != nil {
		return nil, err
	}
	return roster.NewCached(sqlstore.NewRosterRepository(e.db), defaults, e.cfg.Appointments.RosterCacheTTL, e.log), nil
}

func doctorFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("doctor")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--doctor is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --doctor %q: %w", raw, err)
	}
	return id, nil
}
