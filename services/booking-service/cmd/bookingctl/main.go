// Command bookingctl runs maintenance tasks against the booking store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/clock"
	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/app"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/reconcile"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/schedule"
	"github.com/spf13/cobra"
)

func main() {
	logger := runtime.NewLogger("bookingctl")
	if err := runtime.LoadDotEnv(); err != nil {
		logger.Warn("dotenv load failed", "err", err)
	}
	ctx, stop := runtime.SignalContext()
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "bookingctl",
		Short:        "Maintenance commands for the booking store",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(logger))
	root.AddCommand(sweepCmd(logger))
	root.AddCommand(seedScheduleCmd(logger))
	root.AddCommand(tokenCmd())
	return root
}

// openStore loads configuration with migrations left to the caller.
func openStore(ctx context.Context, logger *slog.Logger, autoMigrate bool) (app.Config, *app.Store, error) {
	cfg, err := app.LoadConfig("bookingctl")
	if err != nil {
		return cfg, nil, err
	}
	cfg.AutoMigrate = autoMigrate
	store, err := app.OpenStore(ctx, cfg, logger)
	return cfg, store, err
}

func migrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := openStore(cmd.Context(), logger, false)
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

func sweepCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:       "sweep finish|expire|remind|all",
		Short:     "Run one reconciliation sweep now",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{reconcile.SweepFinish, reconcile.SweepExpire, reconcile.SweepRemind, reconcile.SweepAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore(cmd.Context(), logger, true)
			if err != nil {
				return err
			}
			defer store.Close()

			notifier, err := notify.FromConfig(cfg.Notify, logger)
			if err != nil {
				return err
			}
			runner := app.NewReconciler(cfg, store, clock.NewSystem(cfg.Location), notifier, logger)
			counts, err := runner.RunOnce(cmd.Context(), args[0])
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, counts[name])
			}
			return err
		},
	}
}

func seedScheduleCmd(logger *slog.Logger) *cobra.Command {
	var providerID int64
	cmd := &cobra.Command{
		Use:   "seed-schedule",
		Short: "Fill in the default weekly schedule for a provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if providerID <= 0 {
				return fmt.Errorf("--provider is required")
			}
			_, store, err := openStore(cmd.Context(), logger, true)
			if err != nil {
				return err
			}
			defer store.Close()

			admin := auth.Actor{Role: auth.RoleAdmin}
			created, err := schedule.NewService(store).SeedDefaults(cmd.Context(), admin, providerID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d entries for provider %d\n", created, providerID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&providerID, "provider", 0, "provider id")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		subject int64
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an HS256 token with JWT_SECRET for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := auth.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if subject <= 0 {
				return fmt.Errorf("--subject is required")
			}
			secret, err := config.RequiredString("JWT_SECRET")
			if err != nil {
				return err
			}
			token, err := auth.SignHS256(strconv.FormatInt(subject, 10), r, ttl, secret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&subject, "subject", 0, "party id the token acts as")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleClient), "client, provider or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
