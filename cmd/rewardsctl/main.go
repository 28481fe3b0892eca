package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/peraclub/rewards/internal/store/gormstore"
	"github.com/peraclub/rewards/internal/store/pgstore"
	"github.com/peraclub/rewards/pkg/rewards"
)

const (
	flagDatabaseURL      = "database-url"
	configKeyDatabaseURL = "database_url"
	defaultDatabaseURL   = "sqlite:///tmp/rewards.db"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rewardsctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rewardsctl",
		Short:         "Operator tooling for the rewards ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")

	cmd.AddCommand(newGrantCommand())
	cmd.AddCommand(newSyncTierCommand())
	cmd.AddCommand(newRedemptionsCommand())
	return cmd
}

func newGrantCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "grant <user-id> <points>",
		Short: "Credit points to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			userID, err := rewards.NewUserID(args[0])
			if err != nil {
				return err
			}
			raw, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parse points: %w", err)
			}
			amount, err := rewards.NewPoints(raw)
			if err != nil {
				return err
			}
			if description == "" {
				description = "Manual points grant"
			}
			if err := service.GrantPoints(cmd.Context(), userID, amount, description); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s points to %s\n", rewards.FormatPoints(amount), userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "ledger entry description")
	return cmd
}

func newSyncTierCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-tier <user-id>",
		Short: "Recompute and persist an account's tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			userID, err := rewards.NewUserID(args[0])
			if err != nil {
				return err
			}
			tier, err := service.SyncTier(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", userID, tier)
			return nil
		},
	}
}

func newRedemptionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redemptions",
		Short: "Inspect and process redemption requests",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <user-id>",
		Short: "List redemption requests for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			userID, err := rewards.NewUserID(args[0])
			if err != nil {
				return err
			}
			requests, err := service.RedemptionHistory(cmd.Context(), userID)
			if err != nil {
				return err
			}
			for _, request := range requests {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s pts\t₱%s\t%s\n",
					request.RequestID,
					request.CreatedAt.UTC().Format(time.RFC3339),
					rewards.FormatPoints(request.PointsRedeemed),
					request.CashAmount.StringFixed(2),
					request.Status,
				)
			}
			return nil
		},
	})
	cmd.AddCommand(newProcessCommand("approve", "approved", "Approve a pending redemption and deduct points", true))
	cmd.AddCommand(newProcessCommand("reject", "rejected", "Reject a pending redemption and fail its ledger entry", false))
	return cmd
}

func newProcessCommand(verb string, done string, short string, approve bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := openService(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := service.ProcessRedemption(cmd.Context(), args[0], approve); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", done, args[0])
			return nil
		},
	}
}

func openService(cmd *cobra.Command) (*rewards.Service, func(), error) {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv(configKeyDatabaseURL, "DATABASE_URL"); err != nil {
		return nil, nil, err
	}
	if err := viper.BindPFlag(configKeyDatabaseURL, cmd.Flags().Lookup(flagDatabaseURL)); err != nil {
		return nil, nil, err
	}
	dsn := viper.GetString(configKeyDatabaseURL)
	if dsn == "" {
		dsn = defaultDatabaseURL
	}

	store, cleanup, err := openStore(cmd.Context(), dsn)
	if err != nil {
		return nil, nil, err
	}
	service, err := rewards.NewService(store, func() time.Time { return time.Now().UTC() })
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return service, cleanup, nil
}

// openStore talks to postgres directly through pgx; anything else is treated
// as a sqlite path behind gorm.
func openStore(ctx context.Context, dsn string) (rewards.Store, func(), error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool), pool.Close, nil
	}
	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		path = "rewards.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return gormstore.New(db.WithContext(ctx)), func() { _ = sqlDB.Close() }, nil
}
