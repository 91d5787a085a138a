package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/auth"
	"github.com/Xanaaash/MiMind-sub000/internal/store"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Mint or revoke a service API key",
	Long: `keygen creates an msk_ service key. With postgres_dsn set the key hash is
stored in service_keys; otherwise the bcrypt hash is printed for use as
auth.api_key_hash. The key itself is shown once.

With --revoke <prefix> the key is marked revoked in service_keys instead.
Running servers drop it from their auth cache at the next re-verification.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		revoke, _ := cmd.Flags().GetString("revoke")
		out := cmd.OutOrStdout()

		if revoke != "" && cfg.PostgresDSN == "" {
			return fmt.Errorf("--revoke needs postgres_dsn")
		}

		if cfg.PostgresDSN == "" {
			key, hash, _, err := auth.GenerateServiceKey()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "key:  %s\nhash: %s\n", key, hash)
			return nil
		}

		db, err := openPostgres(cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.NewStore(db, cfg.RedHold).Migrate(ctx); err != nil {
			return err
		}
		keys := auth.NewSQLKeyStore(db)
		if revoke != "" {
			if err := keys.Revoke(ctx, revoke); err != nil {
				return err
			}
			fmt.Fprintf(out, "revoked: %s\n", revoke)
			return nil
		}
		key, rec, err := keys.Create(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "id:   %s\nname: %s\nkey:  %s\n", rec.ID, rec.Name, key)
		return nil
	},
}

func init() {
	keygenCmd.Flags().String("name", "coach-backend", "name of the calling service")
	keygenCmd.Flags().String("revoke", "", "key prefix (msk_xxxx) to revoke instead of minting")
}
