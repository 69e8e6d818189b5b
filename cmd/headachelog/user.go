package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/headachelog/internal/config"
	"github.com/headachelog/internal/db"
)

func addInitUser(topLevel *cobra.Command, cfg *config.AppConfig) {
	var email, password string

	cmd := &cobra.Command{
		Use:   "init-user",
		Short: "Create an account if it does not exist yet",
		Example: `
headachelog init-user --email me@example.com --password secret1
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required (or set INIT_USER_EMAIL / INIT_USER_PASSWORD)")
			}
			gdb, err := db.Init(db.Options{DatabasePath: cfg.DatabasePath, DatabaseURL: cfg.DatabaseURL, Silent: true})
			if err != nil {
				return fmt.Errorf("数据库初始化失败: %w", err)
			}
			created, err := db.EnsureUser(gdb, email, password)
			if err != nil {
				return fmt.Errorf("创建用户失败: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "account %s created\n", db.NormalizeEmail(email))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "account %s already exists\n", db.NormalizeEmail(email))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", cfg.InitUserEmail, "account email")
	cmd.Flags().StringVar(&password, "password", cfg.InitUserPassword, "account password")
	topLevel.AddCommand(cmd)
}
