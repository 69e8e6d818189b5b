package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/headachelog/internal/config"
	"github.com/headachelog/internal/db"
	"github.com/headachelog/internal/localstore"
	"github.com/headachelog/internal/logging"
	"github.com/headachelog/internal/service"
)

type targetOptions struct {
	Email  string
	Device string
}

func addTargetArgs(cmd *cobra.Command, to *targetOptions) {
	cmd.Flags().StringVar(&to.Email, "email", "", "account email (remote storage)")
	cmd.Flags().StringVar(&to.Device, "device", "", "device id (local storage)")
}

// openStore 按 --email 或 --device 选择后端并加载全部记录。
func openStore(ctx context.Context, cfg *config.AppConfig, to targetOptions) (*service.EntryStore, func(), error) {
	logger := logging.New(os.Stderr, cfg.LogLevel)
	factory := service.StoreBackendFactory{}
	cleanup := func() {}

	var id service.Identity
	switch {
	case to.Email != "" && to.Device != "":
		return nil, nil, errors.New("use either --email or --device, not both")
	case to.Email != "":
		gdb, err := db.Init(db.Options{DatabasePath: cfg.DatabasePath, DatabaseURL: cfg.DatabaseURL, Silent: true})
		if err != nil {
			return nil, nil, fmt.Errorf("数据库初始化失败: %w", err)
		}
		cleanup = func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		id, err = service.NewAuthService(gdb).Lookup(ctx, to.Email)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		factory.DB = gdb
	case to.Device != "":
		factory.Local = localstore.Open(cfg.LocalStorePath)
		id = service.Identity{DeviceID: to.Device}
	default:
		return nil, nil, errors.New("--email or --device is required")
	}

	backend, err := factory.ForIdentity(id)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	store := service.NewEntryStore(logger)
	if err := store.Swap(ctx, backend); err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

func addExport(topLevel *cobra.Command, cfg *config.AppConfig) {
	to := &targetOptions{}
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON backup of all entries",
		Example: `
headachelog export --email me@example.com --out backup.json
headachelog export --device 3f0c2a8e-5d1b-4c7e-9a51-2b6f8d4e7c10 > backup.json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, cleanup, err := openStore(ctx, cfg, *to)
			if err != nil {
				return err
			}
			defer cleanup()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(service.NewBackup(store.Snapshot(), time.Now()))
		},
	}
	addTargetArgs(cmd, to)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	topLevel.AddCommand(cmd)
}

func addImport(topLevel *cobra.Command, cfg *config.AppConfig) {
	to := &targetOptions{}
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge a JSON backup into storage, backup values win per date",
		Example: `
headachelog import --email me@example.com --file backup.json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			incoming, err := service.ParseBackup(f)
			if err != nil {
				return err
			}

			store, cleanup, err := openStore(ctx, cfg, *to)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := store.Import(ctx, incoming)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d/%d entries\n", n, len(incoming))
			return err
		},
	}
	addTargetArgs(cmd, to)
	cmd.Flags().StringVarP(&file, "file", "f", "", "backup file")
	topLevel.AddCommand(cmd)
}
