package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/novelsync/internal/app"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push all local data to the remote bundle once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Orchestrator.ManualSync(ctx)
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the remote bundle and merge it into local data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Orchestrator.Pull(ctx)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print sign-in state, sync status and today's quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"status": a.Orchestrator.Status(),
				"quota":  a.Orchestrator.RateLimitInfo(),
			})
		})
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Revoke and delete the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Orchestrator.SignOut(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, pullCmd, statusCmd, signoutCmd)
}

// withApp 为一次性命令恢复登录状态，执行后关闭
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close(shutdownTimeout)
	a.Orchestrator.Start(ctx)
	return fn(ctx, a)
}
