// novelsync 小说写作应用的本地同步服务
// 界面层通过HTTP接口编辑作品，作品在本地保存后同步到云端存储
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/novelsync/internal/app"
	"github.com/weiwangfds/novelsync/internal/logger"
	"golang.org/x/net/http2"
)

const shutdownTimeout = 30 * time.Second

var configPath string

var rootCmd = &cobra.Command{
	Use:           "novelsync",
	Short:         "Local-first sync service for novel manuscripts",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, autosave and periodic sync",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, configPath)
	if err != nil {
		return err
	}
	a.Start(ctx)

	cfg := a.Config.Server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.Router().GetEngine(),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
	if cfg.EnableHTTPS {
		srv.TLSConfig = &tls.Config{NextProtos: []string{"h2", "http/1.1"}}
		// 如果启用HTTP/2，配置HTTP/2支持
		if cfg.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				a.Close(shutdownTimeout)
				return fmt.Errorf("failed to configure http2: %w", err)
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[服务] 监听 %s (HTTPS: %v, HTTP/2: %v)", srv.Addr, cfg.EnableHTTPS, cfg.EnableHTTPS && cfg.EnableHTTP2)
		var err error
		if cfg.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 等待中断信号或服务异常退出
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	logger.Infof("[服务] 正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("[服务] 服务器强制关闭: %v", err)
	}
	a.Close(shutdownTimeout)
	logger.Infof("[服务] 服务器已退出")
	return err
}
