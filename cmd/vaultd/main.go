package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certenIO/certen-key-vault/internal/app"
	"github.com/certenIO/certen-key-vault/internal/config"
	"github.com/certenIO/certen-key-vault/internal/platform/privacylog"
	"github.com/certenIO/certen-key-vault/internal/rpc"
	"github.com/certenIO/certen-key-vault/internal/signqueue"
	"github.com/certenIO/certen-key-vault/internal/vault"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (default 127.0.0.1:8555)")
	configPath := flag.String("config", "", "Path to vaultd.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for the encrypted vault file (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Certen-RPC-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("vaultd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	cfg := config.LoadFromPath(*configPath)
	if *rpcAddr != "" {
		cfg.ListenAddr = *rpcAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *rpcToken != "" {
		cfg.RPCToken = *rpcToken
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := vault.NewFileStore(cfg.DataDir)
	v := vault.New(store, vault.Options{
		AutoLockTimeout: cfg.AutoLockTimeout,
		Iterations:      cfg.KDFIterations,
		Logger:          logger,
	})
	queue := signqueue.New(signqueue.Options{Logger: logger})
	svc := app.NewService(v, queue, app.Options{Logger: logger})

	go runSweeper(ctx, logger, v, queue, cfg.SweepInterval, cfg.RequestTimeout)

	srv := rpc.NewServer(svc, rpc.Options{
		Addr:           cfg.ListenAddr,
		Token:          cfg.RPCToken,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		SubmitWait:     cfg.RequestTimeout,
		Logger:         logger,
	})

	logger.Info("vaultd starting", "listen_addr", cfg.ListenAddr)
	if err := srv.Run(ctx); err != nil {
		logger.Error("vaultd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("vaultd stopped")
}

// runSweeper drives the time-based transitions: expiring queued sign
// requests and making the vault's lazy auto-lock responsive while idle.
func runSweeper(ctx context.Context, logger *slog.Logger, v *vault.Vault, queue *signqueue.Queue, interval, requestTimeout time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept := queue.Cleanup(requestTimeout); swept > 0 {
				logger.Info("sign request sweep", "swept", swept)
			}
			// IsUnlocked applies the auto-lock check as a side effect.
			v.IsUnlocked()
		}
	}
}
