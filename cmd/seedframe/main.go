package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/seedframe-io/seedframe/cmd/seedframe/config"
	"github.com/seedframe-io/seedframe/internal/ceremony"
	"github.com/seedframe-io/seedframe/internal/chain"
	"github.com/seedframe-io/seedframe/internal/credstore"
	"github.com/seedframe-io/seedframe/internal/frame"
	"github.com/seedframe-io/seedframe/internal/host"
	"github.com/seedframe-io/seedframe/internal/keyring"
	"github.com/seedframe-io/seedframe/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.Debug); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logging:", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Info("seedframe agent",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	if err := run(ctx, cfg); err != nil {
		logging.Fatal("agent failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	passphrase, err := readPassphrase()
	if err != nil {
		return fmt.Errorf("read passphrase: %w", err)
	}
	defer keyring.Zero(passphrase)

	auth, err := ceremony.NewRuntimeAuthenticator(ctx, cfg.AllowSoftwareAuthenticator, passphrase)
	if err != nil {
		return fmt.Errorf("authenticator init: %w", err)
	}

	client := chain.NewRPCClient(cfg.Chain.RPCURL, chain.Options{
		SubmitRetries:       cfg.Chain.SubmitRetries,
		ConfirmPollInterval: cfg.Chain.ConfirmPollInterval(),
		ConfirmWait:         cfg.Chain.ConfirmWait(),
	})

	endpoint, err := host.NewServer(host.Config{AllowedOrigins: cfg.TrustedOrigins})
	if err != nil {
		return fmt.Errorf("embedding endpoint init: %w", err)
	}

	f, err := frame.New(frame.Config{
		Medium:         endpoint,
		TrustedOrigins: cfg.TrustedOrigins,
		Capabilities:   cfg.Capabilities,
		Chain:          client,
		Assets:         chain.NewAssetService(client, cfg.DefaultAssets),
		Authenticator:  auth,
		Handles:        credstore.NewDefaultStore(),
		User:           cfg.User,
		OnAuthRequired: func(requestOrigin string) {
			logging.Info("authentication requested", "origin", requestOrigin)
		},
	})
	if err != nil {
		return fmt.Errorf("frame init: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Error("frame close failed", "error", cerr)
		}
	}()

	if err := f.Start(ctx); err != nil {
		return fmt.Errorf("frame start: %w", err)
	}

	err = endpoint.Serve(ctx, cfg.Host.Addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Info("agent stopped")
	return nil
}

// readPassphrase takes the software-authenticator passphrase from the
// environment when set, otherwise prompts without echo.
func readPassphrase() ([]byte, error) {
	if v := os.Getenv("SEEDFRAME_PASSPHRASE"); v != "" {
		return []byte(v), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("no passphrase: set SEEDFRAME_PASSPHRASE or run interactively")
	}

	fmt.Fprint(os.Stderr, "device passphrase: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, errors.New("empty passphrase")
	}
	return pw, nil
}
