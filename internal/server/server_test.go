package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/idmint/idmint/internal/chain"
	"github.com/idmint/idmint/internal/config"
	"github.com/idmint/idmint/internal/logging"
	"github.com/idmint/idmint/internal/mint"
	"github.com/idmint/idmint/internal/notification"
	"github.com/idmint/idmint/internal/routes"
)

type nopMinter struct{}

func (nopMinter) Mint(context.Context, mint.Params) (mint.Result, error) { return mint.Result{}, nil }

type nopReader struct{}

func (nopReader) IdentityRecord(context.Context, string, string) (chain.Record, error) {
	return chain.Record{}, nil
}

func TestNewServesHealth(t *testing.T) {
	logger := logging.Discard()
	srv, err := New(routes.Deps{
		Cfg: config.Config{
			AppName: "IDMint",
			AppEnv:  "development",
			OTP:     config.OTPConfig{Store: "memory", TTL: time.Minute},
		},
		Logger:   logger,
		Notifier: notification.NewLoggerNotifier(logger),
		Minter:   nopMinter{},
		Chain:    nopReader{},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "Connection established successfully." {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, body)
	}
}

func TestUnknownRouteIsPlainText(t *testing.T) {
	logger := logging.Discard()
	srv, err := New(routes.Deps{
		Cfg:      config.Config{AppEnv: "development", OTP: config.OTPConfig{Store: "memory"}},
		Logger:   logger,
		Notifier: notification.NewLoggerNotifier(logger),
		Minter:   nopMinter{},
		Chain:    nopReader{},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.StatusCode)
	}
}

func TestWriteTimeoutCoversMint(t *testing.T) {
	cfg := config.Config{
		Mint:  config.MintConfig{Timeout: 5 * time.Minute},
		Chain: config.ChainConfig{CallTimeout: 15 * time.Second},
	}
	if got := writeTimeout(cfg); got <= cfg.Mint.Timeout {
		t.Fatalf("write timeout %s does not cover mint timeout", got)
	}
	if got := writeTimeout(config.Config{}); got != 30*time.Second {
		t.Fatalf("expected floor of 30s, got %s", got)
	}
}
