package app

import (
	"context"
	"errors"
	"testing"

	"github.com/coach0/coach/internal/config"
	"github.com/coach0/coach/internal/log"
)

func TestSetupNilConfig(t *testing.T) {
	_, err := Setup(context.Background(), nil, log.NewNop())
	if !errors.Is(err, config.ErrConfigNil) {
		t.Errorf("Setup(nil config) error = %v, want %v", err, config.ErrConfigNil)
	}
}

func TestCloseEmptyApp(t *testing.T) {
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() on empty app = %v, want nil", err)
	}
}

func TestProvideOtelShutdownDisabled(t *testing.T) {
	cfg := &config.Config{}
	shutdown := provideOtelShutdown(context.Background(), cfg, log.NewNop())
	if shutdown == nil {
		t.Fatal("provideOtelShutdown() returned nil func")
	}
	shutdown()
}
