package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/evening-ritual/internal/store"
)

// reset clears the configured store and returns the backend name.
func (a *app) reset(ctx context.Context) (string, error) {
	repo, err := store.Open(a.cfg.StoreBackend, a.cfg.DBPath)
	if err != nil {
		return "", fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Clear(ctx); err != nil {
		return "", fmt.Errorf("clear store: %w", err)
	}
	slog.Info("Store cleared", "backend", a.cfg.StoreBackend)
	return a.cfg.StoreBackend, nil
}
