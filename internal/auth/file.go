package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/coveworks/bulk-restore/internal/config"
)

// fileProvider reads the bearer token from a mounted secret file. The file is
// re-read on every Acquire so a rotated secret is picked up without a restart.
type fileProvider struct {
	path string
}

// newFileProvider validates configuration and returns a provider.
func newFileProvider(cfg config.Config) (*fileProvider, error) {
	if strings.TrimSpace(cfg.Auth.TokenFile) == "" {
		return nil, errors.New("file auth requires a token file path")
	}
	return &fileProvider{path: cfg.Auth.TokenFile}, nil
}

// Acquire returns the trimmed content of the token file.
func (p *fileProvider) Acquire(ctx context.Context) (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		log.Debug().
			Str("action", "auth_acquire").
			Str("method", "file").
			Msg("token file is empty")
		return "", ErrNoToken
	}
	log.Debug().
		Str("action", "auth_acquire").
		Str("method", "file").
		Msg("token acquired")
	return token, nil
}
