package config

import (
	"context"
	"fmt"
	"time"

	getter "github.com/hashicorp/go-getter"
)

// FetchRemote downloads a network/connector registry file from src (any
// go-getter source: https URL, git repo path, s3, ...) to dst, then loads and
// validates it like a local file. Deployments that track a shared registry
// use this instead of baking endpoint lists into every host.
func (l *Loader) FetchRemote(ctx context.Context, src, dst string) (*Config, error) {
	deadline := time.Now().Add(60 * time.Second)
	fetchCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	client := getter.Client{
		Ctx:  fetchCtx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return nil, fmt.Errorf("failed to fetch remote config: %w", err)
	}

	return l.LoadFromFile(dst)
}
