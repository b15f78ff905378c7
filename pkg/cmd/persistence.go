// Package cmd provides shared wiring helpers for the custodia binaries.
package cmd

import (
	"fmt"
	"strings"

	"github.com/custodia-hq/custodia/pkg/persistence"
	"github.com/custodia-hq/custodia/pkg/persistence/file"
	"github.com/custodia-hq/custodia/pkg/persistence/memory"
	"github.com/custodia-hq/custodia/pkg/persistence/redis"
)

// NewPersistence selects a storage backend from the database URL scheme:
// redis:// for the durable production backend, memory:// for throwaway
// in-process storage, anything else is treated as a file root.
func NewPersistence(databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "redis":
		return redis.NewPersistence(databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) != 2 {
		return "file"
	}

	switch parts[0] {
	case "redis", "rediss":
		return "redis"
	case "memory":
		return "memory"
	case "file":
		return "file"
	default:
		return "file"
	}
}

// MustPersistence panics on wiring failure. For binaries where a broken
// database URL should stop the process immediately.
func MustPersistence(databaseURL string) persistence.Persistence {
	p, err := NewPersistence(databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to create persistence: %w", err))
	}

	return p
}
