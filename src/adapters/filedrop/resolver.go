package filedrop

import (
	"context"
	"fmt"
)

// DirectoryResolver locates the per-installation root the terminal watches.
type DirectoryResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver returns a configured directory.
type StaticResolver string

func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	if r == "" {
		return "", fmt.Errorf("StaticResolver: root directory is not configured")
	}

	return string(r), nil
}
