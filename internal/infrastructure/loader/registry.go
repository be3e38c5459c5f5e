// Package loader dispatches document loading by file extension.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/docpipe/internal/core/domain"
	"github.com/kirillkom/docpipe/internal/core/ports"
)

type Registry struct {
	byExt    map[string]ports.DocumentLoader
	fallback ports.DocumentLoader
}

func NewRegistry(fallback ports.DocumentLoader) *Registry {
	return &Registry{
		byExt:    make(map[string]ports.DocumentLoader),
		fallback: fallback,
	}
}

// Register binds a loader to an extension such as ".pdf".
func (r *Registry) Register(ext string, l ports.DocumentLoader) *Registry {
	r.byExt[strings.ToLower(ext)] = l
	return r
}

func (r *Registry) Load(ctx context.Context, path string) (*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := r.byExt[ext]; ok {
		return l.Load(ctx, path)
	}
	if r.fallback != nil {
		return r.fallback.Load(ctx, path)
	}
	return nil, fmt.Errorf("no loader registered for %q", ext)
}
