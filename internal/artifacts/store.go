// Package artifacts stores uploaded source documents by opaque key.
package artifacts

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/pkg/config"
	"github.com/hugh/go-assess/pkg/crypto"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound matches fs.ErrNotExist so callers can test either.
var ErrNotFound = fmt.Errorf("artifact not found: %w", fs.ErrNotExist)

// Store is a flat key/value blob store.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewKey returns a unique, time-ordered key for a document belonging to
// orgID. The original file name is kept as a readable suffix.
func NewKey(orgID uuid.UUID, name string) string {
	base := unsafeChars.ReplaceAllString(path.Base(name), "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "document"
	}
	return orgID.String() + "/" + ulid.Make().String() + "-" + base
}

// New builds the store selected by configuration. When sealing is enabled
// documents are encrypted at rest with enc.
func New(ctx context.Context, cfg config.StorageConfig, enc *crypto.Encryptor) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store Store
	switch cfg.Backend {
	case "s3":
		s3Store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = s3Store
	default:
		store = NewOSStore(cfg.Dir)
	}

	if cfg.Seal {
		if enc == nil {
			return nil, fmt.Errorf("storage sealing requires an encryption key")
		}
		store = NewSealedStore(store, enc)
	}
	return store, nil
}
