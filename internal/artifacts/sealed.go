package artifacts

import (
	"context"
	"fmt"

	"github.com/hugh/go-assess/pkg/crypto"
)

// SealedStore encrypts documents before handing them to the wrapped store.
// Documents written before sealing was enabled are returned as stored.
type SealedStore struct {
	inner Store
	enc   *crypto.Encryptor
}

func NewSealedStore(inner Store, enc *crypto.Encryptor) *SealedStore {
	return &SealedStore{inner: inner, enc: enc}
}

func (s *SealedStore) Save(ctx context.Context, key string, data []byte) error {
	sealed, err := s.enc.Encrypt(data)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}
	return s.inner.Save(ctx, key, sealed)
}

func (s *SealedStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !crypto.IsSealed(data) {
		return data, nil
	}
	plain, err := s.enc.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("unsealing %s: %w", key, err)
	}
	return plain, nil
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
