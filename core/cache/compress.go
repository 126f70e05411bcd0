package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// Function variables for testing.
var (
	xzNewWriter = xz.NewWriter
	xzNewReader = xz.NewReader
)

type compressedStore struct {
	Store
}

// Compressed wraps store so values are xz-compressed at rest. Exercise
// payloads are verbose JSON and shrink by an order of magnitude.
func Compressed(store Store) Store {
	return &compressedStore{Store: store}
}

func (s *compressedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.Store.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	r, err := xzNewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", key, err)
	}
	value, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("decompress %s: %w", key, err)
	}
	return value, true, nil
}

func (s *compressedStore) Set(ctx context.Context, key string, value []byte) error {
	var buf bytes.Buffer
	w, err := xzNewWriter(&buf)
	if err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	if _, err := w.Write(value); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	return s.Store.Set(ctx, key, buf.Bytes())
}
