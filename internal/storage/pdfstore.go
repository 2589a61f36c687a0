// Package storage keeps generated documents in Redis and records every
// generation in Postgres.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound      = errors.New("DOCUMENT_NOT_FOUND")
	ErrStorageFailed = errors.New("STORAGE_FAILED")
)

const keyPrefix = "dossier:pdf:"

// Document is a stored PDF with its download name.
type Document struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"createdAt"`
}

type PDFStore struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	newID func() string
	now   func() time.Time
}

func NewPDFStore(rdb redis.Cmdable, ttl time.Duration) *PDFStore {
	return &PDFStore{
		rdb:   rdb,
		ttl:   ttl,
		newID: func() string { return uuid.NewString() },
		now:   time.Now,
	}
}

// Put stores the document and returns its key.
func (s *PDFStore) Put(ctx context.Context, doc Document) (string, error) {
	if doc.ContentType == "" {
		doc.ContentType = "application/pdf"
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now().UTC()
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	key := keyPrefix + s.newID()
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrStorageFailed, key, err)
	}
	return key, nil
}

// Get loads a document by the key Put returned. Bare IDs are accepted too.
func (s *PDFStore) Get(ctx context.Context, key string) (*Document, error) {
	key = normalizeKey(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNotFound)
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStorageFailed, key, err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorageFailed, key, err)
	}
	return &doc, nil
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, keyPrefix) {
		return key
	}
	return keyPrefix + key
}
