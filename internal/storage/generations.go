package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	KindDossier = "dossier"
	KindCerfa   = "cerfa"
)

// Generation is one audit row of dossier_generations.
type Generation struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Kind        string    `json:"kind"`
	Variant     string    `json:"variant,omitempty"`
	Theme       string    `json:"theme,omitempty"`
	PageCount   int       `json:"pageCount"`
	Bytes       int       `json:"bytes"`
	Degraded    []string  `json:"degraded"`
	DocumentKey string    `json:"documentKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type GenerationLog struct {
	db *sql.DB
}

func NewGenerationLog(db *sql.DB) *GenerationLog {
	return &GenerationLog{db: db}
}

// Record inserts the generation, filling ID and CreatedAt when unset.
func (l *GenerationLog) Record(ctx context.Context, g *Generation) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if g.Degraded == nil {
		g.Degraded = []string{}
	}
	degraded, err := json.Marshal(g.Degraded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO dossier_generations
			(id, reference, kind, variant, theme, page_count, size_bytes, degraded, document_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.Reference, g.Kind, g.Variant, g.Theme, g.PageCount, g.Bytes, string(degraded), g.DocumentKey, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: record generation: %v", ErrStorageFailed, err)
	}
	return nil
}

// ListByReference returns the latest generations of a dossier, newest first.
func (l *GenerationLog) ListByReference(ctx context.Context, reference string, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, reference, kind, variant, theme, page_count, size_bytes, degraded, document_key, created_at
		FROM dossier_generations
		WHERE reference = $1
		ORDER BY created_at DESC
		LIMIT $2`, reference, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list generations: %v", ErrStorageFailed, err)
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		var (
			g        Generation
			degraded []byte
		)
		if err := rows.Scan(&g.ID, &g.Reference, &g.Kind, &g.Variant, &g.Theme, &g.PageCount,
			&g.Bytes, &degraded, &g.DocumentKey, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan generation: %v", ErrStorageFailed, err)
		}
		if len(degraded) > 0 {
			_ = json.Unmarshal(degraded, &g.Degraded)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list generations: %v", ErrStorageFailed, err)
	}
	return out, nil
}
