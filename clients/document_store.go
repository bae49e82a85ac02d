package clients

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	xerrors "github.com/livepeer/audio-api/errors"
	"github.com/livepeer/audio-api/metrics"
)

// Document is a keyed JSON object. Exists is false when nothing is stored under the key.
type Document struct {
	ID     string
	Exists bool
	Fields map[string]interface{}
}

type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into an existing document. Updating a missing document is an error.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
}

const documentsTable = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// PostgresDocumentStore keeps every document as a jsonb row keyed by
// (collection, id). Nested collections are addressed by path, e.g.
// "videos/v1/audioTracks".
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist yet
func (p *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, documentsTable); err != nil {
		return fmt.Errorf("error creating documents table: %w", err)
	}
	return nil
}

func (p *PostgresDocumentStore) Get(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = $1 AND id = $2", collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		observeDocumentStore("get", start)
		return Document{ID: id}, nil
	}
	if err != nil {
		metrics.Metrics.DocumentStoreClient.FailureCount.WithLabelValues("get", "error").Inc()
		return Document{}, fmt.Errorf("error reading %s/%s: %w", collection, id, err)
	}

	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		metrics.Metrics.DocumentStoreClient.FailureCount.WithLabelValues("get", "decode").Inc()
		return Document{}, fmt.Errorf("error decoding %s/%s: %w", collection, id, err)
	}
	observeDocumentStore("get", start)
	return Document{ID: id, Exists: true, Fields: fields}, nil
}

func (p *PostgresDocumentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	start := time.Now()
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("error encoding update for %s/%s: %w", collection, id, err)
	}

	res, err := p.db.ExecContext(ctx,
		"UPDATE documents SET fields = fields || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2",
		collection, id, string(patch),
	)
	if err != nil {
		metrics.Metrics.DocumentStoreClient.FailureCount.WithLabelValues("update", "error").Inc()
		return fmt.Errorf("error updating %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		metrics.Metrics.DocumentStoreClient.FailureCount.WithLabelValues("update", "not_found").Inc()
		return xerrors.NewObjectNotFoundError(fmt.Sprintf("document %s/%s does not exist", collection, id), nil)
	}
	observeDocumentStore("update", start)
	return nil
}

func observeDocumentStore(operation string, start time.Time) {
	metrics.Metrics.DocumentStoreClient.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	metrics.Metrics.DocumentStoreClient.RequestCount.WithLabelValues(operation).Inc()
}
