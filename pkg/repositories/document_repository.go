package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/deal-triage/pkg/database"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// DocumentRepository defines the interface for document record access.
// Records are immutable once created.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	// ListByDeal returns a deal's documents, newest first, including extracted text.
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Document, error)
	// ListStorageKeys returns the blob key of every document record.
	ListStorageKeys(ctx context.Context) ([]string, error)
}

type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new Postgres-backed document repository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

var _ DocumentRepository = (*documentRepository)(nil)

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (id, deal_id, filename, content_type, size_bytes, sha256, storage_key, extracted_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		doc.ID,
		doc.DealID,
		doc.Filename,
		doc.ContentType,
		doc.SizeBytes,
		doc.ContentHash,
		doc.StorageKey,
		doc.ExtractedText,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Document, error) {
	return listDocuments(ctx, r.db.Conn(ctx), dealID)
}

func listDocuments(ctx context.Context, q database.Querier, dealID uuid.UUID) ([]models.Document, error) {
	query := `
		SELECT id, deal_id, filename, content_type, size_bytes, sha256, storage_key, extracted_text, created_at
		FROM documents
		WHERE deal_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := q.Query(ctx, query, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID,
			&d.DealID,
			&d.Filename,
			&d.ContentType,
			&d.SizeBytes,
			&d.ContentHash,
			&d.StorageKey,
			&d.ExtractedText,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepository) ListStorageKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, `SELECT storage_key FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate storage keys: %w", err)
	}
	return keys, nil
}
