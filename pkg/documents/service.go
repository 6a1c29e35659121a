// Package documents stores uploaded deal documents and the redacted text
// extracted from them.
package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/redact"
	"github.com/ekaya-inc/deal-triage/pkg/repositories"
)

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain; charset=utf-8",
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Limits bounds what Store accepts.
type Limits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// Service is the document collaborator used by the deal orchestrator.
type Service interface {
	// Store validates, hashes and persists one upload for an existing deal.
	Store(ctx context.Context, dealID uuid.UUID, r io.Reader, filename string) (*models.Document, error)
	// List returns the deal's documents, newest first.
	List(ctx context.Context, dealID uuid.UUID) ([]models.Document, error)
}

type service struct {
	repo      repositories.DocumentRepository
	blobs     BlobStore
	extractor TextExtractor
	limits    Limits
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a document service.
func NewService(repo repositories.DocumentRepository, blobs BlobStore, extractor TextExtractor, limits Limits, logger *zap.Logger) Service {
	return &service{
		repo:      repo,
		blobs:     blobs,
		extractor: extractor,
		limits:    limits,
		logger:    logger.Named("documents"),
		now:       time.Now,
	}
}

var _ Service = (*service)(nil)

func (s *service) Store(ctx context.Context, dealID uuid.UUID, r io.Reader, filename string) (*models.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apperrors.NewValidationError("file", "missing filename")
	}

	ext := Extension(filename)
	if !slices.Contains(s.limits.AllowedExtensions, ext) {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", apperrors.ErrUnsupportedDocument, filename, strings.Join(s.limits.AllowedExtensions, ", "))
	}

	var buf bytes.Buffer
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(&buf, hasher), io.LimitReader(r, s.limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > s.limits.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", apperrors.ErrDocumentTooLarge, s.limits.MaxBytes)
	}
	data := buf.Bytes()

	text, err := s.extractor.ExtractText(ctx, filename, data)
	if err != nil {
		s.logger.Warn("Text extraction failed",
			zap.String("deal_id", dealID.String()),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s could not be read: %w", apperrors.ErrUnsupportedDocument, filename, err)
	}

	doc := &models.Document{
		ID:            uuid.New(),
		DealID:        dealID,
		Filename:      filename,
		ContentType:   contentTypes[ext],
		SizeBytes:     n,
		ContentHash:   hex.EncodeToString(hasher.Sum(nil)),
		ExtractedText: redact.PII(redact.Sanitize(text)),
		CreatedAt:     s.now().UTC(),
	}
	doc.StorageKey = StorageKey(dealID.String(), doc.ID.String(), filename)

	if err := s.blobs.Put(ctx, doc.StorageKey, bytes.NewReader(data), n, doc.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store document bytes: %w", err)
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		// The blob is left for the orphan sweeper.
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	s.logger.Info("Document stored",
		zap.String("deal_id", dealID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.String("sha256", doc.ContentHash),
		zap.Int64("size_bytes", n))

	return doc, nil
}

func (s *service) List(ctx context.Context, dealID uuid.UUID) ([]models.Document, error) {
	docs, err := s.repo.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}
