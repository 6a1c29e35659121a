package repositories

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// MemoryStore keeps deals in process memory. Every value crossing its boundary
// is deep-copied, so callers never share state with the store. Reads take a
// read lock and therefore never observe a half-applied SaveState.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   int64
	deals map[uuid.UUID]*memoryDeal
}

type memoryDeal struct {
	seq   int64
	deal  models.Deal
	docs  []memoryDocument
	state models.DealState
	runs  []models.LLMRun
}

type memoryDocument struct {
	seq int64
	doc models.Document
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deals: make(map[uuid.UUID]*memoryDeal)}
}

// Deals returns the store's DealRepository view.
func (s *MemoryStore) Deals() DealRepository {
	return &memoryDealRepository{s: s}
}

// Documents returns the store's DocumentRepository view.
func (s *MemoryStore) Documents() DocumentRepository {
	return &memoryDocumentRepository{s: s}
}

// LLMRuns returns the store's LLMRunRepository view.
func (s *MemoryStore) LLMRuns() LLMRunRepository {
	return &memoryLLMRunRepository{s: s}
}

type memoryDealRepository struct {
	s *MemoryStore
}

var _ DealRepository = (*memoryDealRepository)(nil)

func (r *memoryDealRepository) Create(ctx context.Context, deal *models.Deal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = time.Now().UTC()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.deals[deal.ID]; exists {
		return apperrors.ErrConflict
	}
	r.s.seq++
	r.s.deals[deal.ID] = &memoryDeal{seq: r.s.seq, deal: *deal}
	return nil
}

func (r *memoryDealRepository) List(ctx context.Context) ([]models.Deal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := make([]*memoryDeal, 0, len(r.s.deals))
	for _, d := range r.s.deals {
		entries = append(entries, d)
	}
	slices.SortFunc(entries, func(a, b *memoryDeal) int {
		if c := b.deal.CreatedAt.Compare(a.deal.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})

	deals := make([]models.Deal, 0, len(entries))
	for _, e := range entries {
		deals = append(deals, e.deal)
	}
	return deals, nil
}

func (r *memoryDealRepository) Get(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.deals[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	deal := d.deal
	return &deal, nil
}

func (r *memoryDealRepository) GetState(ctx context.Context, id uuid.UUID) (*models.DealState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.deals[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	state := cloneState(d.state)
	return &state, nil
}

func (r *memoryDealRepository) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.DealSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.deals[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &models.DealSnapshot{
		Deal:      d.deal,
		Documents: d.sortedDocuments(),
		DealState: cloneState(d.state),
	}, nil
}

func (r *memoryDealRepository) SaveState(ctx context.Context, id uuid.UUID, update *models.StateUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.deals[id]
	if !ok {
		return apperrors.ErrNotFound
	}

	if update.Terms != nil {
		d.state.Terms = update.Terms.Clone()
		d.state.Confirmations = update.Confirmations.Clone()
		if d.state.Confirmations == nil {
			d.state.Confirmations = models.NewConfirmationLedger()
		}
	}
	if update.Analysis != nil {
		d.state.Analysis = update.Analysis.Clone()
	}
	if update.Draft != nil {
		d.state.Draft = update.Draft.Clone()
	}
	return nil
}

type memoryDocumentRepository struct {
	s *MemoryStore
}

var _ DocumentRepository = (*memoryDocumentRepository)(nil)

func (r *memoryDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.deals[doc.DealID]
	if !ok {
		return apperrors.ErrNotFound
	}
	r.s.seq++
	d.docs = append(d.docs, memoryDocument{seq: r.s.seq, doc: *doc})
	return nil
}

func (r *memoryDocumentRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.deals[dealID]
	if !ok {
		return make([]models.Document, 0), nil
	}
	return d.sortedDocuments(), nil
}

func (r *memoryDocumentRepository) ListStorageKeys(ctx context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	keys := make([]string, 0)
	for _, d := range r.s.deals {
		for _, doc := range d.docs {
			keys = append(keys, doc.doc.StorageKey)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

type memoryLLMRunRepository struct {
	s *MemoryStore
}

var _ LLMRunRepository = (*memoryLLMRunRepository)(nil)

func (r *memoryLLMRunRepository) Save(ctx context.Context, run *models.LLMRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.deals[run.DealID]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.runs = append(d.runs, *run)
	return nil
}

func (r *memoryLLMRunRepository) ListByDeal(ctx context.Context, dealID uuid.UUID, limit int) ([]models.LLMRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	runs := make([]models.LLMRun, 0)
	d, ok := r.s.deals[dealID]
	if !ok {
		return runs, nil
	}
	for i := len(d.runs) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) == limit {
			break
		}
		runs = append(runs, d.runs[i])
	}
	return runs, nil
}

// sortedDocuments returns copies newest first. Caller holds the lock.
func (d *memoryDeal) sortedDocuments() []models.Document {
	entries := slices.Clone(d.docs)
	slices.SortFunc(entries, func(a, b memoryDocument) int {
		if c := b.doc.CreatedAt.Compare(a.doc.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})

	docs := make([]models.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e.doc)
	}
	return docs
}

func cloneState(s models.DealState) models.DealState {
	return models.DealState{
		Terms:         s.Terms.Clone(),
		Confirmations: s.Confirmations.Clone(),
		Analysis:      s.Analysis.Clone(),
		Draft:         s.Draft.Clone(),
	}
}
