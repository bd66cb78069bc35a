package vectorindex

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gateway"
	"github.com/dvloznov/finance-assistant/internal/userlock"
)

// Manager creates, appends to and reads per-user indexes. Writers for the
// same user are serialized by the Locker for the whole load-append-persist
// cycle.
type Manager struct {
	root     string
	model    string
	embedder gateway.Embedder
	locker   userlock.Locker
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithModel records the embedding model name in new indexes.
func WithModel(model string) Option {
	return func(m *Manager) { m.model = model }
}

// NewManager creates a Manager storing indexes under root/<user_id>/index.
func NewManager(root string, embedder gateway.Embedder, locker userlock.Locker, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		root:     root,
		embedder: embedder,
		locker:   locker,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the index file for userID.
func (m *Manager) Path(userID string) string {
	return filepath.Join(m.root, userID, DirName, FileName)
}

// Upsert embeds text and appends it to the user's index as document id,
// creating the index on the first call. An empty id gets a fresh one.
// Re-submitting an id already in the index is a no-op, so a retried
// write cannot duplicate a document.
func (m *Manager) Upsert(ctx context.Context, userID, id, text string) error {
	const op = "Manager.Upsert"
	if err := domain.CheckUserID(op, userID); err != nil {
		return err
	}
	if id == "" {
		id = uuid.New().String()
	}

	// Embedding happens outside the lock; it is the slow part.
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	if len(vec) == 0 {
		return apperr.E(apperr.KindGateway, op, "embedding service returned no vector", nil)
	}

	unlock, err := m.locker.Lock(ctx, userID)
	if err != nil {
		return apperr.E(apperr.KindIndexWrite, op, "acquire user lock", err)
	}
	defer unlock()

	path := m.Path(userID)
	ix, err := readIndex(path)
	created := false
	switch {
	case errors.Is(err, errNoIndex):
		ix = &Index{Version: formatVersion, Model: m.model, Dimension: len(vec)}
		created = true
	case err != nil:
		return apperr.E(apperr.KindIndexLoad, op, "index data is unreadable", err)
	}

	if ix.has(id) {
		m.log.Debug().Str("user_id", userID).Str("document_id", id).Msg("Document already indexed")
		return nil
	}
	if len(vec) != ix.Dimension {
		return apperr.E(apperr.KindIndexWrite, op, "embedding dimension does not match index", nil)
	}

	ix.Entries = append(ix.Entries, Entry{
		ID:        id,
		Text:      text,
		Embedding: vec,
		AddedAt:   m.now().UTC(),
	})

	if err := writeIndex(path, ix); err != nil {
		return apperr.E(apperr.KindIndexWrite, op, "persist index", err)
	}

	m.log.Info().
		Str("user_id", userID).
		Str("document_id", id).
		Int("documents", len(ix.Entries)).
		Bool("created", created).
		Msg("Indexed document")
	return nil
}

// RetrieveAll returns every document text for the user in insertion
// order. A user without an index has no documents.
func (m *Manager) RetrieveAll(ctx context.Context, userID string) ([]string, error) {
	const op = "Manager.RetrieveAll"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, err
	}

	ix, err := readIndex(m.Path(userID))
	if errors.Is(err, errNoIndex) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperr.E(apperr.KindIndexLoad, op, "index data is unreadable", err)
	}

	docs := make([]string, len(ix.Entries))
	for i, e := range ix.Entries {
		docs[i] = e.Text
	}
	return docs, nil
}

// IDs returns the IDs of the user's indexed documents in insertion order.
func (m *Manager) IDs(ctx context.Context, userID string) ([]string, error) {
	const op = "Manager.IDs"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, err
	}

	ix, err := readIndex(m.Path(userID))
	if errors.Is(err, errNoIndex) {
		return []string{}, nil
	}
	if err != nil {
		return nil, apperr.E(apperr.KindIndexLoad, op, "index data is unreadable", err)
	}

	ids := make([]string, len(ix.Entries))
	for i, e := range ix.Entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// Match is a search hit.
type Match struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Search ranks the user's documents by cosine similarity to query and
// returns the best k (all of them when k <= 0).
func (m *Manager) Search(ctx context.Context, userID, query string, k int) ([]Match, error) {
	const op = "Manager.Search"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, err
	}

	ix, err := readIndex(m.Path(userID))
	if errors.Is(err, errNoIndex) {
		return []Match{}, nil
	}
	if err != nil {
		return nil, apperr.E(apperr.KindIndexLoad, op, "index data is unreadable", err)
	}

	qvec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(ix.Entries))
	for _, e := range ix.Entries {
		matches = append(matches, Match{ID: e.ID, Text: e.Text, Score: CosineSimilarity(qvec, e.Embedding)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if k > 0 && k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}
