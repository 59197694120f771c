// Package golden maintains the store of verified question/query pairs and
// retrieves the best-matching example for a new question.
package golden

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/llm"
	"github.com/emsight-ai/emsight-engine/pkg/models"
)

// DefaultThreshold is the minimum similarity for retrieval matches.
const DefaultThreshold = 0.55

// keywordScoreFloor filters token-overlap fallback matches.
const keywordScoreFloor = 0.3

// Match pairs a retrieved example with its similarity score in [0,1].
type Match struct {
	Example models.GoldenExample
	Score   float64
}

// Stats summarizes the store for reporting endpoints.
type Stats struct {
	TotalExamples     int      `json:"total_examples"`
	EmbeddingsEnabled bool     `json:"embeddings_enabled"`
	StoragePath       string   `json:"storage_path"`
	Tags              []string `json:"tags"`
}

type storeFile struct {
	Examples []models.GoldenExample `json:"examples"`
}

// Store is the file-backed example set plus its similarity index. Reads
// and writes are guarded by a single RWMutex; the embedding matrix is
// rebuilt from scratch on every add (O(n) per write, fine at this scale).
type Store struct {
	mu         sync.RWMutex
	path       string
	encoder    llm.Client // nil disables semantic search
	examples   []models.GoldenExample
	embeddings [][]float32
	logger     *zap.Logger
}

// NewStore loads (or seeds) the example set from path. The encoder may be
// nil, in which case retrieval falls back to token overlap.
func NewStore(ctx context.Context, path string, encoder llm.Client, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		encoder: encoder,
		logger:  logger.Named("golden"),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	if len(s.examples) == 0 {
		s.examples = seedExamples()
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	if err := s.rebuildEmbeddings(ctx); err != nil {
		// Retrieval degrades to lexical matching; the store stays usable.
		s.logger.Warn("embedding index unavailable", zap.Error(err))
	}

	s.logger.Info("golden store ready",
		zap.Int("examples", len(s.examples)),
		zap.Bool("embeddings", s.embeddings != nil))
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden store: %w", err)
	}
	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse golden store: %w", err)
	}
	s.examples = file.Examples
	return nil
}

// save persists the full example set. Caller must hold the write lock (or
// be the only goroutine with access, as during construction).
func (s *Store) save() error {
	data, err := json.MarshalIndent(storeFile{Examples: s.examples}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode golden store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write golden store: %w", err)
	}
	return nil
}

func (s *Store) rebuildEmbeddings(ctx context.Context) error {
	if s.encoder == nil || len(s.examples) == 0 {
		return nil
	}
	questions := make([]string, len(s.examples))
	for i, ex := range s.examples {
		questions[i] = ex.Question
	}
	embeddings, err := s.encoder.CreateEmbeddings(ctx, questions)
	if err != nil {
		s.embeddings = nil
		return err
	}
	s.embeddings = embeddings
	return nil
}

// FindSimilar returns the best-matching stored examples for the question,
// ordered by descending score. A case-insensitive exact question match
// short-circuits with score 1.0 and no similarity computation.
func (s *Store) FindSimilar(ctx context.Context, question string, topK int, threshold float64) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.examples) == 0 {
		return nil, nil
	}

	for _, ex := range s.examples {
		if strings.EqualFold(ex.Question, question) {
			s.logger.Debug("exact golden match", zap.String("question", question))
			return []Match{{Example: ex, Score: 1.0}}, nil
		}
	}

	if s.encoder != nil && s.embeddings != nil {
		return s.semanticSearch(ctx, question, topK, threshold)
	}
	return s.keywordSearch(question, topK), nil
}

func (s *Store) semanticSearch(ctx context.Context, question string, topK int, threshold float64) ([]Match, error) {
	queryEmbedding, err := s.encoder.CreateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches := make([]Match, 0, len(s.examples))
	for i, ex := range s.examples {
		if i >= len(s.embeddings) {
			break
		}
		matches = append(matches, Match{
			Example: ex,
			Score:   cosineSimilarity(s.embeddings[i], queryEmbedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	var out []Match
	for _, m := range matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
		if len(out) >= topK {
			break
		}
	}
	if len(out) > 0 {
		s.logger.Debug("semantic golden match", zap.Float64("score", out[0].Score))
	}
	return out, nil
}

func (s *Store) keywordSearch(question string, topK int) []Match {
	queryTokens := tokenSet(question)

	matches := make([]Match, 0, len(s.examples))
	for _, ex := range s.examples {
		matches = append(matches, Match{
			Example: ex,
			Score:   tokenOverlap(queryTokens, tokenSet(ex.Question)),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	var out []Match
	for _, m := range matches {
		if len(out) >= topK {
			break
		}
		if m.Score > keywordScoreFloor {
			out = append(out, m)
		}
	}
	return out
}

// AddExample stores a corrected example. A case-insensitive question match
// updates the existing entry in place; otherwise the example is appended.
// Either way the set is persisted and the embedding index rebuilt.
func (s *Store) AddExample(ctx context.Context, question, sql, notes string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	for i := range s.examples {
		if strings.EqualFold(s.examples[i].Question, question) {
			s.examples[i].SQL = sql
			s.examples[i].Notes = notes
			if len(tags) > 0 {
				s.examples[i].Tags = tags
			}
			updated = true
			break
		}
	}
	if !updated {
		s.examples = append(s.examples, models.GoldenExample{
			Question: question,
			SQL:      sql,
			Notes:    notes,
			Tags:     tags,
		})
	}

	if err := s.save(); err != nil {
		return err
	}
	if err := s.rebuildEmbeddings(ctx); err != nil {
		s.logger.Warn("embedding rebuild failed", zap.Error(err))
	}

	s.logger.Info("golden example saved",
		zap.Bool("updated", updated),
		zap.Int("total", len(s.examples)))
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tagSet := make(map[string]bool)
	for _, ex := range s.examples {
		for _, t := range ex.Tags {
			tagSet[t] = true
		}
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	return Stats{
		TotalExamples:     len(s.examples),
		EmbeddingsEnabled: s.encoder != nil && s.embeddings != nil,
		StoragePath:       s.path,
		Tags:              tags,
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}

// tokenOverlap computes |A∩B| / max(|A|,|B|).
func tokenOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for tok := range a {
		if b[tok] {
			overlap++
		}
	}
	return float64(overlap) / math.Max(float64(len(a)), float64(len(b)))
}
