package categorymemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Matcher suggests categories from a user's remembered patterns and
// learns from confirmed choices.
//
// Calls for one user are expected to be serialized by the caller; the
// matcher itself keeps no per-user state between calls.
type Matcher struct {
	store      Store
	normalizer *Normalizer
	params     Params
	log        zerolog.Logger
	now        func() time.Time
}

// NewMatcher creates a matcher. A nil normalizer means DefaultNormalizer.
func NewMatcher(store Store, normalizer *Normalizer, params Params, log zerolog.Logger) *Matcher {
	if normalizer == nil {
		normalizer = DefaultNormalizer()
	}
	return &Matcher{
		store:      store,
		normalizer: normalizer,
		params:     params,
		log:        log.With().Str("component", "category_memory").Logger(),
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests and by backfills.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	m.now = now
	return m
}

// Normalizer returns the normalizer used for patterns.
func (m *Matcher) Normalizer() *Normalizer {
	return m.normalizer
}

// Suggest returns the best remembered category for description, or nil when
// nothing scores above the minimum confidence. Errors come only from the store.
func (m *Matcher) Suggest(ctx context.Context, userID, description string) (*Suggestion, error) {
	pattern := m.normalizer.Normalize(description)
	if pattern == "" || userID == "" {
		return nil, nil
	}
	keywords := m.normalizer.Keywords(pattern)

	records, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Suggest: listing patterns for user %s: %w", userID, err)
	}

	var (
		best      *Record
		bestScore float64
	)
	for i := range records {
		rec := m.owned(userID, records[i])
		if rec == nil {
			continue
		}
		score := m.score(pattern, keywords, *rec)
		if score > bestScore && score > m.params.MinConfidence {
			best, bestScore = rec, score
		}
	}

	if best == nil {
		m.log.Debug().Str("user_id", userID).Str("pattern", pattern).Int("candidates", len(records)).Msg("No remembered category")
		return nil, nil
	}

	return &Suggestion{
		CategoryID: best.CategoryID,
		Confidence: math.Min(bestScore, 1),
		Score:      bestScore,
		AutoApply:  bestScore >= m.params.AutoApplyThreshold,
		Pattern:    best.Pattern,
		RecordID:   best.ID,
	}, nil
}

// Score computes the combined score of a stored record against description.
// Exposed for diagnostics.
func (m *Matcher) Score(description string, rec Record) float64 {
	pattern := m.normalizer.Normalize(description)
	if pattern == "" {
		return 0
	}
	return m.score(pattern, m.normalizer.Keywords(pattern), clampRecord(rec))
}

func (m *Matcher) score(pattern string, keywords []string, rec Record) float64 {
	similarity := Similarity(pattern, rec.Pattern)

	keywordScore := 0.0
	if len(keywords) > 0 {
		recKeywords := make(map[string]struct{})
		for _, kw := range m.normalizer.Keywords(rec.Pattern) {
			recKeywords[kw] = struct{}{}
		}
		hits := 0
		for _, kw := range keywords {
			if _, ok := recKeywords[kw]; ok {
				hits++
			}
		}
		keywordScore = float64(hits) / float64(len(keywords))
	}

	popularity := math.Min(float64(rec.UsageCount)/m.params.PopularityDivisor, m.params.PopularityCap)

	return (m.params.PatternWeight*similarity + m.params.KeywordWeight*keywordScore + popularity) * rec.Confidence
}

// Remember records that the user put description into categoryID.
// confidence is the starting confidence for a brand-new pattern.
func (m *Matcher) Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error {
	if userID == "" || categoryID == "" {
		return ErrInvalidRecord
	}
	pattern := m.normalizer.Normalize(description)
	if pattern == "" {
		m.log.Debug().Str("user_id", userID).Str("description", description).Msg("Nothing to remember after normalization")
		return nil
	}

	records, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("Remember: listing patterns for user %s: %w", userID, err)
	}

	var owned []Record
	for i := range records {
		if rec := m.owned(userID, records[i]); rec != nil {
			owned = append(owned, *rec)
		}
	}

	now := m.now().UTC()

	for _, rec := range owned {
		if rec.Pattern == pattern && rec.CategoryID == categoryID {
			return m.reinforce(ctx, rec, m.params.ExactIncrement, now, "exact")
		}
	}

	// Merge into the closest near-duplicate of the same category. Records of
	// other categories are never touched, and a closer similar record of
	// another category does not block the merge: only same-category
	// candidates are compared, unlike a first-similar-of-any-category search.
	var (
		closest    *Record
		closestSim float64
	)
	for i := range owned {
		if owned[i].CategoryID != categoryID {
			continue
		}
		sim := Similarity(pattern, owned[i].Pattern)
		if sim >= m.params.SimilarityThreshold && sim > closestSim {
			closest, closestSim = &owned[i], sim
		}
	}
	if closest != nil {
		return m.reinforce(ctx, *closest, m.params.SimilarIncrement, now, "similar")
	}

	rec := Record{
		ID:         uuid.NewString(),
		UserID:     userID,
		Pattern:    pattern,
		CategoryID: categoryID,
		Confidence: clamp01(confidence),
		UsageCount: 1,
		LastUsed:   now,
		CreatedAt:  now,
	}
	if err := m.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("Remember: inserting pattern: %w", err)
	}

	m.log.Info().
		Str("user_id", userID).
		Str("pattern", pattern).
		Str("category_id", categoryID).
		Float64("confidence", rec.Confidence).
		Msg("New category pattern remembered")
	return nil
}

func (m *Matcher) reinforce(ctx context.Context, rec Record, increment float64, now time.Time, kind string) error {
	rec.UsageCount++
	rec.LastUsed = now
	rec.Confidence = math.Min(1, rec.Confidence+increment)

	if err := m.store.Update(ctx, rec); err != nil {
		return fmt.Errorf("Remember: updating pattern %s: %w", rec.ID, err)
	}

	m.log.Debug().
		Str("user_id", rec.UserID).
		Str("record_id", rec.ID).
		Str("match", kind).
		Int64("usage_count", rec.UsageCount).
		Float64("confidence", rec.Confidence).
		Msg("Category pattern reinforced")
	return nil
}

// Cleanup deletes a user's stale, untrusted patterns and returns how many
// were removed.
func (m *Matcher) Cleanup(ctx context.Context, userID string) (int64, error) {
	filter := StaleFilter{
		UserID:         userID,
		LastUsedBefore: m.now().UTC().Add(-m.params.RetentionWindow),
		MaxConfidence:  m.params.CleanupMaxConfidence,
		MaxUsage:       m.params.CleanupMaxUsage,
	}

	n, err := m.store.DeleteStale(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("Cleanup: deleting stale patterns: %w", err)
	}

	m.log.Info().Str("user_id", userID).Int64("deleted", n).Time("cutoff", filter.LastUsedBefore).Msg("Category memory cleanup finished")
	return n, nil
}

// CleanupAll runs Cleanup across every user.
func (m *Matcher) CleanupAll(ctx context.Context) (int64, error) {
	return m.Cleanup(ctx, "")
}

// Patterns lists a user's records, most used first.
func (m *Matcher) Patterns(ctx context.Context, userID string) ([]Record, error) {
	records, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Patterns: listing patterns for user %s: %w", userID, err)
	}

	out := make([]Record, 0, len(records))
	for i := range records {
		if rec := m.owned(userID, records[i]); rec != nil {
			out = append(out, *rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	return out, nil
}

// owned returns a clamped copy of rec, or nil if it belongs to someone else.
func (m *Matcher) owned(userID string, rec Record) *Record {
	if rec.UserID != userID {
		m.log.Warn().Str("user_id", userID).Str("record_id", rec.ID).Msg("Store returned a foreign record, ignoring")
		return nil
	}
	rec = clampRecord(rec)
	return &rec
}

func clampRecord(rec Record) Record {
	rec.Confidence = clamp01(rec.Confidence)
	if rec.UsageCount < 0 {
		rec.UsageCount = 0
	}
	return rec
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
