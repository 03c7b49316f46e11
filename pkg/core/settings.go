package core

import (
	"sync"
	"time"
)

// Settings holds the runtime-tunable parameters of a client. Values are
// read fresh at the start of every operation, so a change made between
// two calls applies to the second call.
//
// Settings is safe for concurrent use.
type Settings struct {
	mu sync.RWMutex

	relevanceThreshold     float64
	keywordHitScore        float64
	defaultLimit           int
	consolidationThreshold int
	reasoningTimeout       time.Duration
}

func newSettings(cfg *Config) *Settings {
	s := &Settings{
		relevanceThreshold:     cfg.Retrieval.RelevanceThreshold,
		keywordHitScore:        cfg.Retrieval.KeywordHitScore,
		defaultLimit:           cfg.Retrieval.DefaultLimit,
		consolidationThreshold: cfg.Consolidation.Threshold,
		reasoningTimeout:       time.Duration(cfg.Consolidation.TimeoutSeconds) * time.Second,
	}
	if s.relevanceThreshold == 0 {
		s.relevanceThreshold = DefaultRelevanceThreshold
	}
	if s.keywordHitScore == 0 {
		s.keywordHitScore = DefaultKeywordHitScore
	}
	if s.defaultLimit == 0 {
		s.defaultLimit = DefaultSearchLimit
	}
	if s.consolidationThreshold == 0 {
		s.consolidationThreshold = DefaultConsolidationThreshold
	}
	if s.reasoningTimeout == 0 {
		s.reasoningTimeout = DefaultTimeoutSeconds * time.Second
	}
	return s
}

// RelevanceThreshold returns the current search relevance threshold.
func (s *Settings) RelevanceThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relevanceThreshold
}

// SetRelevanceThreshold changes the search relevance threshold. The new
// value applies to the next search.
func (s *Settings) SetRelevanceThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relevanceThreshold = threshold
}

// KeywordHitScore returns the fixed score assigned to keyword-only hits.
func (s *Settings) KeywordHitScore() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keywordHitScore
}

// SetKeywordHitScore changes the keyword-only hit score.
func (s *Settings) SetKeywordHitScore(score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywordHitScore = score
}

// DefaultLimit returns the search result limit used when a search does
// not set one.
func (s *Settings) DefaultLimit() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultLimit
}

// SetDefaultLimit changes the default search result limit.
func (s *Settings) SetDefaultLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultLimit = limit
}

// ConsolidationThreshold returns the active record count at which
// consolidation is recommended.
func (s *Settings) ConsolidationThreshold() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consolidationThreshold
}

// SetConsolidationThreshold changes the consolidation trigger threshold.
func (s *Settings) SetConsolidationThreshold(threshold int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consolidationThreshold = threshold
}

// ReasoningTimeout returns the timeout for a cycle's reasoning call.
func (s *Settings) ReasoningTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reasoningTimeout
}

// SetReasoningTimeout changes the reasoning timeout. The new value
// applies to the next consolidation cycle.
func (s *Settings) SetReasoningTimeout(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasoningTimeout = timeout
}
