// Package consolidation implements the dreaming engine: it drains the
// accumulated memory records, asks a reasoning backend to distill them
// into insights, then persists the insights and archives the processed
// records in a single commit.
package consolidation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/metacoglab/dreammem-go/pkg/embedder"
	"github.com/metacoglab/dreammem-go/pkg/index"
	"github.com/metacoglab/dreammem-go/pkg/reasoning"
	"github.com/metacoglab/dreammem-go/pkg/storage"
)

// DefaultReasoningTimeout bounds the single reasoning call of a cycle
// when no timeout is configured.
const DefaultReasoningTimeout = 120 * time.Second

var (
	// ErrCycleInProgress is returned when a cycle is started while
	// another one is still running.
	ErrCycleInProgress = errors.New("consolidation cycle already in progress")

	// ErrReasoningTimeout is returned when the reasoning call exceeds
	// the configured timeout.
	ErrReasoningTimeout = errors.New("reasoning call timed out")

	// ErrReasoningFailed is returned when the reasoning backend fails or
	// returns an unusable response.
	ErrReasoningFailed = errors.New("reasoning call failed")
)

// Phase is the engine's position in the consolidation cycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDraining
	PhaseReasoning
	PhasePersisting
	PhaseArchiving
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDraining:
		return "draining"
	case PhaseReasoning:
		return "reasoning"
	case PhasePersisting:
		return "persisting"
	case PhaseArchiving:
		return "archiving"
	default:
		return "unknown"
	}
}

// Config contains the collaborators a consolidation engine needs.
type Config struct {
	Store     storage.RecordStore
	Backend   reasoning.Backend
	Embedder  embedder.Provider
	Vectors   index.VectorIndex
	Keywords  *index.KeywordIndex
	Tokenizer index.Tokenizer

	// NewID mints record IDs for the insights a cycle produces.
	NewID func() int64

	Logger zerolog.Logger
}

// RunParams tunes a single cycle. The caller reads its configuration
// fresh before every cycle, so changes apply to the next Run.
type RunParams struct {
	// ReasoningTimeout bounds the reasoning call. Zero means
	// DefaultReasoningTimeout.
	ReasoningTimeout time.Duration
}

// Result summarizes a finished cycle.
type Result struct {
	// Skipped is true when there was nothing to consolidate. A skipped
	// cycle is a successful no-op.
	Skipped bool

	// MemoriesProcessed counts the records in the drained snapshot.
	MemoriesProcessed int

	// FeedbacksUsed counts the feedback items fed into the prompt.
	FeedbacksUsed int

	// Insights holds the distilled insight texts.
	Insights []string

	// RecordsArchived counts records newly archived by the commit.
	RecordsArchived int

	Duration time.Duration
}

// Engine runs consolidation cycles. At most one cycle runs at a time;
// memory writes may proceed concurrently and records saved after the
// drain are left untouched by the cycle's archive step.
type Engine struct {
	cfg   Config
	phase atomic.Int32
}

// NewEngine creates a consolidation engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

// Run executes one consolidation cycle:
//
//  1. Draining: snapshot the active records and unconsumed feedback.
//  2. Reasoning: one bounded call to the reasoning backend.
//  3. Persisting and Archiving: store the insights, archive the
//     snapshot and mark the feedback consumed in one transaction, then
//     bring the indexes in line.
//
// Any failure before the commit leaves the store exactly as it was.
// Records saved while the cycle runs are not part of the snapshot and
// are never archived by it.
func (e *Engine) Run(ctx context.Context, params RunParams) (*Result, error) {
	if !e.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseDraining)) {
		return nil, ErrCycleInProgress
	}
	defer e.phase.Store(int32(PhaseIdle))

	start := time.Now()
	logger := e.cfg.Logger
	logger.Info().Msg("consolidation cycle starting")

	snapshot, err := e.cfg.Store.ListActive(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}
	feedback, err := e.cfg.Store.ListUnconsumedFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}

	if len(snapshot) == 0 && len(feedback) == 0 {
		logger.Info().Msg("nothing to consolidate")
		return &Result{Skipped: true, Duration: time.Since(start)}, nil
	}

	var carryForward, memories []*storage.Record
	for _, record := range snapshot {
		if record.Category == storage.CategoryConsolidated {
			carryForward = append(carryForward, record)
		} else {
			memories = append(memories, record)
		}
	}

	e.phase.Store(int32(PhaseReasoning))

	prompt := BuildPrompt(PromptInput{
		Feedback:     feedback,
		CarryForward: carryForward,
		Memories:     memories,
	})

	timeout := params.ReasoningTimeout
	if timeout <= 0 {
		timeout = DefaultReasoningTimeout
	}
	logger.Info().
		Int("memories", len(memories)).
		Int("carry_forward", len(carryForward)).
		Int("feedback", len(feedback)).
		Dur("timeout", timeout).
		Msg("reasoning over memory snapshot")

	rctx, cancel := context.WithTimeout(ctx, timeout)
	response, err := e.cfg.Backend.CompleteWithMessages(rctx, []reasoning.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, reasoning.WithTemperature(0.7))
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("Consolidate: %w", ErrReasoningTimeout)
		}
		return nil, fmt.Errorf("Consolidate: %w: %v", ErrReasoningFailed, err)
	}

	insights := ParseInsights(response)
	if len(insights) == 0 {
		return nil, fmt.Errorf("Consolidate: %w: empty response", ErrReasoningFailed)
	}

	e.phase.Store(int32(PhasePersisting))

	embeddings, err := e.cfg.Embedder.EmbedBatch(ctx, insights)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}

	now := time.Now()
	insightRecords := make([]*storage.Record, len(insights))
	for i, insight := range insights {
		insightRecords[i] = &storage.Record{
			ID:        e.cfg.NewID(),
			Content:   insight,
			Category:  storage.CategoryConsolidated,
			Embedding: embeddings[i],
			Keywords:  e.cfg.Tokenizer.Tokenize(insight),
			Metadata:  map[string]interface{}{"source": "consolidation"},
			CreatedAt: now,
		}
	}

	archiveIDs := make([]int64, len(snapshot))
	for i, record := range snapshot {
		archiveIDs[i] = record.ID
	}
	feedbackIDs := make([]string, len(feedback))
	for i, fb := range feedback {
		feedbackIDs[i] = fb.ID
	}

	e.phase.Store(int32(PhaseArchiving))

	archived, err := e.cfg.Store.CommitConsolidation(ctx, insightRecords, archiveIDs, feedbackIDs)
	if err != nil {
		return nil, fmt.Errorf("Consolidate: %w", err)
	}

	// The commit is durable; index divergence here surfaces in logs and
	// heals on the next startup rebuild.
	if err := e.cfg.Vectors.Remove(ctx, archiveIDs); err != nil {
		logger.Error().Err(err).Msg("failed to drop archived records from vector index")
	}
	e.cfg.Keywords.Remove(archiveIDs)
	for _, record := range insightRecords {
		if err := e.cfg.Vectors.Add(ctx, record.ID, record.Embedding, record.CreatedAt); err != nil {
			logger.Error().Err(err).Int64("record_id", record.ID).Msg("failed to index insight")
		}
		e.cfg.Keywords.Add(record.ID, record.Keywords)
	}

	result := &Result{
		MemoriesProcessed: len(snapshot),
		FeedbacksUsed:     len(feedback),
		Insights:          insights,
		RecordsArchived:   archived,
		Duration:          time.Since(start),
	}

	logger.Info().
		Int("insights", len(insights)).
		Int("archived", archived).
		Dur("duration", result.Duration).
		Msg("consolidation cycle complete")

	return result, nil
}
