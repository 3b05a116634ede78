package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stewardhq/steward/core"
	"github.com/stewardhq/steward/logging"
	"github.com/stewardhq/steward/model"
)

const summarizerInstructions = `You maintain the long-term working memory of a personal assistant.
You are given the current memory summary (possibly empty) and a block of
conversation entries that are about to leave the active context. Produce an
updated summary that merges both: preserve commitments, open tasks, user
preferences, agent names and outcomes, and scheduled triggers. Drop
pleasantries and redundant detail. Reply with the summary text only.`

// Summarizer folds old conversation entries into the persisted summary once
// the unsummarized span exceeds a threshold, always keeping a fresh tail of
// entries verbatim. State updates are idempotent: the consumed range is
// tracked by index, so a crash between model call and save at worst redoes
// one summarization.
type Summarizer struct {
	store     core.ConversationStore
	model     model.Model
	logger    logging.Logger
	threshold int
	tail      int
}

// SummarizerOptions configure summarization boundaries.
type SummarizerOptions struct {
	// Threshold is the unsummarized entry count above which a run folds
	// entries. Zero means 100.
	Threshold int
	// Tail is the number of most recent entries always kept verbatim.
	// Zero means 10.
	Tail int
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// NewSummarizer constructs a Summarizer.
func NewSummarizer(store core.ConversationStore, m model.Model, optFns ...func(o *SummarizerOptions)) *Summarizer {
	opts := SummarizerOptions{Threshold: 100, Tail: 10, Logger: logging.NewNop()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 100
	}
	if opts.Tail <= 0 {
		opts.Tail = 10
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Summarizer{
		store:     store,
		model:     m,
		logger:    opts.Logger,
		threshold: opts.Threshold,
		tail:      opts.Tail,
	}
}

// Run performs at most one summarization pass. It reports whether the
// summary state changed. When the unsummarized span is at or below the
// threshold the call is a no-op.
func (s *Summarizer) Run(ctx context.Context) (bool, error) {
	state, err := s.store.LoadSummaryState(ctx)
	if err != nil {
		return false, err
	}
	msgs, err := s.store.MessagesAfter(ctx, state.LastIndex)
	if err != nil {
		return false, err
	}
	if len(msgs) <= s.threshold {
		return false, nil
	}

	fold := msgs[:len(msgs)-s.tail]
	s.logger.Debug("summarizing conversation entries",
		"fold_count", len(fold), "tail_count", s.tail, "prior_last_index", state.LastIndex)

	text, err := s.summarize(ctx, state.SummaryText, fold)
	if err != nil {
		return false, fmt.Errorf("summarize conversation: %w", err)
	}

	now := time.Now().UTC()
	next := core.SummaryState{
		SummaryText: text,
		LastIndex:   fold[len(fold)-1].Index,
		UpdatedAt:   &now,
	}
	if err := s.store.SaveSummaryState(ctx, next); err != nil {
		return false, fmt.Errorf("save summary state: %w", err)
	}
	s.logger.Info("conversation summarized", "last_index", next.LastIndex)
	return true, nil
}

// summarize calls the model once, retrying a single time on failure. An
// empty model reply counts as a failure so a prior summary is never
// clobbered by a blank one.
func (s *Summarizer) summarize(ctx context.Context, prior string, fold []core.Message) (string, error) {
	var b strings.Builder
	if prior != "" {
		b.WriteString("<current_summary>\n")
		b.WriteString(prior)
		b.WriteString("\n</current_summary>\n\n")
	}
	b.WriteString("<entries_to_fold>\n")
	for _, msg := range fold {
		b.WriteString(RenderEntry(msg))
		b.WriteString("\n")
	}
	b.WriteString("</entries_to_fold>")

	req := model.Request{
		Instructions: summarizerInstructions,
		Messages:     []model.Message{{Role: "user", Content: b.String()}},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		resp, err := s.model.Generate(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			lastErr = fmt.Errorf("model returned empty summary")
			continue
		}
		return text, nil
	}
	return "", lastErr
}

// RenderTranscript returns the interaction agent's view of the conversation:
// the persisted summary block (when present) followed by every unsummarized
// entry in tagged form.
func (s *Summarizer) RenderTranscript(ctx context.Context) (string, error) {
	state, err := s.store.LoadSummaryState(ctx)
	if err != nil {
		return "", err
	}
	msgs, err := s.store.MessagesAfter(ctx, state.LastIndex)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if state.SummaryText != "" {
		b.WriteString("<conversation_summary>\n")
		b.WriteString(state.SummaryText)
		b.WriteString("\n</conversation_summary>\n")
	}
	for _, msg := range msgs {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderEntry(msg))
	}
	return b.String(), nil
}
