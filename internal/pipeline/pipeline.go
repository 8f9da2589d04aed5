// Package pipeline turns a receipt photo stored in GCS into categorised
// transactions.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/gemini"
)

// PipelineStep represents a single step in the receipt pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *ReceiptState) error
}

// ReceiptState holds the shared state across all pipeline steps.
type ReceiptState struct {
	UserID string
	GCSURI string

	Image    []byte
	MIMEType string

	Receipt      *gemini.Receipt
	Transactions []*domain.Transaction
	// Suggestions[i] categorised Transactions[i]; nil when nothing matched.
	Suggestions []*categorize.Result
	Remembered  int
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *ReceiptState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewReceiptPipeline creates the standard five-step receipt pipeline.
func NewReceiptPipeline(deps *Deps) *Pipeline {
	return NewPipeline(
		&FetchPhotoStep{Storage: deps.Storage},
		&AnalyzeReceiptStep{Deps: deps},
		&CategorizeStep{Categorizer: deps.Categorizer},
		&StoreTransactionsStep{Deps: deps},
		&RememberStep{Deps: deps},
	)
}

// ProcessReceipt runs the receipt pipeline for one uploaded photo.
func ProcessReceipt(ctx context.Context, deps *Deps, userID, gcsURI string) (*ReceiptState, error) {
	if userID == "" || gcsURI == "" {
		return nil, fmt.Errorf("ProcessReceipt: user id and GCS URI are required")
	}

	log := deps.Log.With().Str("user_id", userID).Str("gcs_uri", gcsURI).Logger()
	log.Info().Msg("Processing receipt")

	state := &ReceiptState{UserID: userID, GCSURI: gcsURI}
	if err := NewReceiptPipeline(deps).Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Receipt processing failed")
		return state, fmt.Errorf("ProcessReceipt: %w", err)
	}

	log.Info().
		Int("transactions", len(state.Transactions)).
		Int("remembered", state.Remembered).
		Msg("Receipt processed")
	return state, nil
}
