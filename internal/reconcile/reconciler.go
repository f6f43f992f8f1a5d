// Package reconcile derives the list of new risks from a generated report,
// excluding anything the organization already has on file.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/generation"
)

// Stage labels risk-list generation in logs and metrics.
const Stage = "risk"

// TaskRunner runs one generation task. *generation.Client satisfies it.
type TaskRunner interface {
	Generate(ctx context.Context, task generation.Task) (string, error)
}

// Instructions supplies the fixed risk-stage text.
type Instructions interface {
	RiskInstructions() string
	RiskExample() string
}

type Reconciler struct {
	runner    TaskRunner
	prompts   Instructions
	threshold float64
	logger    *slog.Logger
}

type Option func(*Reconciler)

func WithSimilarity(threshold float64) Option {
	return func(r *Reconciler) { r.threshold = threshold }
}

func New(runner TaskRunner, prompts Instructions, logger *slog.Logger, opts ...Option) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reconciler{
		runner:    runner,
		prompts:   prompts,
		threshold: DefaultSimilarity,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// knownRisk is what the model sees about each existing risk.
type knownRisk struct {
	Name             string          `json:"risk_name"`
	Severity         models.Severity `json:"severity"`
	AffectedElements string          `json:"affected_elements"`
}

// Content joins the report with the organization's current risks. An empty
// set is rendered as [].
func Content(report string, existing []models.Risk) (string, error) {
	known := make([]knownRisk, 0, len(existing))
	for _, r := range existing {
		known = append(known, knownRisk{
			Name:             r.Name,
			Severity:         r.Severity,
			AffectedElements: models.JoinElements(r.Elements()),
		})
	}
	list, err := json.Marshal(known)
	if err != nil {
		return "", fmt.Errorf("encoding current risks: %w", err)
	}
	return report + "\n\nOrganization's current risks: " + string(list), nil
}

// Reconcile asks for the risks in report that are not already in existing.
// The model is instructed to skip known risks; anything equivalent that
// still comes back is filtered out here.
func (r *Reconciler) Reconcile(ctx context.Context, report string, existing []models.Risk, persona string) ([]Finding, error) {
	content, err := Content(report, existing)
	if err != nil {
		return nil, err
	}

	raw, err := r.runner.Generate(ctx, generation.Task{
		Stage:        Stage,
		Instructions: r.prompts.RiskInstructions(),
		Context:      content,
		Example:      r.prompts.RiskExample(),
		Persona:      persona,
		Contract:     Contract(),
	})
	if err != nil {
		return nil, err
	}

	var list RiskList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding risk list: %w", err)
	}

	kept, dropped := filterKnown(list.Vulnerabilities, existing, r.threshold)
	if len(dropped) > 0 {
		r.logger.Info("dropped risks already on file", "count", len(dropped), "names", dropped)
	}
	r.logger.Debug("risk list reconciled", "generated", len(list.Vulnerabilities), "new", len(kept), "existing", len(existing))

	if kept == nil {
		kept = []Finding{}
	}
	return kept, nil
}
