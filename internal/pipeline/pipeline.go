// Package pipeline turns an organization's source documents into a stored
// assessment report and the new risks it reveals.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-assess/internal/compiler"
	"github.com/hugh/go-assess/internal/database/models"
	"github.com/hugh/go-assess/internal/generation"
	"github.com/hugh/go-assess/internal/metrics"
	"github.com/hugh/go-assess/internal/reconcile"
	"gorm.io/gorm"
)

// ProfileLabel labels the organization's own answers in the compiled context.
const ProfileLabel = "organization_profile"

// Kind classifies why a run failed.
type Kind string

const (
	KindNone                 Kind = ""
	KindLockTimeout          Kind = "lock_timeout"
	KindUnavailable          Kind = "service_unavailable"
	KindOrganizationNotFound Kind = "organization_not_found"
	KindUserNotFound         Kind = "user_not_found"
	KindOrganizationMismatch Kind = "organization_mismatch"
	KindReportGeneration     Kind = "report_generation_failed"
	KindRiskGeneration       Kind = "risk_generation_failed"
	KindPersistence          Kind = "persistence_failed"
	KindCancelled            Kind = "cancelled"
)

var reasons = map[Kind]string{
	KindLockTimeout:          "Another assessment for this organization is still running.",
	KindUnavailable:          "The assessment service is temporarily unavailable. Please try again later.",
	KindOrganizationNotFound: "The organization could not be found.",
	KindUserNotFound:         "The requesting user could not be found.",
	KindOrganizationMismatch: "The requesting user does not belong to this organization.",
	KindReportGeneration:     "The assessment report could not be generated. Please try again later.",
	KindRiskGeneration:       "The risk list could not be generated. No report was saved.",
	KindPersistence:          "The report could not be saved. No changes were made.",
	KindCancelled:            "The assessment was cancelled before it finished.",
}

// Reason returns the user-facing explanation for k.
func (k Kind) Reason() string {
	return reasons[k]
}

// Prompts supplies the fixed text for both generation stages.
type Prompts interface {
	reconcile.Instructions
	ReportInstructions(format models.ReportFormat) string
	ReportExample(format models.ReportFormat) string
	DefaultPersona() string
}

type Request struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	// Sources are labelled documents, compiled before Locations.
	Sources []compiler.Source
	// Locations are loaded and labelled by location.
	Locations []string
	Persona   string
	Format    models.ReportFormat
}

type Result struct {
	OK         bool          `json:"ok"`
	Kind       Kind          `json:"kind,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	ReportID   uuid.UUID     `json:"report_id,omitempty"`
	RisksAdded int           `json:"risks_added"`
	Duration   time.Duration `json:"duration"`
}

type Options struct {
	Format        models.ReportFormat
	Persona       string
	Generation    generation.Config
	ContextFormat compiler.Format
	ErrorPolicy   compiler.ErrorPolicy
	Similarity    float64
}

type Pipeline struct {
	coord      *Coordinator
	compiler   *compiler.Compiler
	runner     reconcile.TaskRunner
	reconciler *reconcile.Reconciler
	prompts    Prompts
	locker     Locker
	logger     *slog.Logger
	format     models.ReportFormat
	persona    string
}

// New wires a pipeline. A nil locker serializes runs in-process only.
func New(db *gorm.DB, loader compiler.Loader, gen generation.Generator, prompts Prompts, locker Locker, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if !opts.Format.Valid() {
		opts.Format = models.ReportFormatJSON
	}

	client := generation.NewClient(gen, opts.Generation, logger)

	var rOpts []reconcile.Option
	if opts.Similarity > 0 {
		rOpts = append(rOpts, reconcile.WithSimilarity(opts.Similarity))
	}

	return &Pipeline{
		coord: NewCoordinator(db, logger),
		compiler: compiler.New(loader,
			compiler.WithFormat(opts.ContextFormat),
			compiler.WithErrorPolicy(opts.ErrorPolicy),
			compiler.WithLogger(logger),
		),
		runner:     client,
		reconciler: reconcile.New(client, prompts, logger, rOpts...),
		prompts:    prompts,
		locker:     locker,
		logger:     logger,
		format:     opts.Format,
		persona:    opts.Persona,
	}
}

func (p *Pipeline) Coordinator() *Coordinator {
	return p.coord
}

// Run executes one invocation end to end. It never returns partial work:
// either a report and all of its new risks are stored, or nothing is.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	log := p.logger.With("org_id", req.OrganizationID, "user_id", req.UserID)

	res := p.run(ctx, log, req)
	res.Duration = time.Since(start)

	outcome := "ok"
	if !res.OK {
		outcome = string(res.Kind)
	}
	metrics.ObservePipeline(outcome, res.RisksAdded, res.Duration)

	if res.OK {
		log.Info("assessment completed",
			"report_id", res.ReportID,
			"risks_added", res.RisksAdded,
			"duration", res.Duration,
		)
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, req Request) Result {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return p.fail(log, KindCancelled, err)
	}

	release, err := p.locker.Acquire(ctx, req.OrganizationID)
	if err != nil {
		return p.fail(log, lockKind(ctx, err), err)
	}
	defer release()

	org, _, err := p.coord.Lookup(ctx, req.OrganizationID, req.UserID)
	if err != nil {
		return p.fail(log, stageKind(ctx, lookupKind(err)), err)
	}

	format := req.Format
	if !format.Valid() {
		format = p.format
	}
	persona := p.personaFor(req)

	docContext := p.compile(ctx, log, org, req)
	if err := ctx.Err(); err != nil {
		return p.fail(log, KindCancelled, err)
	}

	text, err := p.runner.Generate(ctx, generation.Task{
		Stage:        ReportStage,
		Instructions: p.prompts.ReportInstructions(format),
		Context:      docContext,
		Example:      p.prompts.ReportExample(format),
		Persona:      persona,
		Contract:     ReportContract(format),
	})
	if err != nil {
		return p.fail(log, stageKind(ctx, KindReportGeneration), err)
	}

	payload, err := EncodePayload(format, text)
	if err != nil {
		return p.fail(log, KindReportGeneration, err)
	}

	existing, err := p.coord.ExistingRisks(ctx, org.ID)
	if err != nil {
		return p.fail(log, stageKind(ctx, KindPersistence), err)
	}

	findings, err := p.reconciler.Reconcile(ctx, text, existing, persona)
	if err != nil {
		return p.fail(log, stageKind(ctx, KindRiskGeneration), err)
	}

	report, err := p.coord.Persist(ctx, Submission{
		OrganizationID: org.ID,
		UserID:         req.UserID,
		Format:         format,
		Payload:        payload,
		StartedAt:      started,
		Findings:       findings,
	})
	if err != nil {
		kind := KindPersistence
		if errors.Is(err, ErrOrganizationNotFound) || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrOrganizationMismatch) {
			kind = lookupKind(err)
		}
		return p.fail(log, stageKind(ctx, kind), err)
	}

	return Result{OK: true, ReportID: report.ID, RisksAdded: len(findings)}
}

func (p *Pipeline) personaFor(req Request) string {
	switch {
	case req.Persona != "":
		return req.Persona
	case p.persona != "":
		return p.persona
	default:
		return p.prompts.DefaultPersona()
	}
}

// compile puts the organization's profile first, then each document.
func (p *Pipeline) compile(ctx context.Context, log *slog.Logger, org *models.Organization, req Request) string {
	var out string
	profile, err := json.Marshal(org.Posture())
	if err == nil {
		out, err = p.compiler.Render(ProfileLabel, profile)
	}
	if err != nil {
		log.Warn("organization profile left out of context", "error", err)
		out = ""
	}

	sources := make([]compiler.Source, 0, len(req.Sources)+len(req.Locations))
	sources = append(sources, req.Sources...)
	for _, loc := range req.Locations {
		sources = append(sources, compiler.Source{Label: loc, Location: loc})
	}
	return out + p.compiler.CompileSources(ctx, sources)
}

func (p *Pipeline) fail(log *slog.Logger, kind Kind, err error) Result {
	log.Error("assessment failed", "kind", kind, "error", err)
	return Result{Kind: kind, Reason: kind.Reason()}
}

func lookupKind(err error) Kind {
	switch {
	case errors.Is(err, ErrOrganizationNotFound):
		return KindOrganizationNotFound
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrOrganizationMismatch):
		return KindOrganizationMismatch
	default:
		return KindPersistence
	}
}

// lockKind separates waiting behind another run from a lock backend failure.
func lockKind(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrLockBusy):
		return KindLockTimeout
	case errors.Is(err, ErrLockUnavailable):
		return KindUnavailable
	default:
		return stageKind(ctx, KindUnavailable)
	}
}

// stageKind reports cancellation in preference to the stage that noticed it.
func stageKind(ctx context.Context, kind Kind) Kind {
	if ctx.Err() != nil {
		return KindCancelled
	}
	return kind
}
