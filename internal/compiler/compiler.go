// Package compiler turns a set of raw scan and questionnaire documents into
// the single text block handed to report generation.
//
// Every readable document contributes one block:
//
//	<label>:
//	<body>
//	--
//
// Blocks appear in input order. A document that cannot be read or parsed is
// logged and skipped (or replaced by a placeholder) without affecting the
// rest of the batch.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
)

// Separator terminates every block.
const Separator = "--"

var ErrMalformed = errors.New("document is not valid JSON")

// Loader fetches a document body by location.
type Loader interface {
	Load(ctx context.Context, location string) ([]byte, error)
}

type Format int

const (
	// FormatFlat strips the outer braces and prints one top-level entry per
	// line, keeping nested values inline.
	FormatFlat Format = iota
	// FormatPretty prints the document as 2-space indented JSON.
	FormatPretty
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flat":
		return FormatFlat, nil
	case "pretty":
		return FormatPretty, nil
	default:
		return FormatFlat, fmt.Errorf("unknown context format %q", s)
	}
}

func (f Format) String() string {
	if f == FormatPretty {
		return "pretty"
	}
	return "flat"
}

// ErrorPolicy decides what a failed document contributes to the output.
type ErrorPolicy int

const (
	Omit ErrorPolicy = iota
	Placeholder
)

// Source names a document and where to load it from.
type Source struct {
	Label    string
	Location string
}

type Compiler struct {
	loader Loader
	format Format
	policy ErrorPolicy
	logger *slog.Logger
}

type Option func(*Compiler)

func WithFormat(f Format) Option {
	return func(c *Compiler) { c.format = f }
}

func WithErrorPolicy(p ErrorPolicy) Option {
	return func(c *Compiler) { c.policy = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

func New(loader Loader, opts ...Option) *Compiler {
	c := &Compiler{
		loader: loader,
		format: FormatFlat,
		policy: Omit,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile loads every location and labels each block with its location.
func (c *Compiler) Compile(ctx context.Context, locations []string) string {
	sources := make([]Source, len(locations))
	for i, loc := range locations {
		sources[i] = Source{Label: loc, Location: loc}
	}
	return c.CompileSources(ctx, sources)
}

func (c *Compiler) CompileSources(ctx context.Context, sources []Source) string {
	var b strings.Builder
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("context compilation interrupted", "remaining", src.Location, "error", err)
			break
		}

		raw, err := c.loader.Load(ctx, src.Location)
		if err != nil {
			c.skip(&b, src, classify(err), err)
			continue
		}

		block, err := c.Render(src.Label, raw)
		if err != nil {
			c.skip(&b, src, "malformed", err)
			continue
		}
		b.WriteString(block)
	}
	return b.String()
}

// Render formats a single in-memory document as a block.
func (c *Compiler) Render(label string, raw []byte) (string, error) {
	body, err := c.body(raw)
	if err != nil {
		return "", err
	}
	return block(label, body), nil
}

func (c *Compiler) body(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return "", ErrMalformed
	}
	if c.format == FormatPretty {
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return out.String(), nil
	}
	return flatten(raw)
}

func (c *Compiler) skip(b *strings.Builder, src Source, reason string, err error) {
	c.logger.Warn("skipping source document",
		"location", src.Location,
		"reason", reason,
		"error", err,
	)
	if c.policy == Placeholder {
		b.WriteString(block(src.Label, "[unavailable: "+reason+"]"))
	}
}

func block(label, body string) string {
	return label + ":\n" + body + "\n" + Separator + "\n"
}

func classify(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "not found"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unreadable"
	}
}

// FSLoader reads documents straight from a filesystem path.
type FSLoader struct {
	Fs afero.Fs
}

func (l FSLoader) Load(_ context.Context, location string) ([]byte, error) {
	return afero.ReadFile(l.Fs, location)
}
