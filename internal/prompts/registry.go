// Package prompts holds the fixed instruction text and worked examples sent
// to the model. Everything is read once at startup and never modified.
package prompts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/hugh/go-assess/internal/database/models"
	"gopkg.in/yaml.v3"
)

const catalogFile = "catalog.yaml"

//go:embed assets
var embedded embed.FS

var ErrIncompleteCatalog = errors.New("prompt catalog is incomplete")

type catalog struct {
	Version int    `yaml:"version"`
	Persona string `yaml:"persona"`
	Report  struct {
		Core   string            `yaml:"core"`
		Output map[string]string `yaml:"output"`
	} `yaml:"report"`
	Risk     string            `yaml:"risk"`
	Examples map[string]string `yaml:"examples"`
}

var requiredExamples = []string{
	"report_context",
	"report_output_json",
	"report_output_latex",
	"risk_input",
	"risk_existing",
	"risk_output",
}

type Registry struct {
	persona  string
	report   map[models.ReportFormat]string
	risk     string
	examples map[string]string
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	sub, err := fs.Sub(embedded, "assets")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Open loads from dir when set, falling back to the embedded catalog.
func Open(dir string) (*Registry, error) {
	if dir == "" {
		return Default()
	}
	return Load(os.DirFS(dir))
}

// Load reads catalog.yaml and every example it references from fsys.
func Load(fsys fs.FS) (*Registry, error) {
	raw, err := fs.ReadFile(fsys, catalogFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", catalogFile, err)
	}

	var cat catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", catalogFile, err)
	}

	if strings.TrimSpace(cat.Report.Core) == "" || strings.TrimSpace(cat.Risk) == "" {
		return nil, fmt.Errorf("%w: report.core and risk are required", ErrIncompleteCatalog)
	}

	r := &Registry{
		persona:  strings.TrimSpace(cat.Persona),
		report:   make(map[models.ReportFormat]string),
		risk:     strings.TrimSpace(cat.Risk),
		examples: make(map[string]string, len(requiredExamples)),
	}

	for _, f := range []models.ReportFormat{models.ReportFormatJSON, models.ReportFormatLaTeX} {
		out := strings.TrimSpace(cat.Report.Output[string(f)])
		if out == "" {
			return nil, fmt.Errorf("%w: report.output.%s is required", ErrIncompleteCatalog, f)
		}
		r.report[f] = strings.TrimSpace(cat.Report.Core) + "\n\n" + out
	}

	for _, name := range requiredExamples {
		rel, ok := cat.Examples[name]
		if !ok || rel == "" {
			return nil, fmt.Errorf("%w: example %q is not declared", ErrIncompleteCatalog, name)
		}
		body, err := fs.ReadFile(fsys, rel)
		if err != nil {
			return nil, fmt.Errorf("reading example %q: %w", name, err)
		}
		if path.Ext(rel) == ".json" && !json.Valid(body) {
			return nil, fmt.Errorf("example %q (%s) is not valid JSON", name, rel)
		}
		r.examples[name] = strings.TrimSpace(string(body))
	}

	return r, nil
}

// Example joins a worked input/output pair into the block appended to a
// generation request.
func Example(input, output string) string {
	return "Example:\n" + input + "\n\n" + output
}

func (r *Registry) DefaultPersona() string {
	return r.persona
}

// ReportInstructions returns the stage-one instructions for the requested
// payload format. Unknown formats get the JSON contract.
func (r *Registry) ReportInstructions(format models.ReportFormat) string {
	if s, ok := r.report[format]; ok {
		return s
	}
	return r.report[models.ReportFormatJSON]
}

func (r *Registry) RiskInstructions() string {
	return r.risk
}

func (r *Registry) ReportExample(format models.ReportFormat) string {
	output := r.examples["report_output_json"]
	if format == models.ReportFormatLaTeX {
		output = r.examples["report_output_latex"]
	}
	return Example(r.examples["report_context"], output)
}

// RiskExample shows a report, the risks already on file and the expected
// new-risk list, which deliberately leaves out the existing one.
func (r *Registry) RiskExample() string {
	input := r.examples["risk_input"] + "\n\nExample current risks: " + r.examples["risk_existing"]
	return Example(input, r.examples["risk_output"])
}
