package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugh/go-assess/internal/generation"
)

var ErrInvalidFinding = errors.New("risk list entry is incomplete")

func str(desc string) *generation.Schema {
	return &generation.Schema{Type: generation.TypeString, Description: desc}
}

// Schema describes the risk list the model must return.
func Schema() *generation.Schema {
	resource := &generation.Schema{
		Type: generation.TypeObject,
		Properties: map[string]*generation.Schema{
			"type":        str("youtube or website"),
			"url":         str("Public link explaining the fix."),
			"description": str("What the link covers."),
		},
		Required: []string{"type", "url"},
	}

	finding := &generation.Schema{
		Type: generation.TypeObject,
		Properties: map[string]*generation.Schema{
			"risk_name": str("A concise, descriptive name for the risk."),
			"overview":  str("What the risk is, its impact and how it was identified."),
			"severity":  str("Critical, High, Medium, Low or Info."),
			"affected_elements": {
				Type:        generation.TypeArray,
				Description: "IP addresses, ports, domains or controls affected by this risk.",
				Items:       &generation.Schema{Type: generation.TypeString},
			},
			"recommendations": {
				Type:        generation.TypeObject,
				Description: "How to mitigate the risk.",
				Properties: map[string]*generation.Schema{
					"easy_fix":      str("A quick, immediate mitigation step."),
					"long_term_fix": str("A durable, structural fix."),
					"resources": {
						Type:  generation.TypeArray,
						Items: resource,
					},
				},
				Required: []string{"easy_fix", "long_term_fix"},
			},
		},
		PropertyOrdering: []string{"risk_name", "overview", "severity", "affected_elements", "recommendations"},
		Required:         []string{"risk_name", "overview", "severity", "affected_elements", "recommendations"},
	}

	return &generation.Schema{
		Type: generation.TypeObject,
		Properties: map[string]*generation.Schema{
			ListKey: {
				Type:        generation.TypeArray,
				Description: "New cybersecurity risks identified in the report.",
				Items:       finding,
			},
		},
		Required: []string{ListKey},
	}
}

// Contract accepts a risk list whose entries all parse and carry a name,
// an overview, a non-empty affected_elements list and an easy fix.
func Contract() generation.Contract {
	return generation.SchemaContract{
		Label:    "risk-list",
		Shape:    Schema(),
		Validate: validateList,
	}
}

func validateList(doc map[string]json.RawMessage) error {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(doc[ListKey], &entries); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFinding, err)
	}
	var findings []Finding
	if err := json.Unmarshal(doc[ListKey], &findings); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFinding, err)
	}
	for i, f := range findings {
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: entry %d has no risk_name", ErrInvalidFinding, i)
		case f.Overview == "":
			return fmt.Errorf("%w: %q has no overview", ErrInvalidFinding, f.Name)
		case !isList(entries[i]["affected_elements"]):
			return fmt.Errorf("%w: %q has no affected_elements list", ErrInvalidFinding, f.Name)
		case len(f.AffectedElements) == 0:
			return fmt.Errorf("%w: %q lists no affected elements", ErrInvalidFinding, f.Name)
		case f.Recommendations.EasyFix == "":
			return fmt.Errorf("%w: %q has no easy_fix", ErrInvalidFinding, f.Name)
		}
	}
	return nil
}

func isList(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
