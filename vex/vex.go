// Package vex reads and writes OpenVEX documents and adapts their
// statements into the minimal shape the policy package needs for
// suppression.
package vex

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bazbom/bazbom/policy"
)

// Status is an OpenVEX statement status.
type Status string

const (
	StatusNotAffected       Status = "not_affected"
	StatusAffected          Status = "affected"
	StatusFixed             Status = "fixed"
	StatusUnderInvestigation Status = "under_investigation"
)

// Statement is one OpenVEX statement.
type Statement struct {
	VulnerabilityID  string   `json:"vulnerability"`
	Products         []string `json:"products,omitempty"`
	Status           Status   `json:"status"`
	Justification    string   `json:"justification,omitempty"`
	ImpactStatement  string   `json:"impact_statement,omitempty"`
}

// Document is an OpenVEX document.
type Document struct {
	Context    string      `json:"@context"`
	ID         string      `json:"@id"`
	Author     string      `json:"author"`
	Timestamp  time.Time   `json:"timestamp"`
	Version    int         `json:"version"`
	Statements []Statement `json:"statements"`
}

const defaultContext = "https://openvex.dev/ns/v0.2.0"

// New creates an empty Document with the given author and id, ready to have
// Statements appended.
func New(id, author string) Document {
	return Document{Context: defaultContext, ID: id, Author: author, Version: 1}
}

// Decode parses an OpenVEX JSON document.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("vex: decode: %w", err)
	}
	return doc, nil
}

// Encode writes doc as OpenVEX JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("vex: encode: %w", err)
	}
	return nil
}

// Applicability converts every Statement in doc into the
// policy.VEXApplicability shape Evaluate consumes.
func (d Document) Applicability() []policy.VEXApplicability {
	out := make([]policy.VEXApplicability, 0, len(d.Statements))
	for _, s := range d.Statements {
		out = append(out, policy.VEXApplicability{
			VulnerabilityID: s.VulnerabilityID,
			Products:        s.Products,
			Status:          string(s.Status),
		})
	}
	return out
}
