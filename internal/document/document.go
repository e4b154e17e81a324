// Package document stores projects as YAML.
//
// A document is a flat list of tagged records. Every record has a type, a
// subtype where the type has variants, a small integer id unique in the
// document and, except for the project and resources, the id of its
// parent. Items of one parent appear in insertion order. Parent and
// resource references are resolved only after every record is built, so
// records may refer forward.
//
// Variables are stored as attributes holding a list of keyed entries, each
// tagged value or expression:
//
//	start_time:
//	  - {type: value, time: 0, time_type: LINEAR, value: 2}
//	x:
//	  - {type: expression, time: 0, time_type: LINEAR, expr: ["*", "time", 10]}
package document

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/npillmayer/schuko/tracing"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/kinema/internal/engine"
)

// tracer traces with key 'kinema.document'
func tracer() tracing.Trace {
	return tracing.Select("kinema.document")
}

var (
	// ErrUnresolved is returned for a reference to an id no record has.
	ErrUnresolved = errors.New("unresolved reference")
	// ErrUnknownType is returned for a record type or subtype that has no
	// constructor.
	ErrUnknownType = errors.New("unknown record type")
)

// Version is written to every document.
const Version = "1"

// Record types.
const (
	TypeProject    = "project"
	TypeClip       = "clip"
	TypeEffect     = "effect"
	TypeResource   = "resource"
	TypeValue      = "value"
	TypeExpression = "expression"
)

// instructionPrefix marks effect records that are Draw instructions.
const instructionPrefix = "draw."

type Record struct {
	Type    string         `yaml:"type"`
	Subtype string         `yaml:"subtype,omitempty"`
	ID      int            `yaml:"id"`
	Parent  *int           `yaml:"parent,omitempty"`
	Attrs   map[string]any `yaml:"attrs,omitempty"`
}

type Document struct {
	Version string   `yaml:"version"`
	Records []Record `yaml:"records"`
}

// Save writes p to w.
func Save(w io.Writer, p *engine.Project) error {
	doc, err := Encode(p)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return enc.Close()
}

// Load reads a project from r.
func Load(r io.Reader) (*engine.Project, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return Decode(&doc)
}

func SaveFile(path string, p *engine.Project) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Save(f, p); err != nil {
		f.Close()
		return err
	}
	tracer().Infof("[+++] project saved: %s", path)
	return f.Close()
}

func LoadFile(path string) (*engine.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
