// Package plan loads workout plan templates.
//
// A plan is a list of days; each day is a list of steps (exercises) with a
// set count and an optional rest. Plans are written in CUE or YAML, or
// arrive as records of the cached splits collection. Every source is
// validated against the same embedded CUE schema before it can drive a
// session.
package plan

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/liftsync/internal/workout"
)

//go:embed schema.cue
var schemaSource string

// ErrDayNotFound is returned when a plan has no day with the requested id.
var ErrDayNotFound = errors.New("plan day not found")

// Plan is a validated plan template.
type Plan struct {
	ID     string        `json:"id"`
	Name   string        `json:"name,omitempty"`
	UserID string        `json:"userId,omitempty"`
	Days   []workout.Day `json:"days"`
}

// Day returns the day with the given id. An empty id selects the only day
// of a single-day plan.
func (p *Plan) Day(id string) (workout.Day, error) {
	if id == "" && len(p.Days) == 1 {
		return p.Days[0], nil
	}
	for _, d := range p.Days {
		if d.ID == id {
			return d, nil
		}
	}
	return workout.Day{}, fmt.Errorf("%w: %q in plan %s", ErrDayNotFound, id, p.ID)
}

// LoadFile reads a plan from a .cue, .yaml, .yml or .json file.
func LoadFile(path string) (*Plan, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(src, filepath.Base(path))
	case ".yaml", ".yml":
		return ParseYAML(src)
	case ".json":
		return ParseJSON(src)
	default:
		return nil, fmt.Errorf("unsupported plan format %q", filepath.Ext(path))
	}
}

// ParseCUE compiles src and validates its top-level "plan" field.
func ParseCUE(src []byte, filename string) (*Plan, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	pv := v.LookupPath(cue.ParsePath("plan"))
	if !pv.Exists() {
		return nil, errors.New("plan: missing top-level \"plan\" field")
	}
	return decode(ctx, pv)
}

// ParseYAML decodes a YAML plan document.
func ParseYAML(src []byte) (*Plan, error) {
	var doc any
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml plan: %w", err)
	}
	ctx := cuecontext.New()
	return decode(ctx, ctx.Encode(doc))
}

// ParseJSON decodes a JSON plan, the shape of a splits collection record.
func ParseJSON(src []byte) (*Plan, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename("plan.json"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return decode(ctx, v)
}

// decode unifies v with the schema, requires it to be concrete, and
// decodes it into a Plan.
func decode(ctx *cue.Context, v cue.Value) (*Plan, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("plan schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Plan")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var p Plan
	if err := unified.Decode(&p); err != nil {
		return nil, formatCUEError(err)
	}
	for _, d := range p.Days {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func formatCUEError(err error) error {
	return fmt.Errorf("invalid plan: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
}
