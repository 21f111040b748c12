// Package pipeline wires pattern recognition, device allocation, ladder
// construction, IL compilation and validation into a single call. One
// Pipeline is built at startup and shared by every front end.
package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/openmelsec/laddergen/internal/compiler"
	"github.com/openmelsec/laddergen/internal/device"
	"github.com/openmelsec/laddergen/internal/il"
	"github.com/openmelsec/laddergen/internal/ladder"
	"github.com/openmelsec/laddergen/internal/pattern"
	"github.com/openmelsec/laddergen/internal/types"
	"github.com/openmelsec/laddergen/internal/validate"
)

//go:embed schema/timing-spec-v1.json
var timingSpecSchemaJSON string

// Result is everything one generation run produces. On validation
// failure the Result is still populated so callers can show the partial
// program next to the report.
type Result struct {
	RunID        string           `json:"run_id"`
	Program      ladder.Program   `json:"-"`
	Instructions il.Sequence      `json:"-"`
	Report       validate.Report  `json:"validation"`
	Matches      []*pattern.Match `json:"patterns"`
	DeviceMap    device.Map       `json:"device_map"`
	ILText       string           `json:"il_program"`
}

// Pipeline turns timing specifications into validated IL programs.
// Stateless between calls; safe for concurrent use.
type Pipeline struct {
	cfg    device.Config
	lib    *pattern.Library
	comp   *compiler.Compiler
	val    *validate.Validator
	schema *jsonschema.Schema
	logger *zap.Logger
}

// New builds a Pipeline around the given device configuration. The
// input schema is compiled once here.
func New(cfg device.Config, logger *zap.Logger, opts ...pattern.Option) (*Pipeline, error) {
	sc := jsonschema.NewCompiler()
	if err := sc.AddResource("timing-spec-v1.json",
		strings.NewReader(timingSpecSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := sc.Compile("timing-spec-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		lib:    pattern.NewLibrary(opts...),
		comp:   compiler.New(),
		val:    validate.New(),
		schema: schema,
		logger: logger,
	}, nil
}

// ValidateSpec checks raw JSON against the timing-spec schema without
// running the pipeline.
func (p *Pipeline) ValidateSpec(raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// GenerateJSON validates raw JSON against the schema, parses it and
// runs Generate.
func (p *Pipeline) GenerateJSON(raw []byte) (*Result, error) {
	if err := p.ValidateSpec(raw); err != nil {
		return nil, err
	}
	var spec types.TimingSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse specification: %w", err)
	}
	return p.Generate(spec)
}

// Generate runs the full pipeline: partition events into patterns, bind
// devices, build the ladder, compile to IL and validate. A validation
// failure returns the populated Result together with a StructuralError.
func (p *Pipeline) Generate(spec types.TimingSpec) (*Result, error) {
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("generation started",
		zap.Int("inputs", len(spec.Inputs)),
		zap.Int("outputs", len(spec.Outputs)),
		zap.Int("events", len(spec.Events)))

	matches, err := p.lib.Partition(spec)
	if err != nil {
		log.Warn("pattern partitioning failed", zap.Error(err))
		return nil, err
	}
	for _, m := range matches {
		log.Debug("pattern matched",
			zap.String("kind", m.Kind),
			zap.Float64("confidence", m.Confidence),
			zap.Ints("events", m.Events))
	}

	alloc := device.NewAllocator(p.cfg)
	builder := ladder.NewBuilder(spec.Description)
	ctx := pattern.NewContext(spec, alloc, builder)
	if err := p.lib.Apply(matches, ctx); err != nil {
		log.Warn("pattern binding failed", zap.Error(err))
		return nil, err
	}

	devmap := alloc.Map()
	program := builder.Build(devmap)
	seq, err := p.comp.Compile(program)
	if err != nil {
		log.Error("compilation failed", zap.Error(err))
		return nil, err
	}

	report := p.val.Validate(seq, devmap)
	result := &Result{
		RunID:        runID,
		Program:      program,
		Instructions: seq,
		Report:       report,
		Matches:      matches,
		DeviceMap:    devmap,
		ILText:       seq.Text(),
	}
	if !report.Valid {
		log.Error("validation failed",
			zap.Int("violations", len(report.Errors)))
		return result, &validate.StructuralError{Report: report}
	}

	log.Info("generation finished",
		zap.Int("rungs", len(program.Rungs)),
		zap.Int("instructions", seq.Len()),
		zap.Int("devices", len(devmap.Allocations)),
		zap.Int("warnings", len(report.Warnings)))
	return result, nil
}

// Analyze runs pattern detection only, without allocating devices or
// emitting any program.
func (p *Pipeline) Analyze(spec types.TimingSpec) (pattern.Analysis, error) {
	return p.lib.Analyze(spec)
}

// AnalyzeJSON validates raw JSON against the schema, parses it and runs
// Analyze.
func (p *Pipeline) AnalyzeJSON(raw []byte) (pattern.Analysis, error) {
	if err := p.ValidateSpec(raw); err != nil {
		return pattern.Analysis{}, err
	}
	var spec types.TimingSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return pattern.Analysis{}, fmt.Errorf("failed to parse specification: %w", err)
	}
	return p.Analyze(spec)
}
