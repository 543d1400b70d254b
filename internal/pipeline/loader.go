// Package pipeline loads a workflow topology and simulator tuning from HCL.
//
// A pipeline is read from one file or from every .hcl file in a directory,
// merged into a single body. Together they hold exactly one `pipeline` block
// and an optional `simulator` block. Attribute expressions may call a small set of cty
// standard-library functions (upper, lower, title, format, join, trimspace)
// and, inside the pipeline block, reference the variable pipeline_name.
package pipeline

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowdash/internal/ctxlog"
	"github.com/vk/flowdash/internal/fsutil"
	"github.com/vk/flowdash/internal/simulator"
	"github.com/vk/flowdash/internal/workflow"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

//go:embed default.hcl
var defaultSource []byte

// DefaultFilename is the name reported in diagnostics for the built-in pipeline.
const DefaultFilename = "default.hcl"

// Definition is a loaded pipeline.
type Definition struct {
	Name      string
	Graph     workflow.Graph
	Simulator simulator.Config
}

// Load reads and decodes the pipeline at path, which is either a file or a
// directory of .hcl files.
func Load(ctx context.Context, path string) (*Definition, error) {
	paths, err := fsutil.FindFiles(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %s", path)
	}

	sources := make([]source, 0, len(paths))
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipeline file %s: %w", p, err)
		}
		sources = append(sources, source{name: p, data: src})
	}
	return parse(ctx, path, sources)
}

// Default returns the built-in five-stage validation pipeline.
func Default(ctx context.Context) (*Definition, error) {
	return Parse(ctx, defaultSource, DefaultFilename)
}

// Parse decodes HCL source into a validated Definition.
func Parse(ctx context.Context, src []byte, filename string) (*Definition, error) {
	return parse(ctx, filename, []source{{name: filename, data: src}})
}

type source struct {
	name string
	data []byte
}

func parse(ctx context.Context, label string, sources []source) (*Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing pipeline definition.", "source", label, "files", len(sources))

	parser := hclparse.NewParser()
	files := make([]*hcl.File, 0, len(sources))
	for _, src := range sources {
		file, diags := parser.ParseHCL(src.data, src.name)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse pipeline file %s: %w", src.name, diags)
		}
		files = append(files, file)
	}
	body := hcl.MergeFiles(files)

	var root fileRoot
	if diags := gohcl.DecodeBody(body, evalContext(nil), &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", label, diags)
	}
	switch len(root.Pipelines) {
	case 0:
		return nil, fmt.Errorf("pipeline file %s: no pipeline block found", label)
	case 1:
	default:
		return nil, fmt.Errorf("pipeline file %s: expected one pipeline block, found %d", label, len(root.Pipelines))
	}

	block := root.Pipelines[0]
	var pb pipelineBody
	vars := map[string]cty.Value{"pipeline_name": cty.StringVal(block.Name)}
	if diags := gohcl.DecodeBody(block.Body, evalContext(vars), &pb); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode pipeline %q: %w", block.Name, diags)
	}

	graph, err := translateGraph(&pb)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", block.Name, err)
	}
	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", block.Name, err)
	}

	simCfg, err := translateSimulator(root.Simulator)
	if err != nil {
		return nil, fmt.Errorf("pipeline file %s: %w", label, err)
	}

	logger.Debug("Pipeline definition loaded.", "pipeline", block.Name, "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return &Definition{Name: block.Name, Graph: graph, Simulator: simCfg}, nil
}

func translateGraph(body *pipelineBody) (workflow.Graph, error) {
	g := workflow.Graph{
		Nodes: make([]workflow.Node, 0, len(body.Nodes)),
		Edges: make([]workflow.Edge, 0, len(body.Edges)),
	}
	for _, nb := range body.Nodes {
		n := workflow.Node{ID: nb.ID, Label: nb.Label, Status: workflow.StatusIdle}
		if nb.Status != nil {
			status, err := workflow.ParseStatus(*nb.Status)
			if err != nil {
				return workflow.Graph{}, fmt.Errorf("node %q: %w", nb.ID, err)
			}
			n.Status = status
		}
		if nb.LogMessage != nil {
			n.LogMessage = *nb.LogMessage
		}
		if nb.Position != nil {
			n.Position = workflow.Position{X: nb.Position.X, Y: nb.Position.Y}
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, eb := range body.Edges {
		g.Edges = append(g.Edges, workflow.Edge{ID: eb.ID, Source: eb.Source, Target: eb.Target})
	}
	return g, nil
}

func translateSimulator(b *simulatorBlock) (simulator.Config, error) {
	cfg := simulator.DefaultConfig()
	if b == nil {
		return cfg, nil
	}

	durations := []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"interval", b.Interval, &cfg.Interval},
		{"jitter_min", b.JitterMin, &cfg.JitterMin},
		{"jitter_max", b.JitterMax, &cfg.JitterMax},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return simulator.Config{}, fmt.Errorf("simulator %s: %w", d.name, err)
		}
		*d.dst = v
	}
	if b.FailureRate != nil {
		cfg.FailureRate = *b.FailureRate
	}
	if err := cfg.Validate(); err != nil {
		return simulator.Config{}, err
	}
	return cfg, nil
}

func evalContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: vars,
		Functions: map[string]function.Function{
			"upper":     stdlib.UpperFunc,
			"lower":     stdlib.LowerFunc,
			"title":     stdlib.TitleFunc,
			"format":    stdlib.FormatFunc,
			"join":      stdlib.JoinFunc,
			"trimspace": stdlib.TrimSpaceFunc,
		},
	}
}
