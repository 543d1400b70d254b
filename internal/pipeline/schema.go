package pipeline

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level blocks of a pipeline file.
type fileRoot struct {
	Pipelines []*pipelineBlock `hcl:"pipeline,block"`
	Simulator *simulatorBlock  `hcl:"simulator,block"`
}

// pipelineBlock is decoded in two passes: the label first, then the body
// with pipeline_name in scope.
type pipelineBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type pipelineBody struct {
	Nodes []*nodeBlock `hcl:"node,block"`
	Edges []*edgeBlock `hcl:"edge,block"`
}

type nodeBlock struct {
	ID         string         `hcl:"id,label"`
	Label      string         `hcl:"label"`
	Status     *string        `hcl:"status,optional"`
	LogMessage *string        `hcl:"log_message,optional"`
	Position   *positionBlock `hcl:"position,block"`
}

type positionBlock struct {
	X float64 `hcl:"x"`
	Y float64 `hcl:"y"`
}

type edgeBlock struct {
	ID     string `hcl:"id,label"`
	Source string `hcl:"source"`
	Target string `hcl:"target"`
}

type simulatorBlock struct {
	Interval    *string  `hcl:"interval,optional"`
	JitterMin   *string  `hcl:"jitter_min,optional"`
	JitterMax   *string  `hcl:"jitter_max,optional"`
	FailureRate *float64 `hcl:"failure_rate,optional"`
}
