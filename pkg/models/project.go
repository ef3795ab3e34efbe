// Package models defines the core domain models for node-based workflow execution.
package models

import "time"

// Project is a user-owned workflow definition: a canvas of nodes and edges
// plus the global variables the graph resolves against.
type Project struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"        validate:"required,min=1"`
	IsSystem        bool              `json:"is_system"`
	TemplateID      string            `json:"template_id,omitempty"` // Factory-reset source, empty for ad-hoc projects
	CanvasData      CanvasData        `json:"canvas_data"`
	GlobalVariables []*GlobalVariable `json:"global_variables,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CanvasData is the persisted graph: nodes, edges and the results of the
// last run. Viewport is layout-only and never inspected by the engine.
type CanvasData struct {
	Nodes            []*Node        `json:"nodes"`
	Edges            []*Edge        `json:"edges"`
	ExecutionResults map[string]any `json:"execution_results,omitempty"`
	Viewport         *Viewport      `json:"viewport,omitempty"`
}

// Viewport stores the last canvas pan/zoom. Irrelevant to execution.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Variable returns the project's global variable by name, or nil.
func (p *Project) Variable(name string) *GlobalVariable {
	for _, v := range p.GlobalVariables {
		if v.Name == name {
			return v
		}
	}

	return nil
}

// VariableSnapshot freezes the current global variables into a plain map.
// Runs resolve against the snapshot, never against the live project.
func (p *Project) VariableSnapshot() map[string]string {
	snapshot := make(map[string]string, len(p.GlobalVariables))
	for _, v := range p.GlobalVariables {
		snapshot[v.Name] = v.Value
	}

	return snapshot
}
