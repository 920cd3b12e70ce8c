// Package workflow defines workflow drafts, structural validation and the
// in-memory runtime that tracks execution lifecycle state. The runtime only
// models lifecycle transitions; it does not execute workflow steps.
package workflow

import "time"

// Node is a single step definition inside a draft.
type Node struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Label        string   `json:"label"`
	EntryActions []string `json:"entryActions"`
	ExitActions  []string `json:"exitActions"`
}

// Transition connects a source node to a target node.
type Transition struct {
	ID         string   `json:"id"`
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	Trigger    string   `json:"trigger,omitempty"`
	Validators []string `json:"validators"`
}

// DraftContent is the editable graph of a draft.
type DraftContent struct {
	Nodes       []Node       `json:"nodes"`
	Transitions []Transition `json:"transitions"`
}

// Normalize replaces nil slices with empty ones so callers can range and
// serialize without nil checks.
func (c DraftContent) Normalize() DraftContent {
	if c.Nodes == nil {
		c.Nodes = []Node{}
	}
	if c.Transitions == nil {
		c.Transitions = []Transition{}
	}
	return c
}

// Draft is a versioned workflow definition. Version starts at 1 and is
// incremented by the draft store on every content-affecting update.
type Draft struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Nodes       []Node       `json:"nodes"`
	Transitions []Transition `json:"transitions"`
}
