// Package workflows embeds the BPMN processes the worker manager deploys.
package workflows

import (
	"embed"
	"fmt"
)

const (
	OrderSubmissionProcessID = "nbn-order-submission"
	DispatchProcessID        = "nbn-dispatch"
)

//go:embed *.bpmn
var definitions embed.FS

// Resource is one deployable BPMN file.
type Resource struct {
	Name       string
	Definition []byte
}

// Resources returns the order submission process and, when includeTimer is
// set, the timer-driven dispatch process.
func Resources(includeTimer bool) ([]Resource, error) {
	names := []string{OrderSubmissionProcessID + ".bpmn"}
	if includeTimer {
		names = append(names, DispatchProcessID+".bpmn")
	}

	out := make([]Resource, 0, len(names))
	for _, name := range names {
		data, err := definitions.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, Resource{Name: name, Definition: data})
	}
	return out, nil
}
