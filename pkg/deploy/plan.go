// Package deploy implements the phased deployment coordinator: dependency
// layering, parallel per-phase execution, health gates, a JSON state journal
// and rollback on failure.
package deploy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nsure-ai/inquest/pkg/config"
)

// ErrDependencyCycle means the service graph cannot be layered. The
// deployment refuses to start.
var ErrDependencyCycle = errors.New("dependency cycle in service graph")

// ErrUnknownDependency means a service depends on a name no service declares.
var ErrUnknownDependency = errors.New("dependency on undeclared service")

// Plan computes deployment phases by repeated removal of services whose
// dependencies are already scheduled. Phase 0 holds the roots; each later
// phase depends only on earlier ones. Services within a phase are sorted for
// deterministic output.
func Plan(services []config.ServiceConfig) ([][]string, error) {
	remaining := make(map[string][]string, len(services))
	for _, svc := range services {
		remaining[svc.Name] = svc.DependsOn
	}
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if _, declared := remaining[dep]; !declared {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, svc.Name, dep)
			}
		}
	}

	scheduled := make(map[string]bool, len(services))
	var phases [][]string

	for len(remaining) > 0 {
		var phase []string
		for name, deps := range remaining {
			ready := true
			for _, dep := range deps {
				if !scheduled[dep] {
					ready = false
					break
				}
			}
			if ready {
				phase = append(phase, name)
			}
		}
		if len(phase) == 0 {
			stuck := make([]string, 0, len(remaining))
			for name := range remaining {
				stuck = append(stuck, name)
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("%w: %v", ErrDependencyCycle, stuck)
		}

		sort.Strings(phase)
		for _, name := range phase {
			scheduled[name] = true
			delete(remaining, name)
		}
		phases = append(phases, phase)
	}
	return phases, nil
}
