package plugin

import (
	"sort"
	"strings"

	"github.com/finbridge/finbridge/errors"
)

// sortByDependencies orders names so every plugin follows its declared
// dependencies (Kahn's algorithm). Ties break lexicographically so the
// order is deterministic. Dependencies naming plugins outside the input set
// are ignored here; the per-plugin dependency check reports them at
// initialize time. A cycle fails the whole sort.
func sortByDependencies(names []string, deps func(string) []string) ([]string, error) {
	inSet := make(map[string]bool, len(names))
	for _, n := range names {
		inSet[n] = true
	}

	// indegree counts unmet dependencies; dependents is the reverse edge map.
	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, n := range names {
		indegree[n] = 0
	}
	for _, n := range names {
		for _, d := range deps(n) {
			if !inSet[d] || d == n {
				continue
			}
			indegree[n]++
			dependents[d] = append(dependents[d], n)
		}
	}

	ready := make([]string, 0, len(names))
	for _, n := range names {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		released := false
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(names) {
		var cyclic []string
		for _, n := range names {
			if indegree[n] > 0 {
				cyclic = append(cyclic, n)
			}
		}
		sort.Strings(cyclic)
		return nil, errors.Wrapf(errors.ErrPluginDependency,
			"dependency cycle among plugins: %s", strings.Join(cyclic, ", "))
	}
	return order, nil
}
