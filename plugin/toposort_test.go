package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/errors"
)

func depsFrom(m map[string][]string) func(string) []string {
	return func(name string) []string { return m[name] }
}

func TestSortByDependenciesLinear(t *testing.T) {
	order, err := sortByDependencies(
		[]string{"c", "a", "b"},
		depsFrom(map[string][]string{"c": {"b"}, "b": {"a"}}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSortByDependenciesDeterministicTies(t *testing.T) {
	// No edges: pure lexicographic order.
	order, err := sortByDependencies([]string{"z", "m", "a"}, depsFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, order)
}

func TestSortByDependenciesIgnoresExternal(t *testing.T) {
	// "b" depends on a plugin outside the set; the sort proceeds and the
	// dependency check reports it at initialize time instead.
	order, err := sortByDependencies(
		[]string{"a", "b"},
		depsFrom(map[string][]string{"b": {"elsewhere"}}),
	)
	require.NoError(t, err)
	assert.Len(t, order, 2)
}

func TestSortByDependenciesCycle(t *testing.T) {
	_, err := sortByDependencies(
		[]string{"a", "b", "c"},
		depsFrom(map[string][]string{"a": {"b"}, "b": {"a"}}),
	)
	require.Error(t, err)
	assert.True(t, errors.IsPluginDependency(err))
	assert.Contains(t, err.Error(), "a, b")
}

func TestSortByDependenciesSelfEdgeIgnored(t *testing.T) {
	order, err := sortByDependencies(
		[]string{"a"},
		depsFrom(map[string][]string{"a": {"a"}}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, order)
}
