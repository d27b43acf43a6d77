package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowgraph/types"
)

func conditionalDefinition() *WorkflowDefinition {
	def := NewWorkflowDefinition("routing", "routes on a flag")
	def.EntryTaskID = "fetch"
	def.Variables = map[string]any{"threshold": 5}
	def.AddTask(&Task{
		ID:           "fetch",
		Name:         "Fetch",
		Type:         TaskTypeSequential,
		HandlerRef:   "fetcher",
		InputMapping: map[string]string{"query": "search_query"},
		OutputKey:    "fetched",
		Successors:   []string{"route"},
		MaxRetries:   2,
	})
	def.AddTask(&Task{
		ID:         "route",
		Name:       "Route",
		Type:       TaskTypeConditional,
		Condition:  "${fetched.count} > ${threshold}",
		Successors: []string{"many", "few"},
	})
	def.AddTask(&Task{ID: "many", Name: "Many", Type: TaskTypeSequential, HandlerRef: "fetcher"})
	def.AddTask(&Task{ID: "few", Name: "Few", Type: TaskTypeSequential, HandlerRef: "fetcher"})
	return def
}

func TestDefinition_JSONRoundTrip(t *testing.T) {
	def := conditionalDefinition()

	data, err := def.ToJSON()
	require.NoError(t, err)

	parsed, err := DefinitionFromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, def.ID, parsed.ID)
	assert.Equal(t, def.Name, parsed.Name)
	assert.Equal(t, def.EntryTaskID, parsed.EntryTaskID)
	assert.Equal(t, def.TaskCount(), parsed.TaskCount())

	route, ok := parsed.GetTask("route")
	require.True(t, ok)
	assert.Equal(t, TaskTypeConditional, route.Type)
	assert.Equal(t, "${fetched.count} > ${threshold}", route.Condition)
	assert.Equal(t, []string{"many", "few"}, route.Successors)

	fetch, ok := parsed.GetTask("fetch")
	require.True(t, ok)
	assert.Equal(t, 2, fetch.MaxRetries)
	assert.Equal(t, map[string]string{"query": "search_query"}, fetch.InputMapping)
}

func TestDefinition_YAMLRoundTrip(t *testing.T) {
	def := conditionalDefinition()

	data, err := def.ToYAML()
	require.NoError(t, err)

	parsed, err := DefinitionFromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, def.ID, parsed.ID)
	assert.Equal(t, def.TaskCount(), parsed.TaskCount())
}

func TestDefinitionFromJSON_Invalid(t *testing.T) {
	_, err := DefinitionFromJSON([]byte("{not json"))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrDefinition))
}

func TestDefinitionFromJSON_ValidatesStructure(t *testing.T) {
	// 结构合法但语义非法：入口任务不存在
	_, err := DefinitionFromJSON([]byte(`{"id":"wf","entry_task_id":"ghost","tasks":{"a":{"id":"a","type":"sequential","handler_ref":"h"}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry task")
}

func TestLoadAndSaveDefinitionFile(t *testing.T) {
	dir := t.TempDir()
	def := conditionalDefinition()

	for _, ext := range []string{".json", ".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "wf"+ext)
			require.NoError(t, SaveDefinitionFile(def, path))

			loaded, err := LoadDefinitionFile(path)
			require.NoError(t, err)
			assert.Equal(t, def.ID, loaded.ID)
			assert.Equal(t, def.TaskCount(), loaded.TaskCount())
		})
	}
}

func TestLoadDefinitionFile_Errors(t *testing.T) {
	_, err := LoadDefinitionFile("/no/such/file.json")
	assert.Error(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "wf.toml")
	require.NoError(t, os.WriteFile(path, []byte("id = 'wf'"), 0o644))

	_, err = LoadDefinitionFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported definition format")

	err = SaveDefinitionFile(conditionalDefinition(), filepath.Join(dir, "wf.xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported definition format")
}
