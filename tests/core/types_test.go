package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metacoglab/dreammem-go/pkg/core"
)

func TestCategory_Valid(t *testing.T) {
	assert.True(t, core.CategoryConversational.Valid())
	assert.True(t, core.CategoryConsolidated.Valid())
	assert.True(t, core.CategorySelfObservation.Valid())
	assert.True(t, core.CategoryExchange.Valid())

	assert.False(t, core.Category("").Valid())
	assert.False(t, core.Category("voluntary").Valid())
	assert.False(t, core.Category("Conversational").Valid())
}

func TestCategory_Writable(t *testing.T) {
	assert.True(t, core.CategoryConversational.Writable())
	assert.True(t, core.CategorySelfObservation.Writable())
	assert.True(t, core.CategoryExchange.Writable())

	// Consolidated records are produced only by consolidation cycles
	assert.False(t, core.CategoryConsolidated.Writable())
	assert.False(t, core.Category("unknown").Writable())
}

func TestToolDefinitions(t *testing.T) {
	defs := core.ToolDefinitions()
	assert.Len(t, defs, 2)

	names := map[string]core.ToolDefinition{}
	for _, def := range defs {
		names[def.Name] = def
	}
	assert.Contains(t, names, "search_memory")
	assert.Contains(t, names, "save_memory")

	// The save tool offers only the writable categories
	params := names["save_memory"].Parameters
	properties := params["properties"].(map[string]interface{})
	category := properties["category"].(map[string]interface{})
	enum := category["enum"].([]string)
	assert.ElementsMatch(t, []string{"conversational", "self-observation", "exchange"}, enum)

	// The search tool can filter by any category, consolidated included
	params = names["search_memory"].Parameters
	properties = params["properties"].(map[string]interface{})
	category = properties["category"].(map[string]interface{})
	enum = category["enum"].([]string)
	assert.ElementsMatch(t, []string{"conversational", "consolidated", "self-observation", "exchange"}, enum)
}
