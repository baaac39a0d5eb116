package builtin_test

import (
	"testing"

	"github.com/effective-security/devassist/tools"
	"github.com/effective-security/devassist/tools/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg, err := builtin.Registry(builtin.Config{Root: "."})
	require.NoError(t, err)

	specs := reg.List()
	require.Len(t, specs, 3)
	assert.Equal(t, "search_repo", specs[0].Name)
	assert.Equal(t, "run_tests", specs[1].Name)
	assert.Equal(t, "generate_release_notes", specs[2].Name)

	desc := tools.GetDescriptions(specs...)
	assert.Contains(t, desc, "```json")
	assert.Contains(t, desc, `"Name": "search_repo"`)

	_, err = builtin.Registry(builtin.Config{Root: "./missing"})
	assert.Error(t, err)
}
