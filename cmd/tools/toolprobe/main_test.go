package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-desk/backend/internal/service/search"
)

func TestFindTool(t *testing.T) {
	p := &probe{tools: search.NewToolset(search.Config{})}

	tool, err := p.findTool("arxiv")
	require.NoError(t, err)
	assert.Equal(t, search.ArxivLookup, tool.Kind())

	_, err = p.findTool("bing")
	assert.ErrorContains(t, err, "web_search, arxiv, wikipedia")
}

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"tool", "ask"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
