package main

import (
	"testing"

	"github.com/blockzip/blockzip/grid"
	"github.com/stretchr/testify/require"
)

func TestParseIndex3(t *testing.T) {
	got, err := parseIndex3("4x2x8")
	require.NoError(t, err)
	require.Equal(t, grid.Index3{X: 4, Y: 2, Z: 8}, got)

	_, err = parseIndex3("4x2")
	require.Error(t, err)

	_, err = parseIndex3("4xYx8")
	require.Error(t, err)
}

func TestAnalyticFieldDeterministic(t *testing.T) {
	block := grid.Block{GlobalID: 3, Index: grid.Index3{X: 1, Y: 0, Z: 2}, Edge: 4, Channels: 1}

	a := analyticField(block, 0, 1, 2, 3)
	b := analyticField(block, 0, 1, 2, 3)
	require.Equal(t, a, b)

	c := analyticField(block, 0, 2, 2, 3)
	require.NotEqual(t, a, c)
}
