package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew/multidoc-chat/pkg/models"
)

type fakeSearcher struct {
	results  []models.SearchResult
	err      error
	gotLimit int
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	f.gotLimit = limit
	return f.results, f.err
}

func zeroEmbed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 4), nil
}

func TestRetrieveContext_LabelsChunksWithSources(t *testing.T) {
	store := &fakeSearcher{results: []models.SearchResult{
		{Content: "The sky is blue.", Source: "sky.txt", Score: 0.9},
		{Content: "Grass is green.", Source: "grass.txt", Score: 0.4},
	}}

	got, err := retrieveContext(context.Background(), zeroEmbed, store, "What color is the sky?", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, store.gotLimit)
	assert.Contains(t, got, "# SOURCE: sky.txt")
	assert.Contains(t, got, "The sky is blue.")
	assert.Contains(t, got, "# SOURCE: grass.txt")
	// Result order is preserved.
	assert.Less(t, strings.Index(got, "sky.txt"), strings.Index(got, "grass.txt"))
}

func TestRetrieveContext_EmptyCollection(t *testing.T) {
	got, err := retrieveContext(context.Background(), zeroEmbed, &fakeSearcher{}, "Anything?", 5)
	require.NoError(t, err)
	assert.Equal(t, "No relevant information found.", got)
}

func TestRetrieveContext_EmbedFailure(t *testing.T) {
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("backend down")
	}
	_, err := retrieveContext(context.Background(), embed, &fakeSearcher{}, "Anything?", 5)
	require.ErrorContains(t, err, "backend down")
}

func TestRetrieveContext_SearchFailure(t *testing.T) {
	store := &fakeSearcher{err: errors.New("collection missing")}
	_, err := retrieveContext(context.Background(), zeroEmbed, store, "Anything?", 5)
	require.ErrorContains(t, err, "collection missing")
}
