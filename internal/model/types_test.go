package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToKnowledgeBaseMintsID(t *testing.T) {
	t.Parallel()

	in := NewKnowledgeBase{
		Key:       "red",
		Value:     "of the colour of fresh blood",
		Notes:     "to know about color red",
		Kind:      "concepts",
		Reference: "oxford",
		Tags:      []string{"concept", "color"},
	}
	got := in.ToKnowledgeBase()

	_, err := uuid.Parse(got.ID.String())
	require.NoError(t, err)
	assert.True(t, got.Found())
	assert.Equal(t, in.Key, got.Key)
	assert.Equal(t, in.Value, got.Value)
	assert.Equal(t, in.Notes, got.Notes)
	assert.Equal(t, in.Kind, got.Kind)
	assert.Equal(t, in.Reference, got.Reference)
	assert.Equal(t, in.Tags, got.Tags)

	other := in.ToKnowledgeBase()
	assert.NotEqual(t, got.ID, other.ID)
}

func TestPageDefaults(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		filter     KBQueryFilter
		wantLimit  int
		wantOffset int
	}{
		{name: "unset", filter: KBQueryFilter{}, wantLimit: DefaultPageLimit},
		{name: "zero means unbounded", filter: KBQueryFilter{Limit: Limit(0)}, wantLimit: 0},
		{name: "explicit", filter: KBQueryFilter{Limit: Limit(10), Offset: 3}, wantLimit: 10, wantOffset: 3},
		{name: "negative values", filter: KBQueryFilter{Limit: Limit(-1), Offset: -4}, wantLimit: DefaultPageLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantLimit, tc.filter.PageLimit())
			assert.Equal(t, tc.wantOffset, tc.filter.PageOffset())
		})
	}
}

func TestEmptySearchResult(t *testing.T) {
	t.Parallel()

	got := EmptySearchResult(KBQueryFilter{Offset: 2})
	assert.NotNil(t, got.Items)
	assert.Empty(t, got.Items)
	assert.Zero(t, got.Total)
	assert.Equal(t, DefaultPageLimit, got.Limit)
	assert.Equal(t, 2, got.Offset)
}

func TestItemDropsPayload(t *testing.T) {
	t.Parallel()

	kb := KnowledgeBase{ID: "1", Key: "k", Value: "v", Notes: "n", Kind: "c", Reference: "r", Tags: []string{"a"}}
	assert.Equal(t, KBItem{ID: "1", Key: "k", Kind: "c", Tags: []string{"a"}}, kb.Item())
}
