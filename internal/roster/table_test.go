// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableInsertGetRemove(t *testing.T) {
	table := NewTable()
	r := New("author-1", nil)
	r.SetPublicKey(validKey("a"))
	table.Insert(r)

	got := table.Get(r.PublicKey)
	require.NotNil(t, got)
	assert.Equal(t, "author-1", got.Author)

	table.Remove(r.PublicKey)
	assert.Nil(t, table.Get(r.PublicKey))
}

func TestTableRemoveAbsentKeyIsNoop(t *testing.T) {
	table := NewTable()
	assert.NotPanics(t, func() {
		table.Remove("does-not-exist")
	})
}

func TestTableInsertReplacesPriorSessionUnderSameKey(t *testing.T) {
	table := NewTable()
	key := validKey("a")

	first := New("author-1", nil)
	first.SetPublicKey(key)
	table.Insert(first)

	second := New("author-2", nil)
	second.SetPublicKey(key)
	table.Insert(second)

	require.Equal(t, 1, table.Len())
	assert.Equal(t, "author-2", table.Get(key).Author)
}

func TestTableKeysSnapshot(t *testing.T) {
	table := NewTable()
	for _, suffix := range []string{"a", "b", "c"} {
		r := New("author-"+suffix, nil)
		r.SetPublicKey(validKey(suffix))
		table.Insert(r)
	}
	assert.Len(t, table.Keys(), 3)
}
