package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQueryOffset(t *testing.T) {
	assert.Equal(t, 0, PageQuery{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 20, PageQuery{Page: 2, PageSize: 20}.Offset())
	assert.Equal(t, 10, PageQuery{Page: 3, PageSize: 5}.Offset())
}

func TestPaginate(t *testing.T) {
	q := PageQuery{Page: 2, PageSize: 3}

	t.Run("full page plus sentinel row", func(t *testing.T) {
		rows, p := Paginate([]int{1, 2, 3, 4}, q)
		assert.Equal(t, []int{1, 2, 3}, rows)
		assert.Equal(t, 2, p.Page)
		if assert.NotNil(t, p.NextPage) {
			assert.Equal(t, 3, *p.NextPage)
		}
	})

	t.Run("exactly one page", func(t *testing.T) {
		rows, p := Paginate([]int{1, 2, 3}, q)
		assert.Equal(t, []int{1, 2, 3}, rows)
		assert.Nil(t, p.NextPage)
	})

	t.Run("short page", func(t *testing.T) {
		rows, p := Paginate([]int{1}, q)
		assert.Equal(t, []int{1}, rows)
		assert.Nil(t, p.NextPage)
	})

	t.Run("empty", func(t *testing.T) {
		rows, p := Paginate([]int{}, q)
		assert.Empty(t, rows)
		assert.Nil(t, p.NextPage)
	})
}
