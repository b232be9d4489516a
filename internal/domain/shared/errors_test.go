package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("SERIES_EXHAUSTED", "Series F001 reached 99999999")

	assert.True(t, errors.Is(err, ErrSeriesExhausted))
	assert.False(t, errors.Is(err, ErrSeriesInactive))

	wrapped := fmt.Errorf("allocate: %w", err)
	assert.True(t, errors.Is(wrapped, ErrSeriesExhausted))
	assert.Equal(t, "Series F001 reached 99999999", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", CodeOf(fmt.Errorf("load: %w", ErrNotFound)))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestFilter_Offset(t *testing.T) {
	f := DefaultFilter()
	assert.Equal(t, 0, f.Offset())
	f.Page = 3
	assert.Equal(t, 40, f.Offset())

	f.PageSize = 10_000
	assert.Equal(t, maxPageSize, f.Limit())
	assert.Equal(t, 2*maxPageSize, f.Offset())

	assert.Zero(t, Filter{Page: 4}.Limit())
	assert.Zero(t, Filter{Page: 4}.Offset())
}
