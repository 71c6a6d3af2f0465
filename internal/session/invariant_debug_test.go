//go:build debug

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/sounding-edit-service/internal/domain"
)

func TestDragStart_IndexOutOfRangePanics(t *testing.T) {
	s := loadedSession(t)
	assert.Panics(t, func() { _, _ = s.DragStart(domain.Temperature, 99) })
	assert.Panics(t, func() { _, _ = s.DragStart(domain.Dewpoint, -1) })
}
