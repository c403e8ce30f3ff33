package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcore/internal/core/apperror"
	"medcore/internal/core/id"
	"medcore/internal/core/tenant"
)

func newDraft() *Document {
	return &Document{BaseEntity: NewBaseEntity(tenant.New(id.New(), "tester")), Status: StatusDraft}
}

func TestDocument_Lifecycle(t *testing.T) {
	d := newDraft()
	require.NoError(t, d.CanModify())

	require.NoError(t, d.TransitionTo(StatusPosted))
	assert.NotNil(t, d.PostedAt)
	assert.Equal(t, 1, d.Version, "version is advanced by the repository")
	assert.True(t, apperror.Is(d.CanModify(), apperror.CodeDocumentPosted))

	err := d.TransitionTo(StatusPosted)
	assert.True(t, apperror.Is(err, apperror.CodeDocumentPosted))

	require.NoError(t, d.TransitionTo(StatusPaid))
	assert.True(t, d.IsPosted())
}

func TestDocument_NoSkippedStates(t *testing.T) {
	d := newDraft()
	assert.True(t, apperror.Is(d.TransitionTo(StatusPaid), apperror.CodeInvalidTransition))

	require.NoError(t, d.TransitionTo(StatusVoid))
	assert.True(t, apperror.Is(d.TransitionTo(StatusPosted), apperror.CodeInvalidTransition))
	assert.True(t, apperror.Is(d.CanModify(), apperror.CodeInvalidTransition))

	posted := newDraft()
	require.NoError(t, posted.TransitionTo(StatusPosted))
	assert.True(t, apperror.Is(posted.TransitionTo(StatusVoid), apperror.CodeInvalidTransition))
}
