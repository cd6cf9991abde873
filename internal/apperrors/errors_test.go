// internal/apperrors/errors_test.go
package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := Persistence("failed to record purchase", cause)

	wrapped := fmt.Errorf("purchase flow: %w", err)

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindPersistence))
	assert.False(t, Is(wrapped, KindConflict))
	assert.True(t, errors.Is(wrapped, cause))
}

func TestKindOfUnclassifiedError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "already purchased", MessageOf(Conflict("already purchased")))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
	assert.Equal(t, "", MessageOf(nil))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "conflict: already purchased", Conflict("already purchased").Error())

	err := Wrap(KindPayment, "payment declined", errors.New("card_declined"))
	assert.Equal(t, "payment: payment declined: card_declined", err.Error())
}
