package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		kind ErrorKind
	}{
		{"validation", NewValidationError("username required"), ErrValidation, KindValidation},
		{"auth", NewAuthError(ReasonRevoked), ErrAuthentication, KindAuthentication},
		{"rate limit", NewRateLimitError(), ErrRateLimited, KindRateLimit},
		{"storage", NewStorageError(errors.New("db down")), ErrStorage, KindStorage},
		{"internal", NewInternalError(errors.New("boom")), ErrInternal, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.want)
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestError_DoesNotMatchOtherKinds(t *testing.T) {
	err := NewAuthError(ReasonExpired)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "", ReasonOf(errors.New("plain")))
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, ReasonFingerprintMismatch, ReasonOf(NewAuthError(ReasonFingerprintMismatch)))
}

func TestStorageError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStorageError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
