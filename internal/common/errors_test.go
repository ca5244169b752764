package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_MessageAndCode(t *testing.T) {
	cause := errors.New("exit status 1")
	err := ExternalCallErrorf("Error extracting text from PDF: %w", cause)

	assert.Equal(t, "Error extracting text from PDF: exit status 1", err.Error())
	assert.Equal(t, CodeExternalCall, CodeOf(err))
	assert.ErrorIs(t, err, ErrExternalCall)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrIO)
}

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("stage sink: %w", IOErrorf("Failed to write to file: denied"))
	assert.Equal(t, CodeIO, CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Field("model", " ", Required).
		Field("maxTokens", 0, AtLeast(1)).
		Field("temperature", 0.5, Between(0, 1)).
		Field("format", "md", OneOf("txt", "md"))
	assert.Len(t, v.Errors(), 2)
	assert.ErrorIs(t, v.Err(), ErrConfiguration)

	assert.NoError(t, NewValidator().Field("model", "llama3", Required).Err())
}

func TestEnsureRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	assert.NotEmpty(t, id)
	_, again := EnsureRunID(ctx)
	assert.Equal(t, id, again)
	assert.Equal(t, "sink", StageFromContext(WithStage(ctx, "sink")))
}
