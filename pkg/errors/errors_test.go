package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeAndStatus(t *testing.T) {
	clone := Clone(ErrTooManyFiles, "The maximum number of files per admission is 20.")
	require.Equal(t, ErrTooManyFiles.Code, clone.Code)
	require.Equal(t, http.StatusBadRequest, clone.Status)
	require.NotEqual(t, ErrTooManyFiles.Message, clone.Message)
}

func TestIsMatchesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("change state: %w", Clone(ErrForbiddenTransition, "Draft -> Validated"))
	require.True(t, Is(err, ErrForbiddenTransition))
	require.False(t, Is(err, ErrUnknownState))
	require.False(t, Is(nil, ErrUnknownState))
}

func TestFromErrorNormalisesPlainErrors(t *testing.T) {
	e := FromError(fmt.Errorf("boom"))
	require.Equal(t, ErrInternal.Code, e.Code)
	require.Equal(t, http.StatusInternalServerError, e.Status)
}

func TestFieldErrorNamesTheField(t *testing.T) {
	e := FieldError("postal_code", "9999 is not a Belgian postal code")
	require.True(t, Is(e, ErrValidation))
	require.Equal(t, "9999 is not a Belgian postal code", e.Fields["postal_code"])
	require.Nil(t, ErrValidation.Fields)
}
