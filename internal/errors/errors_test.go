package errors_test

import (
	"fmt"
	"testing"

	medErrors "github.com/jrsteele09/go-medscan-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestRequestFailedMatchesNotFoundOnly(t *testing.T) {
	notFound := fmt.Errorf("lookup: %w", &medErrors.RequestFailedError{StatusCode: 404, Message: "Medicine not found"})
	require.True(t, medErrors.IsNotFound(notFound))
	require.Equal(t, 404, medErrors.StatusCode(notFound))
	require.EqualError(t, notFound, "lookup: request failed with status 404: Medicine not found")

	serverErr := &medErrors.RequestFailedError{StatusCode: 500, Message: "boom"}
	require.False(t, medErrors.IsNotFound(serverErr))
	require.Zero(t, medErrors.StatusCode(medErrors.ErrNetwork))
}

func TestWrapf(t *testing.T) {
	require.NoError(t, medErrors.Wrapf(nil, "context"))

	err := medErrors.Wrapf(medErrors.ErrAuthRequired, "load %s", "session")
	require.EqualError(t, err, "load session: authentication required")
	require.True(t, medErrors.Is(err, medErrors.ErrAuthRequired))
}
