package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneKeepsCodeForErrorsIs(t *testing.T) {
	cloned := Clone(ErrUpstreamGateway, "gateway said no")
	wrapped := fmt.Errorf("create checkout: %w", cloned)
	assert.True(t, stdErrors.Is(wrapped, ErrUpstreamGateway))
	assert.False(t, stdErrors.Is(wrapped, ErrValidation))
	assert.Equal(t, "gateway said no", cloned.Message)
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	detailed := WithDetails(ErrUpstreamGateway, map[string]interface{}{"upstream_status": 400})
	assert.Equal(t, 400, detailed.Details["upstream_status"])
	assert.Nil(t, ErrUpstreamGateway.Details)
}
