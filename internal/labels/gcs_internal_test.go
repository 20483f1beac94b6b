package labels

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestBuildURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/labels/1001/shipping_label_ups_1Z%20A.pdf",
		buildURL(defaultPublicURL, "labels", "1001/shipping_label_ups_1Z A.pdf"))
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusPreconditionFailed}))
	assert.True(t, isPreconditionFailed(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusPreconditionFailed})))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isPreconditionFailed(errors.New("network")))
}
