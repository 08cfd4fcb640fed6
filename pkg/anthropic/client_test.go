package anthropic

import (
	"net/http"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-env/wastestream/internal/resilience"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "tool_use", Text: ""},
		{Type: "text", Text: "first"},
		{Type: "text", Text: "second"},
	}}
	assert.Equal(t, "first", resp.Text())

	empty := &MessageResponse{}
	assert.Equal(t, "", empty.Text())
}

// apiError builds an SDK error the way the transport layer would, with the
// request and response populated so its Error() method is callable.
func apiError(t *testing.T, status int) *sdk.Error {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	require.NoError(t, err)
	return &sdk.Error{
		StatusCode: status,
		Request:    req,
		Response:   &http.Response{StatusCode: status, Request: req},
	}
}

func TestClassifyErr_TransientAPIStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusInternalServerError, 529} {
		cause := apiError(t, status)
		err := classifyErr(eris.Wrap(cause, "anthropic: create message"), cause)
		assert.True(t, resilience.IsTransient(err), "status %d should be transient", status)
	}
}

func TestClassifyErr_PermanentAPIStatus(t *testing.T) {
	cause := apiError(t, http.StatusBadRequest)
	err := classifyErr(eris.Wrap(cause, "anthropic: create message"), cause)
	assert.False(t, resilience.IsTransient(err))
}

func TestClassifyErr_PlainError(t *testing.T) {
	cause := eris.New("boom")
	err := classifyErr(eris.Wrap(cause, "anthropic: create message"), cause)
	assert.False(t, resilience.IsTransient(err))
}
