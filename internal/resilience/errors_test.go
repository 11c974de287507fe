package resilience

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(eris.New("overloaded"), 529), true},
		{"wrapped transient", fmt.Errorf("extract: %w", NewTransientError(eris.New("busy"), 503)), true},
		{"regular error", eris.New("invalid listing payload"), false},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection aborted", syscall.ECONNABORTED, true},
		{"net timeout", timeoutErr{}, true},
		{"reset fragment", eris.New("read tcp: connection reset by peer"), true},
		{"broken pipe fragment", eris.New("write: broken pipe"), true},
		{"dns fragment", eris.New("dial: no such host"), true},
		{"tls fragment", eris.New("net/http: TLS handshake timeout"), true},
		{"io timeout fragment", eris.New("read: i/o timeout"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_MessageAndUnwrap(t *testing.T) {
	inner := eris.New("rate limited")
	te := NewTransientError(inner, 429)

	assert.Equal(t, "rate limited", te.Error())
	assert.Equal(t, 429, te.StatusCode)
	require.ErrorIs(t, te, inner)
}
