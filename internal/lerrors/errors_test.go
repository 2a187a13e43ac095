package lerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_UnwrapsToCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(cause, KindIO, SeverityError, "read content")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "io (error): read content: disk on fire")
}

func TestIsKind_SeesThroughWrapping(t *testing.T) {
	inner := New(KindTemplate, SeverityError, "boom")
	outer := fmt.Errorf("while rendering: %w", inner)
	assert.True(t, IsKind(outer, KindTemplate))
	assert.False(t, IsKind(outer, KindConfig))
	assert.Equal(t, KindTemplate, GetKind(outer))
}

func TestGetKind_DefaultsToInternal(t *testing.T) {
	assert.Equal(t, KindInternal, GetKind(errors.New("plain")))
}

func TestIsFatal(t *testing.T) {
	require.True(t, IsFatal(New(KindConfig, SeverityFatal, "bad toml")))
	assert.False(t, IsFatal(New(KindConfig, SeverityError, "bad value")))
}

func TestWithRoute(t *testing.T) {
	err := Newf(KindLink, "target %s missing", "/x/").WithRoute("/page/")
	assert.Equal(t, "/page/", err.Route)
}
