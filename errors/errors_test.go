package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelWrapping(t *testing.T) {
	err := Wrap(ErrPluginDependency, "plugin bigcapital")
	assert.True(t, Is(err, ErrPluginDependency))
	assert.True(t, IsPluginDependency(err))
	assert.False(t, IsPluginNotFound(err))
}

func TestIsIntegration(t *testing.T) {
	assert.True(t, IsIntegration(Wrap(ErrSync, "invoice 42")))
	assert.True(t, IsIntegration(ErrExternalService))
	assert.True(t, IsIntegration(ErrIntegration))
	assert.False(t, IsIntegration(ErrValidation))
	assert.False(t, IsIntegration(nil))
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "", ErrorType(nil))
	assert.Equal(t, "plugin_not_found", ErrorType(NewPluginNotFound("no manifest for %s", "ocr")))
	assert.Equal(t, "sync", ErrorType(NewSync("invoice %d", 7)))
	assert.Equal(t, "integration", ErrorType(Wrap(ErrIntegration, "bigcapital")))
	assert.Equal(t, "error", ErrorType(New("unclassified")))
}

func TestNewPluginLoadKeepsSentinel(t *testing.T) {
	err := NewPluginLoad("no factory registered for %q", "paperless")
	assert.True(t, Is(err, ErrPluginLoad))
	assert.Contains(t, err.Error(), "paperless")
}
