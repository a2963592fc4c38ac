package version_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/redblack/pkg/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	line := version.String()
	assert.Contains(t, line, "redblack "+version.Version)
	assert.Contains(t, line, runtime.GOOS)
}
