package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, sha, bt := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = v, sha, bt }()

	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-10-01"
	assert.Equal(t, "rover-bridge 1.2.0 (abc123, built 2026-10-01)", String())
}
