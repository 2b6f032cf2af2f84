package pkgconfig

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixPointsAtModuleRoot(t *testing.T) {
	src, err := os.ReadFile("generate.go")
	require.NoError(t, err)

	prefixes := regexp.MustCompile(`--prefix "([^"]+)"`).FindAllStringSubmatch(string(src), -1)
	require.Len(t, prefixes, 4)

	for _, m := range prefixes {
		prefix := m[1]
		rel, ok := strings.CutPrefix(prefix, "$DOLLAR{pcfiledir}/")
		require.True(t, ok, prefix)

		checkout := filepath.Clean(rel)
		assert.Equal(t, "whisper.cpp", filepath.Base(checkout))
		assert.Equal(t, "thirdparty", filepath.Base(filepath.Dir(checkout)))

		_, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(checkout)), "go.mod"))
		assert.NoError(t, err, "%s does not resolve into the module root", prefix)
	}
}
