package perfmap

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFormatsHexStartSizeAndSymbol(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, 0xDEADBEEF, 0x40, "scene0"))
	assert.Equal(t, "deadbeef 40 scene0\n", buf.String())
}

func TestWriteAppendsOneLinePerCall(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, 0x1000, 0x10, "a"))
	require.NoError(t, Write(&buf, 0x2000, 0x20, "b"))
	assert.Equal(t, "1000 10 a\n2000 20 b\n", buf.String())
}

func TestPathUsesCurrentPID(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("/tmp/perf-%d.map", os.Getpid()), Path())
}

func TestWriteFileAppendsToConventionalPath(t *testing.T) {
	path := Path()
	defer os.Remove(path)

	require.NoError(t, WriteFile(0x1000, 0x20, "scene0"))
	require.NoError(t, WriteFile(0x2000, 0x30, "scene1"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1000 20 scene0\n2000 30 scene1\n", string(data))
}
