package scan

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/vectorium"
	"github.com/go-lynx/vectorium/cmd/vectorium/internal/base"
	"github.com/go-lynx/vectorium/conf"
)

func TestPrintBuiltin(t *testing.T) {
	cfg := conf.Default()
	cfg.AutoScan = false
	cfg.EnabledPlugins = []string{"NumberLogger"}
	l := base.BuiltinLoader(cfg.PluginDirectory)
	m := vectorium.NewPluginManager(vectorium.ManagerOptions{
		Loader:     l,
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), conf.FileName),
	})
	t.Cleanup(func() { _ = m.Shutdown() })
	_, err := m.Scan("")
	require.NoError(t, err)

	var plain bytes.Buffer
	require.NoError(t, Print(&plain, m, l, false))
	lines := strings.Split(strings.TrimSpace(plain.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ENABLED")
	assert.Contains(t, lines[1], "MarketData")
	assert.Contains(t, lines[3], "NumberLogger")
	assert.Contains(t, lines[3], "true")

	var detailed bytes.Buffer
	require.NoError(t, Print(&detailed, m, l, true))
	assert.Contains(t, detailed.String(), "RestClient")
	assert.Contains(t, detailed.String(), "0.2.0")
	assert.Empty(t, m.LoadedNames(), "inspecting does not load anything")
}
