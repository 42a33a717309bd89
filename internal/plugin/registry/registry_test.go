package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexusshell/nexusshell/internal/plugin/metadata"
	"github.com/nexusshell/nexusshell/internal/plugin/registry"
)

func metadataWithVersion(version string) metadata.Metadata {
	return metadata.Metadata{Name: "example", Version: version, Dependencies: map[string]string{}}
}

func writeWasm(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := append([]byte("\x00asm\x01\x00\x00\x00"), []byte("padding-bytes")...)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestDiscoverFindsWasmFilesAndRegistersVersions(t *testing.T) {
	dir := t.TempDir()
	writeWasm(t, dir, "sample.wasm")

	reg, err := registry.New(64)
	require.NoError(t, err)

	result := registry.Discover([]string{dir}, registry.DefaultValidationConfig(), reg)
	require.Len(t, result.Discovered, 1)
	require.Empty(t, result.Failed)

	versions, ok := reg.Versions("sample")
	require.True(t, ok)
	require.Len(t, versions, 1)
	require.Equal(t, "0.1.0", versions[0].Version.String())
}

func TestDiscoverSkipsDisallowedExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	reg, err := registry.New(64)
	require.NoError(t, err)
	result := registry.Discover([]string{dir}, registry.DefaultValidationConfig(), reg)
	require.Empty(t, result.Discovered)
}

func TestDiscoverSkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeWasm(t, dir, "big.wasm")

	reg, err := registry.New(64)
	require.NoError(t, err)
	cfg := registry.DefaultValidationConfig()
	cfg.MaxFileSize = 1
	result := registry.Discover([]string{dir}, cfg, reg)
	require.Empty(t, result.Discovered)
}

func TestDiscoverCachesRepeatedContentHash(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	writeWasm(t, dir1, "dup.wasm")
	writeWasm(t, dir2, "dup.wasm")

	reg, err := registry.New(64)
	require.NoError(t, err)
	result := registry.Discover([]string{dir1, dir2}, registry.DefaultValidationConfig(), reg)
	require.Len(t, result.Discovered, 2)
	require.Equal(t, result.Discovered[0].FileHash, result.Discovered[1].FileHash)
}

func TestVersionsSortedAscending(t *testing.T) {
	reg, err := registry.New(64)
	require.NoError(t, err)

	for _, v := range []string{"2.0.0", "1.0.0", "1.5.0"} {
		err := reg.AddVersion(registry.DiscoveredPlugin{
			FilePath: "/x.wasm",
			Metadata: metadataWithVersion(v),
			FileHash: v,
		})
		require.NoError(t, err)
	}

	versions, ok := reg.Versions("example")
	require.True(t, ok)
	require.Equal(t, "1.0.0", versions[0].Version.String())
	require.Equal(t, "1.5.0", versions[1].Version.String())
	require.Equal(t, "2.0.0", versions[2].Version.String())
}

func TestAliasResolvesToCanonicalID(t *testing.T) {
	reg, err := registry.New(64)
	require.NoError(t, err)
	require.NoError(t, reg.AddVersion(registry.DiscoveredPlugin{
		FilePath: "/x.wasm",
		Metadata: metadataWithVersion("1.0.0"),
	}))
	reg.Alias("ex", "example")

	versions, ok := reg.Versions("ex")
	require.True(t, ok)
	require.Len(t, versions, 1)
}
