package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/sd-card/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Load()
	cfg.Image = filepath.Join(t.TempDir(), "card.img")
	cfg.Kind = "sdsc"
	cfg.Sectors = 2048
	cfg.Device = ""
	return cfg
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	root := newRootCmd(cfg)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInfoCreatesImage(t *testing.T) {
	cfg := testConfig(t)

	out, err := run(t, cfg, "info", "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "Capacity: SDSC")
	assert.Contains(t, out, "GO_IDLE_STATE")

	st, err := os.Stat(cfg.Image)
	require.NoError(t, err)
	assert.EqualValues(t, 2048*512, st.Size())
}

func TestWriteThenRead(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "payload")
	payload := append(bytes.Repeat([]byte{0xA5}, 512), []byte("hello")...)
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	out, err := run(t, cfg, "write", "10", src)
	require.NoError(t, err)
	assert.Contains(t, out, "2 sector(s)")

	// Each command brings the card up again over the same image.
	raw := filepath.Join(t.TempDir(), "raw")
	_, err = run(t, cfg, "read", "10", "2", "--out", raw)
	require.NoError(t, err)

	got, err := os.ReadFile(raw)
	require.NoError(t, err)
	require.Len(t, got, 1024)
	assert.Equal(t, payload, got[:len(payload)])
	assert.Equal(t, make([]byte, 1024-len(payload)), got[len(payload):])

	out, err = run(t, cfg, "read", "11")
	require.NoError(t, err)
	assert.Contains(t, out, "sector 11")
	assert.Contains(t, out, "68 65 6c 6c 6f")
}

func TestReadPastEnd(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "read", "0x100000")
	assert.Error(t, err)
}

func TestShellOneShot(t *testing.T) {
	cfg := testConfig(t)
	_, err := run(t, cfg, "shell", "poke", "1000", "cafe")
	require.NoError(t, err)

	out, err := run(t, cfg, "read", "1", "--out", filepath.Join(t.TempDir(), "s1"))
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(cfg.Image)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE}, data[1000:1002])
}

func TestNoSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Image = ""
	_, err := run(t, cfg, "info")
	assert.ErrorContains(t, err, "no card source")
}
