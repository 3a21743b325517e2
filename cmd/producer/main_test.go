package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
)

func TestRootCmd_UnsupportedProtocolIsConfigError(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--protocol", "udp"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "DATASENTINEL_PROTOCOL", cfgErr.Field)
}

func TestRootCmd_EnvErrorSurfaces(t *testing.T) {
	t.Setenv("ENGINE_PORT", "not-a-port")
	cmd := newRootCmd()
	cmd.SetArgs(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "parse env")
	var cfgErr *config.Error
	assert.True(t, errors.As(err, &cfgErr), "env errors exit like other config errors")
}

func TestRootCmd_CooldownFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--connect-cooldown", "5s", "--retry-cooldown", "250ms"}))
	connect, err := cmd.Flags().GetDuration("connect-cooldown")
	require.NoError(t, err)
	retry, err := cmd.Flags().GetDuration("retry-cooldown")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, connect)
	assert.Equal(t, 250*time.Millisecond, retry)
}

func TestRootCmd_ZeroCooldownFlagIsConfigError(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--retry-cooldown", "0s"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	var cfgErr *config.Error
	require.True(t, errors.As(cmd.Execute(), &cfgErr))
	assert.Equal(t, "PRODUCER_RETRY_COOLDOWN", cfgErr.Field)
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "producer version dev\n", out.String())
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.Default()
	cfg.LogLevel = "error"
	assert.NoError(t, run(ctx, cfg))
}
