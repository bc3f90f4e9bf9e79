package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailgoat/mailgoat/internal/cli"
	"github.com/mailgoat/mailgoat/internal/client"
	"github.com/mailgoat/mailgoat/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		require.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		require.NotNil(t, root)
		assert.Equal(t, "mailgoat", root.Use)
	})
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "generic error", err: errors.New("boom"), want: 1},
		{name: "auth", err: &client.Error{Kind: client.KindAuth, Message: "bad key"}, want: client.ExitAuth},
		{name: "client", err: &client.Error{Kind: client.KindClient, Message: "bad request"}, want: client.ExitClient},
		{name: "rate limit", err: &client.Error{Kind: client.KindRateLimit, Message: "throttled"}, want: client.ExitRateLimit},
		{name: "server", err: &client.Error{Kind: client.KindServer, Message: "boom"}, want: client.ExitServer},
		{name: "network", err: &client.Error{Kind: client.KindNetwork, Message: "refused"}, want: client.ExitNetwork},
		{name: "circuit open", err: &client.Error{Kind: client.KindCircuitOpen, Message: "open"}, want: client.ExitCircuitOpen},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("sending: %w", &client.Error{Kind: client.KindAuth, Message: "bad key"}),
			want: client.ExitAuth,
		},
		{
			name: "batch abort",
			err:  &cli.BatchAbortError{Reason: "state store failed"},
			want: client.ExitBatchAbort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}
