package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ServeIsDefault(t *testing.T) {
	tests := map[string]struct {
		args       []string
		wantConfig string
	}{
		"bare root":        {nil, ""},
		"root with config": {[]string{"-c", "custom.yaml"}, "custom.yaml"},
		"serve":            {[]string{"serve"}, ""},
		"serve with flag":  {[]string{"serve", "--config", "prod.yaml"}, "prod.yaml"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var calls int
			var gotConfig string
			cmd := newRootCmd(func(configPath string) error {
				calls++
				gotConfig = configPath
				return nil
			})
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.wantConfig, gotConfig)
		})
	}
}

func TestRootCmd_MigrateDoesNotServe(t *testing.T) {
	var calls int
	cmd := newRootCmd(func(string) error {
		calls++
		return nil
	})
	cmd.SetArgs([]string{"migrate"})

	require.NoError(t, cmd.Execute())
	assert.Zero(t, calls)
}
