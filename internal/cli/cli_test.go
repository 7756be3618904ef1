package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLICommands(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectedError  bool
	}{
		{
			name:           "help command",
			args:           []string{"--help"},
			expectedOutput: "EVM-compatible chains for arbitrage",
			expectedError:  false,
		},
		{
			name:           "version command",
			args:           []string{"--version"},
			expectedOutput: "1.0.0",
			expectedError:  false,
		},
		{
			name:           "run help",
			args:           []string{"run", "--help"},
			expectedOutput: "Run starts the arbitrage engine",
			expectedError:  false,
		},
		{
			name:           "stop help",
			args:           []string{"stop", "--help"},
			expectedOutput: "Stop a running arbitrage engine",
			expectedError:  false,
		},
		{
			name:           "status help",
			args:           []string{"status", "--help"},
			expectedOutput: "Check the current status",
			expectedError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCommand(tt.args...)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Contains(t, output, tt.expectedOutput)
			}
		})
	}
}

func TestStatusCommand(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	t.Run("offline status", func(t *testing.T) {
		output, err := executeCommand("status")
		assert.NoError(t, err)
		assert.Contains(t, output, "offline")
	})

	t.Run("online status", func(t *testing.T) {
		server := createMockAPIServer(t)
		defer server.Close()

		setupTestServerConfig(server.URL)

		output, err := executeCommand("status")
		assert.NoError(t, err)
		assert.Contains(t, output, "healthy")
	})

	t.Run("json output", func(t *testing.T) {
		server := createMockAPIServer(t)
		defer server.Close()

		setupTestServerConfig(server.URL)

		output, err := executeCommand("status", "--json")
		assert.NoError(t, err)
		assert.Contains(t, output, `"status": "healthy"`)
	})
}

func TestStopCommand(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	t.Run("stop non-existent process", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "test-arbd.pid")
		err := os.WriteFile(pidFile, []byte("99999"), 0644)
		require.NoError(t, err)

		output, err := executeCommand("stop", "--pid-file", pidFile)
		assert.Error(t, err)
		assert.Contains(t, output, "failed to signal process")
	})

	t.Run("stop with invalid PID file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "invalid-pid.pid")
		err := os.WriteFile(pidFile, []byte("invalid"), 0644)
		require.NoError(t, err)

		output, err := executeCommand("stop", "--pid-file", pidFile)
		assert.Error(t, err)
		assert.Contains(t, output, "invalid PID")
	})
}

func TestConfigurationFlags(t *testing.T) {
	setupTestEnvironment(t)
	defer cleanupTestEnvironment(t)

	configDir := t.TempDir()
	configFile := filepath.Join(configDir, "test-config.yaml")
	configContent := `
server:
  host: "test-host"
  port: 9999
`
	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Run("custom config file", func(t *testing.T) {
		output, err := executeCommand("--config", configFile, "status")
		assert.NoError(t, err)
		assert.NotEmpty(t, output)
	})

	t.Run("log level flag", func(t *testing.T) {
		output, err := executeCommand("--log-level", "debug", "status")
		assert.NoError(t, err)
		assert.NotEmpty(t, output)
	})
}

// Helper functions

func setupTestEnvironment(t *testing.T) {
	viper.Reset()

	viper.Set("server.host", "localhost")
	viper.Set("server.port", 8080)
}

func cleanupTestEnvironment(t *testing.T) {
	viper.Reset()
}

func executeCommand(args ...string) (string, error) {
	return executeCommandWithContext(context.Background(), args...)
}

func executeCommandWithContext(ctx context.Context, args ...string) (string, error) {
	buf := new(bytes.Buffer)

	testRootCmd := &cobra.Command{
		Use:     "arbd",
		Short:   rootCmd.Short,
		Long:    rootCmd.Long,
		Version: rootCmd.Version,
	}
	testRootCmd.PersistentFlags().AddFlagSet(rootCmd.PersistentFlags())

	// The subcommands are shared across executions; clear a --help left set
	// by an earlier run so the command body runs again.
	for _, sub := range []*cobra.Command{runCmd, stopCmd, statusCmd} {
		if f := sub.Flags().Lookup("help"); f != nil {
			_ = f.Value.Set("false")
		}
	}

	testRootCmd.AddCommand(runCmd)
	testRootCmd.AddCommand(stopCmd)
	testRootCmd.AddCommand(statusCmd)

	testRootCmd.SetOut(buf)
	testRootCmd.SetErr(buf)
	testRootCmd.SetArgs(args)

	if ctx != context.Background() {
		testRootCmd.SetContext(ctx)
	}

	err := testRootCmd.Execute()
	return buf.String(), err
}

func createMockAPIServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"healthy","uptime_seconds":42.5,"websocket_clients":3}`)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	})

	return httptest.NewServer(mux)
}

func setupTestServerConfig(serverURL string) {
	parts := strings.Split(strings.TrimPrefix(serverURL, "http://"), ":")
	if len(parts) == 2 {
		viper.Set("server.host", parts[0])
		if port := parts[1]; port != "" {
			viper.Set("server.port", port)
		}
	}
}

func BenchmarkStatusCommand(b *testing.B) {
	server := createMockAPIServer(&testing.T{})
	defer server.Close()
	setupTestServerConfig(server.URL)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := executeCommand("status")
		if err != nil {
			b.Fatalf("status command failed: %v", err)
		}
	}
}
