package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check arbitrage engine status",
	Long:  `Check the current status of a running engine by querying its /health endpoint.`,
	RunE:  runStatus,
}

var (
	jsonOutput    bool
	watchMode     bool
	watchInterval time.Duration
)

// EngineStatus mirrors the JSON body served by internal/httpapi's /health
// endpoint.
type EngineStatus struct {
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	WebsocketClients int     `json:"websocket_clients"`
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")
	statusCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "watch mode (continuous updates)")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "watch interval duration")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if watchMode {
		return runWatchStatus()
	}

	status, err := getEngineStatus()
	if err != nil {
		return fmt.Errorf("failed to get engine status: %w", err)
	}

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), status)
	}

	return outputFormatted(cmd.OutOrStdout(), status)
}

func runWatchStatus() error {
	fmt.Printf("Watching arbitrage engine status (interval: %v)\n", watchInterval)
	fmt.Println("Press Ctrl+C to stop watching...")
	fmt.Println()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	if err := showCurrentStatus(); err != nil {
		return err
	}

	for range ticker.C {
		fmt.Print("\033[H\033[2J")
		if err := showCurrentStatus(); err != nil {
			return err
		}
	}
	return nil
}

func showCurrentStatus() error {
	status, err := getEngineStatus()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return nil
	}

	return outputFormatted(os.Stdout, status)
}

func getEngineStatus() (*EngineStatus, error) {
	apiHost := viper.GetString("server.host")
	if apiHost == "" {
		apiHost = "localhost"
	}
	apiPort := viper.GetInt("server.port")
	if apiPort == 0 {
		apiPort = 8080
	}

	url := fmt.Sprintf("http://%s:%d/health", apiHost, apiPort)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return &EngineStatus{Status: "offline"}, nil
	}
	defer resp.Body.Close()

	var status EngineStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}

func outputJSON(w io.Writer, status *EngineStatus) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}

func outputFormatted(w io.Writer, status *EngineStatus) error {
	fmt.Fprintf(w, "Arbitrage Engine Status\n")
	fmt.Fprintf(w, "=======================\n\n")

	statusIcon := "down"
	if status.Status == "healthy" {
		statusIcon = "up"
	}

	fmt.Fprintf(w, "Status:            %s (%s)\n", statusIcon, status.Status)
	if status.Status == "healthy" {
		fmt.Fprintf(w, "Uptime:            %.0fs\n", status.UptimeSeconds)
		fmt.Fprintf(w, "Websocket clients: %d\n", status.WebsocketClients)
	}

	return nil
}
