package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/runtrace/runtrace/internal/config"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/tui/app"
	"github.com/runtrace/runtrace/internal/tui/client"
)

func main() {
	wsURL := flag.String("url", "ws://127.0.0.1:8080/ws", "WebSocket URL of the runtrace daemon")
	token := flag.String("token", "", "Auth token (defaults to server.auth_token from -config)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	exportDir := flag.String("export-dir", ".", "Directory exports are saved to")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *token == "" {
		*token = cfg.Server.AuthToken
	}

	ws := client.NewWSClient(*wsURL, *token)
	httpClient := client.NewHTTPClient(deriveHTTPBase(*wsURL), *token)

	m := app.New(ws, httpClient, app.Options{
		GoalM:     geo.MilesToMeters(cfg.TUI.GoalMiles),
		ExportDir: *exportDir,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deriveHTTPBase converts ws://host:port/ws to http://host:port.
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
