package main

import (
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gkactivo/relaychat/internal/client"
	"github.com/gkactivo/relaychat/internal/config"
)

func main() {
	cfg := config.LoadClientConfig()

	model := client.NewApp(cfg)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		log.Fatalf("client exited: %v", err)
	}
}
