package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var (
	colorMagenta = lipgloss.Color("#C678DD")
	colorBlue    = lipgloss.Color("#61AFEF")
	colorGreen   = lipgloss.Color("#98C379")
	colorMuted   = lipgloss.Color("#636B78")

	titleStyle  = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	agentStyle  = lipgloss.NewStyle().Foreground(colorBlue)
	promptStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	replyStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1)
)

func isExit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

func runREPL(ctx context.Context, a *app, sessionID string) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	fmt.Println(titleStyle.Render("conductor"))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("session %s  |  %d agents  |  type exit to quit", sessionID, len(a.orch.AgentNames()))))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExit(line) {
			return
		}

		reply := a.orch.ProcessRequest(ctx, line, sessionID)
		fmt.Println(replyStyle.Render(reply))
		fmt.Println()

		if ctx.Err() != nil {
			return
		}
	}
}
