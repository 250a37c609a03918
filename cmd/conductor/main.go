package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bowerhall/conductor/internal/config"
	"github.com/bowerhall/conductor/internal/logger"
)

var version = "dev"

func init() {
	godotenv.Load()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		serveCmd(os.Args[2:])
		return
	}

	query := flag.String("q", "", "run a single query and exit")
	sessionID := flag.String("s", "", "session id (default: a new one)")
	verbose := flag.Bool("v", false, "debug logging")
	listAgents := flag.Bool("list-agents", false, "list agents and exit")
	flag.Usage = usage
	flag.Parse()

	logger.SetDebug(*verbose)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := mustBuild(ctx, cfg)
	defer a.Close()

	switch {
	case *listAgents:
		printAgents(a.orch.ListAgents())
	case *query != "":
		fmt.Println(a.orch.ProcessRequest(ctx, *query, *sessionID))
	default:
		runREPL(ctx, a, *sessionID)
	}
}

func printAgents(agents map[string][]string) {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println(titleStyle.Render("Available agents"))
	for _, name := range names {
		fmt.Printf("  %s  %s\n", agentStyle.Render(name), mutedStyle.Render(strings.Join(agents[name], ", ")))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `conductor %s

Usage:
  conductor [-q query] [-s session] [-v] [-list-agents]
  conductor serve [-http] [-mcp] [-bots]

Flags:
`, version)
	flag.PrintDefaults()
}
