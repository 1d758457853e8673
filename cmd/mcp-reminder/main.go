// Command mcp-reminder provides an MCP server for reminder management.
//
// This server provides tools for scheduling, listing, completing,
// acknowledging and cancelling reminders stored in a SQLite database.
//
// Usage:
//
//	./mcp-reminder          # Start MCP server (stdio)
//	./mcp-reminder --help   # Show help
//
// Environment:
//
//	REMINDERD_STORE__PATH        Path to SQLite database (default: ~/.reminderd/reminders.db)
//	REMINDERD_MCP__PRINCIPAL_ID  User the tools act as
//	REMINDERD_MCP__ROLES         Comma separated roles, e.g. scheduler
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/notexe/reminderd/internal/config"
	"github.com/notexe/reminderd/internal/reminder"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			return
		}
	}

	cfg, err := config.Load(config.GetDefaultConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.MCP.PrincipalID == "" {
		fmt.Fprintf(os.Stderr, "mcp.principal_id is not set (REMINDERD_MCP__PRINCIPAL_ID)\n")
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	store, err := reminder.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	principal := reminder.Principal{ID: cfg.MCP.PrincipalID}
	for _, r := range cfg.MCP.Roles {
		principal.Roles = append(principal.Roles, reminder.Role(r))
	}

	service := reminder.NewService(store, reminder.WithTimeout(cfg.StoreTimeout()))
	s := reminder.NewServer(service, principal)

	if err := server.ServeStdio(s.MCPServer()); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`MCP Reminder Server - Reminder management via MCP protocol

USAGE:
    mcp-reminder          Start MCP server (communicates via stdio)
    mcp-reminder --help   Show this help

ENVIRONMENT:
    REMINDERD_STORE__PATH        Path to SQLite database file
                                 Default: ~/.reminderd/reminders.db
    REMINDERD_MCP__PRINCIPAL_ID  User the tools act as (required)
    REMINDERD_MCP__ROLES         Comma separated roles (scheduler)

TOOLS:
    add_reminder          Schedule a reminder for a user (scheduler role)
    list_reminders        List visible reminders with optional filters
    get_reminder          Show one reminder
    complete_reminder     Complete a reminder assigned to you
    acknowledge_reminder  Acknowledge a reminder that requires action
    cancel_reminder       Cancel a reminder (scheduler role)
    delete_reminder       Delete a reminder (scheduler role)
    update_reminder       Edit a reminder that has not fired (scheduler role)

CONFIGURATION:
    Add to your MCP client configuration:
    {
      "mcpServers": {
        "reminder": {
          "command": "/path/to/mcp-reminder",
          "args": [],
          "env": {"REMINDERD_MCP__PRINCIPAL_ID": "alice"}
        }
      }
    }`)
}
