package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/scheduler"
	"github.com/notexe/reminderd/internal/ui"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Trigger every due reminder once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sweeper := scheduler.New(a.service, scheduler.Config{
				Interval:  a.cfg.SchedulerInterval(),
				BatchSize: a.cfg.Scheduler.BatchSize,
			})
			res, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(ui.NewFormatter(!noColor).FormatSweep(res))
			return nil
		},
	}
	return cmd
}

func listCmd() *cobra.Command {
	var (
		assignee  string
		status    string
		limit     int
		asJSON    bool
		principal string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p := a.principal()
			if principal != "" {
				p = reminder.Principal{ID: principal}
			}

			items, err := a.service.List(cmd.Context(), p, reminder.Filter{
				AssignedTo: assignee,
				Status:     reminder.Status(status),
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			fmt.Println(ui.NewFormatter(!noColor).FormatReminders(items))
			return nil
		},
	}

	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Only reminders assigned to this user")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (scheduled, triggered, completed, cancelled)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum results")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	cmd.Flags().StringVar(&principal, "as", "", "Act as this user instead of the configured principal")

	return cmd
}

func resynthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resynth <id>",
		Short: "Create the missing successor of a completed recurring reminder",
		Long: `Retry successor synthesis for a completed recurring reminder.

Safe to run more than once: an existing successor is returned unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			successor, err := a.service.Resynthesize(cmd.Context(), a.principal(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(ui.NewFormatter(!noColor).FormatReminder(*successor))
			return nil
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve reminder tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s := reminder.NewServer(a.service, a.principal())
			return server.ServeStdio(s.MCPServer())
		},
	}
}

// principal is the identity configured for local tools.
func (a *app) principal() reminder.Principal {
	p := reminder.Principal{ID: a.cfg.MCP.PrincipalID}
	for _, r := range a.cfg.MCP.Roles {
		p.Roles = append(p.Roles, reminder.Role(r))
	}
	return p
}
