package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/benedictkwok/cover-letter-assistant/internal/errors"
)

// newCLIApp creates the CLI application with all commands. The app handle is
// nil only on the --help/--version path, where no action runs.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "covergate",
		Usage:   "Invitation-gated cover letter service gateway",
		Version: Version,
		Commands: []*cli.Command{
			inviteCmd(a),
			tokenCmd(a),
			quotaCmd(a),
			usageCmd(a),
			auditCmd(a),
			prefsCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// inviteCmd manages the invitation registry.
func inviteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "invite",
		Usage: "Manage the invitation registry",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Invite a user",
				ArgsUsage: "<email>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
					&cli.StringFlag{Name: "access", Value: "user", Usage: "Access level: user|admin"},
					&cli.StringFlag{Name: "notes", Usage: "Free-form notes"},
				},
				Action: func(c *cli.Context) error {
					email := c.Args().First()
					if email == "" {
						return outputError(errors.NewInvalidRequest("email argument is required"))
					}
					if err := a.invites.Add(email, c.String("name"), c.String("access"), c.String("notes")); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"invited": email})
				},
			},
			{
				Name:  "list",
				Usage: "List invited users",
				Action: func(c *cli.Context) error {
					return outputJSON(a.invites.All())
				},
			},
			{
				Name:      "set-status",
				Usage:     "Change a user's status",
				ArgsUsage: "<email> <active|inactive|suspended>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return outputError(errors.NewInvalidRequest("email and status arguments are required"))
					}
					email, status := c.Args().Get(0), c.Args().Get(1)
					if err := a.invites.UpdateStatus(email, status); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"email": email, "status": status})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a user from the registry",
				ArgsUsage: "<email>",
				Action: func(c *cli.Context) error {
					email := c.Args().First()
					if email == "" {
						return outputError(errors.NewInvalidRequest("email argument is required"))
					}
					if err := a.invites.Remove(email); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"removed": email})
				},
			},
		},
	}
}

// tokenCmd issues and verifies session tokens.
func tokenCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue and verify session tokens",
		Subcommands: []*cli.Command{
			{
				Name:      "issue",
				Usage:     "Authenticate an invited user and print a session token",
				ArgsUsage: "<email>",
				Action: func(c *cli.Context) error {
					email := c.Args().First()
					if email == "" {
						return outputError(errors.NewInvalidRequest("email argument is required"))
					}
					session, err := a.gate.Authenticate(email)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(session)
				},
			},
			{
				Name:      "verify",
				Usage:     "Check a session token",
				ArgsUsage: "<email> <token>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 2 {
						return outputError(errors.NewInvalidRequest("email and token arguments are required"))
					}
					email, credential := c.Args().Get(0), c.Args().Get(1)
					return outputJSON(map[string]any{
						"email": email,
						"valid": a.tokens.Verify(email, credential),
					})
				},
			},
		},
	}
}

// quotaCmd inspects and resets daily generation quotas.
func quotaCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "quota",
		Usage: "Inspect and reset daily generation quotas",
		Subcommands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "Show a user's remaining budget, or today's aggregate",
				ArgsUsage: "[email]",
				Action: func(c *cli.Context) error {
					if email := c.Args().First(); email != "" {
						status, err := a.quota.Status(email)
						if err != nil {
							return outputError(err)
						}
						return outputJSON(status)
					}
					stats, err := a.quota.DailyStats()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(stats)
				},
			},
			{
				Name:      "reset",
				Usage:     "Reset a user's usage for today",
				ArgsUsage: "<email>",
				Action: func(c *cli.Context) error {
					email := c.Args().First()
					if email == "" {
						return outputError(errors.NewInvalidRequest("email argument is required"))
					}
					if err := a.quota.Reset(email); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"reset": email})
				},
			},
		},
	}
}

// usageCmd reports usage analytics.
func usageCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show usage statistics (system-wide, or one user with --email)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Report a single user"},
			&cli.BoolFlag{Name: "recent", Usage: "Show the trailing 24h against the 24h before"},
		},
		Action: func(c *cli.Context) error {
			if email := c.String("email"); email != "" {
				stats, err := a.analytics.UserStats(email)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(stats)
			}
			if c.Bool("recent") {
				activity, err := a.analytics.RecentActivity()
				if err != nil {
					return outputError(err)
				}
				return outputJSON(activity)
			}
			stats, err := a.analytics.AggregatedStats()
			if err != nil {
				return outputError(err)
			}
			return outputJSON(stats)
		},
	}
}

// auditCmd summarizes the security audit log.
func auditCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Summarize the security audit log",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Event counts by type",
				Action: func(c *cli.Context) error {
					stats, err := a.audit.Aggregate()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(stats)
				},
			},
		},
	}
}

// prefsCmd inspects and resets learned preference profiles.
func prefsCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "Inspect and reset learned preference profiles",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print a user's preference profile",
				ArgsUsage: "<email>",
				Action: func(c *cli.Context) error {
					email := c.Args().First()
					if email == "" {
						return outputError(errors.NewInvalidRequest("email argument is required"))
					}
					profile, err := a.prefs.Profile(email)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(profile)
				},
			},
			{
				Name:      "reset",
				Usage:     "Clear everything learned for a user",
				ArgsUsage: "<email>",
				Action: func(c *cli.Context) error {
					email := c.Args().First()
					if email == "" {
						return outputError(errors.NewInvalidRequest("email argument is required"))
					}
					if err := a.prefs.Reset(email); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"reset": email})
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if gErr, ok := err.(*errors.GateError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
