package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/db"
	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/ops"
	"github.com/hpungsan/tern/internal/session"
	"github.com/hpungsan/tern/internal/web"
)

// defaultSession scopes CLI storage when --session is not given.
const defaultSession = "cli"

// maxSessionLen bounds session names given on the command line.
const maxSessionLen = 128

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	app := &cli.App{
		Name:    "tern",
		Usage:   "UTM parameter capture and link tagging",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Value: defaultSession, Usage: "Session that holds the parameter set"},
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging on stderr"},
		},
		Commands: []*cli.Command{
			captureCmd(database, cfg, logger),
			showCmd(database, cfg, logger),
			clearCmd(database, cfg, logger),
			appendCmd(database, cfg, logger),
			stripCmd(),
			inspectCmd(cfg),
			validateCmd(cfg),
			sessionsCmd(database, cfg),
			serveCmd(database, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// captureCmd creates the capture command.
func captureCmd(database *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Capture UTM parameters from a landing URL into the session",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			rawURL, err := urlArg(c)
			if err != nil {
				return outputError(err)
			}
			store, err := sessionStore(database, c.String("session"), logger)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Capture(store, cfg, ops.CaptureInput{URL: rawURL})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(database *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the session's parameter set",
		Action: func(c *cli.Context) error {
			store, err := sessionStore(database, c.String("session"), logger)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Read(store, cfg)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(database *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove the session's parameter set",
		Action: func(c *cli.Context) error {
			store, err := sessionStore(database, c.String("session"), logger)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Clear(store, cfg)
			if err != nil {
				return outputError(err)
			}
			if !output.Cleared {
				return outputError(errors.NewStorageUnavailable("failed to clear session"))
			}

			return outputJSON(output)
		},
	}
}

// appendCmd creates the append command.
func appendCmd(database *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "append",
		Usage:     "Append the session's parameters to a URL",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "Share platform whose overrides apply"},
			&cli.StringFlag{Name: "placement", Usage: "Where to write parameters: query|fragment"},
			&cli.BoolFlag{Name: "keep-existing", Usage: "Keep values already present in the URL"},
			&cli.StringSliceFlag{Name: "param", Usage: "Extra parameter as key=value (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			rawURL, err := urlArg(c)
			if err != nil {
				return outputError(err)
			}
			params, err := parseParams(c.StringSlice("param"))
			if err != nil {
				return outputError(err)
			}
			store, err := sessionStore(database, c.String("session"), logger)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Append(store, cfg, ops.AppendInput{
				URL:          rawURL,
				Platform:     c.String("platform"),
				Params:       params,
				Placement:    c.String("placement"),
				KeepExisting: c.Bool("keep-existing"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// stripCmd creates the strip command.
func stripCmd() *cli.Command {
	return &cli.Command{
		Name:      "strip",
		Usage:     "Remove UTM parameters from a URL",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "key", Aliases: []string{"k"}, Usage: "Key to remove (repeatable; default: all utm_ keys)"},
		},
		Action: func(c *cli.Context) error {
			rawURL, err := urlArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Strip(ops.StripInput{URL: rawURL, Keys: c.StringSlice("key")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the parameters a URL carries without storing them",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			rawURL, err := urlArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Inspect(cfg, rawURL)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// validateCmd creates the validate command. It exits non-zero for an
// invalid URL after printing the result.
func validateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate and normalize a URL",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			output, err := ops.Validate(cfg, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			if err := outputJSON(output); err != nil {
				return err
			}
			if !output.Valid {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// sessionsCmd creates the sessions command group.
func sessionsCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Manage stored sessions",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List sessions, most recently updated first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 50, Usage: "Maximum sessions to return"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.Sessions(c.Context, database, c.Int("limit"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "purge",
				Usage: "Delete sessions idle for longer than the session TTL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Usage: "Idle age to purge, in days or a Go duration (e.g., 7d, 36h)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PurgeInput{}
					if olderThan := c.String("older-than"); olderThan != "" {
						age, err := parseDuration(olderThan)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						if age == 0 {
							return outputError(errors.NewInvalidRequest("older-than must be positive"))
						}
						input.OlderThan = age
					}

					output, err := ops.Purge(c.Context, database, cfg, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "new",
				Usage: "Generate a fresh session ID",
				Action: func(_ *cli.Context) error {
					return outputJSON(map[string]string{"session_id": db.NewSessionID()})
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(database *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP redirect and link service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8787, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			srv, err := web.NewServer(database, cfg, logger, Version, c.String("bind"), port)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, logger); err != nil && !stderrors.Is(err, context.Canceled) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// sessionStore returns a store scoped to the named session.
func sessionStore(database *sql.DB, name string, logger *zap.Logger) (*session.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultSession
	}
	if len(name) > maxSessionLen {
		return nil, errors.NewInvalidRequest("session name is too long")
	}
	return session.NewStore(db.NewSessionMedium(database, name), logger.With(zap.String("session", name))), nil
}

// urlArg returns the first positional argument.
func urlArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 || strings.TrimSpace(c.Args().First()) == "" {
		return "", errors.NewInvalidRequest("url argument is required")
	}
	return c.Args().First(), nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var ternErr *errors.TernError
	if stderrors.As(err, &ternErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", ternErr.Code, ternErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseParams turns key=value pairs into a parameter map.
func parseParams(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("param must be key=value, got %q", p))
		}
		params[k] = v
	}
	return params, nil
}

// parseDuration parses "7d" as days; anything else must be a Go duration
// such as "36h".
func parseDuration(s string) (time.Duration, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be days (e.g., 7d) or a Go duration (e.g., 36h)")
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative")
	}
	return d, nil
}
