package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/token"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and print the resulting session state",
		Action: func(c *cli.Context) error {
			out := stdout(c)
			s, err := openSession(c, out)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.provider.Login(c.Context, c.String("identifier"), c.String("password")); err != nil {
				printState(out, s.provider.State())
				return err
			}
			printState(out, s.provider.State())
			if access, ok := s.provider.GetAccessToken(c.Context); ok {
				fmt.Fprintf(out, "access token: %s\n", token.Fingerprint(access))
			}
			return nil
		},
	}
}

func callCommand() *cli.Command {
	return &cli.Command{
		Name:      "call",
		Usage:     "log in, then send one authenticated request",
		ArgsUsage: "METHOD PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "JSON request body",
			},
			&cli.BoolFlag{
				Name:  "revoke",
				Usage: "revoke the access token server-side first (fake API only)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return usageError(c, "expected METHOD and PATH")
			}
			method := strings.ToUpper(c.Args().Get(0))
			path := c.Args().Get(1)

			var body any
			if raw := c.String("data"); raw != "" {
				if !json.Valid([]byte(raw)) {
					return usageError(c, "--data is not valid JSON")
				}
				body = json.RawMessage(raw)
			}

			out := stdout(c)
			s, err := openSession(c, out)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.provider.Login(c.Context, c.String("identifier"), c.String("password")); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if c.Bool("revoke") {
				if s.fake == nil {
					return usageError(c, "--revoke needs the built-in fake API")
				}
				s.fake.RevokeAccess()
			}

			client := s.provider.Client()
			req, err := client.NewRequest(c.Context, method, path, body)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return describeCallError(out, err)
			}
			defer resp.Body.Close()

			fmt.Fprintf(out, "%s %s -> %s\n", method, path, resp.Status)
			_, _ = io.Copy(out, resp.Body)
			fmt.Fprintln(out)

			snap := s.provider.MetricsSnapshot()
			fmt.Fprintf(out, "refreshes: %d\n", snap.Counters[goAuthClient.MetricRefreshSuccess])
			return nil
		},
	}
}

func describeCallError(out io.Writer, err error) error {
	var apiErr *goAuthClient.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		fmt.Fprintf(out, "rate limited, retry after %s\n", apiErr.RetryAfter)
	}
	return err
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "decode a token's timing claims without verifying its signature",
		ArgsUsage: "TOKEN",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "threshold",
				Usage: "expiring-soon window",
				Value: token.DefaultExpiryThreshold,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return usageError(c, "expected one TOKEN")
			}
			raw := strings.TrimSpace(c.Args().First())
			out := stdout(c)

			var v token.Validator
			fmt.Fprintf(out, "token:         %s\n", token.Fingerprint(raw))
			fmt.Fprintf(out, "valid:         %t\n", v.Validate(raw))
			if exp, ok := v.Expiration(raw); ok {
				fmt.Fprintf(out, "expires:       %s\n", exp.UTC().Format(time.RFC3339))
				fmt.Fprintf(out, "remaining:     %s\n", v.Remaining(raw).Round(time.Second))
			}
			fmt.Fprintf(out, "expiring soon: %t\n", v.IsExpiringSoon(raw, c.Duration("threshold")))
			return nil
		},
	}
}

func printState(out io.Writer, st goAuthClient.State) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(st)
}
