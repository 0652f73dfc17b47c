// Package sqlquorumctl is the command-line client of the sqlquorum API.
package sqlquorumctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlquorum/sqlquorum/internal/nl2sql"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// exitError carries a non-usage exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the request fails or the API reports status=error, 2 on usage
// errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	c := &client{stdout: stdout, stderr: stderr, httpClient: defaults.HTTPClient}
	root := newRootCommand(c, defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n\n", err)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

func newRootCommand(c *client, defaults Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "sqlquorumctl",
		Short:         "Client for the sqlquorum SQL generation API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
		PersistentPreRun: func(*cobra.Command, []string) {
			if c.httpClient == nil {
				c.httpClient = &http.Client{Timeout: c.timeout}
			}
		},
	}
	root.PersistentFlags().StringVar(&c.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "sqlquorum API base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", durationOr(defaults.Timeout, 5*time.Minute), "HTTP timeout (e.g. 90s)")

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "GET /v1/health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.get(cmd.Context(), "/v1/health")
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "ready",
		Short: "GET /v1/ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.get(cmd.Context(), "/v1/ready")
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "schema <db>",
		Short: "Show the resolved key graph of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.get(cmd.Context(), "/v1/schema/"+url.PathEscape(args[0]))
		},
	})
	root.AddCommand(newGenerateCommand(c))
	return root
}

func newGenerateCommand(c *client) *cobra.Command {
	var req nl2sql.Request
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate SQL for a natural-language question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.generate(cmd.Context(), req)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.DBName, "db", "", "database id")
	flags.StringVar(&req.Question, "question", "", "natural-language question")
	flags.StringVar(&req.Hint, "hint", "", "evidence or hint text")
	flags.BoolVar(&req.Verbose, "verbose", false, "include intermediate results")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

type client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	stdout     io.Writer
	stderr     io.Writer
}

func (c *client) get(ctx context.Context, path string) error {
	code, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.print(code, body)
}

func (c *client) generate(ctx context.Context, req nl2sql.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	code, body, err := c.do(ctx, http.MethodPost, "/v1/generate", payload)
	if err != nil {
		return err
	}
	if err := c.print(code, body); err != nil {
		return err
	}
	var resp nl2sql.Response
	if err := json.Unmarshal(body, &resp); err != nil || resp.Status != nl2sql.StatusSuccess {
		return exitError{code: 1}
	}
	return nil
}

func (c *client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 0, nil, exitError{code: 1}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "request failed: %v\n", err)
		return 0, nil, exitError{code: 1}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "read response: %v\n", err)
		return 0, nil, exitError{code: 1}
	}
	return resp.StatusCode, body, nil
}

func (c *client) print(code int, body []byte) error {
	if code >= 400 {
		_, _ = fmt.Fprintf(c.stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return exitError{code: 1}
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(c.stdout, pretty)
		return nil
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(c.stdout, string(body))
	}
	return nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
