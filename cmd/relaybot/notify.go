package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func notifyCmd() *cobra.Command {
	var (
		addr    string
		sev     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "notify MESSAGE...",
		Short: "Post a message to a running relaybot's /notify endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			body, err := postNotify(ctx, http.DefaultClient, addr, strings.Join(args, " "), sev)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:5000", "base url of the relaybot http server")
	cmd.Flags().StringVarP(&sev, "severity", "s", "", "severity (default: server's notifier.default_severity)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

// postNotify sends one message and returns the response body. Any status
// other than 201 is an error carrying the body.
func postNotify(ctx context.Context, client *http.Client, addr, message, sev string) (string, error) {
	payload := map[string]string{"message": message}
	if s := strings.TrimSpace(sev); s != "" {
		payload["severity"] = s
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(strings.TrimSpace(addr), "/") + "/notify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(string(out))
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("notify failed: HTTP %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
