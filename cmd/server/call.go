package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/flowpulse/backend/internal/client"
)

var callTimeout time.Duration

var callCmd = &cobra.Command{
	Use:   "call <channel> <method> [key=value ...]",
	Short: "Invoke a channel method on a running service",
	Example: `  flowpulse call timer-background startBackgroundTask reason="Deep work"
  flowpulse call timer-background endBackgroundTask taskId=3
  flowpulse call battery-optimization getBatteryInfo`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

var statusWait int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health of a running service",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 15*time.Second, "request timeout")
	statusCmd.Flags().IntVar(&statusWait, "retries", 0, "retry while the service is unavailable")
	rootCmd.AddCommand(callCmd, statusCmd)
}

func baseURL() string {
	return "http://" + serviceAddr
}

func runCall(cmd *cobra.Command, args []string) error {
	callArgs, err := parseArgs(args[2:])
	if err != nil {
		return err
	}

	c := client.New(baseURL(), client.Options{Timeout: callTimeout})
	result, err := c.Call(cmd.Context(), args[0], args[1], callArgs)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c := client.New(baseURL(), client.Options{HealthRetries: statusWait})
	body, err := c.Health(cmd.Context())
	if body != nil {
		if perr := printJSON(cmd, body); perr != nil {
			return perr
		}
	}
	return err
}

// parseArgs turns key=value pairs into an argument object. Values that
// parse as JSON (numbers, booleans, quoted strings) keep their type.
func parseArgs(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		out[key] = parseValue(raw)
	}
	return out, nil
}

func parseValue(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		return unquoted
	}
	return raw
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
