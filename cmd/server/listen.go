package main

import (
	"fmt"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/flowpulse/backend/internal/channel"
)

var listenChannels []string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print push events from a running service",
	RunE:  runListen,
}

func init() {
	listenCmd.Flags().StringSliceVar(&listenChannels, "channels", nil, "channels to follow (default all)")
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, _ []string) error {
	for _, name := range listenChannels {
		if !channel.Known(name) {
			return fmt.Errorf("%w: %s", channel.ErrUnknownChannel, name)
		}
	}

	u := url.URL{Scheme: "ws", Host: serviceAddr, Path: "/ws"}
	if len(listenChannels) > 0 {
		u.RawQuery = url.Values{"channels": {strings.Join(listenChannels, ",")}}.Encode()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	cmd.Printf("listening on %s\n", u.String())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if line, ok := formatEvent(data); ok {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
}

// formatEvent renders event frames as one line. Other frames are skipped.
func formatEvent(data []byte) (string, bool) {
	frameType, err := channel.PeekType(data)
	if err != nil || frameType != channel.FrameEvent {
		return "", false
	}
	evt, err := channel.DecodeEvent(data)
	if err != nil {
		return "", false
	}
	args, err := channel.Encode(evt.Arguments)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d %s %s %s", evt.Timestamp, evt.Channel, evt.Method, args), true
}
