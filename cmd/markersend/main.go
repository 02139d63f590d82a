// Command markersend emits splice marker datagrams at a running listener. It
// is used to exercise the auction pipeline without a live broadcast feed.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/marker"
)

var cliName = "markersend"

var (
	addr    string
	command uint8
	pts     uint64
	game    string
	period  string
	event   string
	meta    map[string]string

	count    int
	interval time.Duration
	seed     int64
)

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:9999", "Listener UDP address")
	rootCmd.PersistentFlags().Uint8Var(&command, "command", uint8(domain.CommandSpliceInsert), "Splice command byte")
	rootCmd.PersistentFlags().StringVar(&game, "game", "G1", "Game identifier")

	sendCmd.Flags().StringVar(&event, "event", "goal", "Event type")
	sendCmd.Flags().StringVar(&period, "period", "1", "Game period")
	sendCmd.Flags().Uint64Var(&pts, "pts", 0, "Presentation timestamp in 90kHz ticks")
	sendCmd.Flags().StringToStringVar(&meta, "meta", nil, "Extra metadata as key=value pairs")

	simulateCmd.Flags().IntVar(&count, "events", 20, "Number of events to send")
	simulateCmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Delay between events")
	simulateCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed; 0 uses the clock")

	rootCmd.AddCommand(sendCmd, simulateCmd)
}

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "markersend sends splice markers to an auction listener",
	Long: `markersend sends splice markers to an auction listener.

Use 'markersend send' for a single marker or 'markersend simulate' for a
randomized stream of game events.
`,
	SilenceUsage: true,
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one marker",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		metadata := map[string]any{
			"event_type": event,
			"game_id":    game,
			"period":     period,
		}
		for k, v := range meta {
			metadata[k] = parseValue(v)
		}

		conn, err := net.Dial("udp", addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()

		n, err := send(conn, domain.CommandType(command), pts, metadata)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.OutOrStdout(), "sent %d bytes to %s: %s %s\n", n, addr, domain.CommandType(command), event)
		return nil
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Send a randomized stream of game events",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		conn, err := net.Dial("udp", addr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", addr, err)
		}
		defer conn.Close()

		sim := newSimulator(game, seed)
		for i := 0; i < count; i++ {
			if i > 0 {
				time.Sleep(interval)
			}
			ev := sim.next()
			if _, err := send(conn, domain.CommandType(command), ev.pts, ev.metadata); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "%3d  period=%v  %-10v  pts=%d\n", i+1, ev.metadata["period"], ev.metadata["event_type"], ev.pts)
		}
		return nil
	},
}

func send(conn net.Conn, cmd domain.CommandType, pts uint64, metadata map[string]any) (int, error) {
	payload, err := marker.Encode(cmd, pts, metadata)
	if err != nil {
		return 0, fmt.Errorf("encode marker: %w", err)
	}
	n, err := conn.Write(payload)
	if err != nil {
		return 0, fmt.Errorf("write marker: %w", err)
	}
	return n, nil
}

// parseValue keeps booleans and numbers typed so context flags and ids
// survive the JSON round trip.
func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
