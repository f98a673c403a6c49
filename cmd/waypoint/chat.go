package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/waypoint/pkg/events"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/go-go-golems/waypoint/pkg/orchestrator"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Run one chat exchange from the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runChat,
	}
	cmd.Flags().String("location", "", "Caller location as \"lat,lng\" or an address")
	cmd.Flags().Bool("show-events", false, "Print the exchange events as JSON lines on stderr")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	location, _ := cmd.Flags().GetString("location")
	showEvents, _ := cmd.Flags().GetBool("show-events")

	ctx := cmd.Context()
	g, closeGeo, err := buildGeo(ctx, s)
	if err != nil {
		return err
	}
	defer closeGeo()

	o, err := buildOrchestrator(s, g, metrics.New())
	if err != nil {
		return err
	}

	sink := &events.CollectingSink{}
	ctx = events.WithEventSinks(ctx, sink)
	out, err := o.Chat(ctx, orchestrator.ChatRequest{
		Message:        strings.Join(args, " "),
		CallerLocation: location,
	})
	if showEvents {
		printEvents(cmd.ErrOrStderr(), sink.Events())
	}
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	answer := out.Answer
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		styled, err := glamour.Render(answer, "dark")
		if err != nil {
			log.Debug().Err(err).Msg("could not render markdown")
		} else {
			answer = styled
		}
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(answer, "\n"))
	printOutcome(w, out)
	return nil
}

func printEvents(w io.Writer, evs []*events.Event) {
	enc := json.NewEncoder(w)
	for _, e := range evs {
		_ = enc.Encode(e)
	}
}

func printOutcome(w io.Writer, out *orchestrator.ChatOutcome) {
	if len(out.Places) > 0 {
		_, _ = fmt.Fprintln(w, "\nPlaces:")
		for i, p := range out.Places {
			line := fmt.Sprintf("  %d. %s", i+1, p.Name)
			if p.Address != "" {
				line += " - " + p.Address
			}
			if p.Rating > 0 {
				line += fmt.Sprintf(" (%.1f)", p.Rating)
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
	if len(out.Routes) > 0 {
		_, _ = fmt.Fprintln(w, "\nRoutes:")
		for i, r := range out.Routes {
			line := fmt.Sprintf("  %d. %s", i+1, r.Summary)
			if len(r.Legs) > 0 {
				line += fmt.Sprintf(": %s, %s", r.Legs[0].DistanceText, r.Legs[0].DurationText)
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
}
