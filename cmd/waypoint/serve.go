package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-go-golems/waypoint/pkg/events"
	"github.com/go-go-golems/waypoint/pkg/metrics"
	"github.com/go-go-golems/waypoint/pkg/server"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat and map API over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "Listen address (default from server.host)")
	cmd.Flags().Int("port", 0, "Listen port (default from server.port)")
	cmd.Flags().String("static-dir", "", "Directory with the web client")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	// only explicit flags override the layered settings
	if cmd.Flags().Changed("host") {
		s.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		s.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("static-dir") {
		s.Server.StaticDir, _ = cmd.Flags().GetString("static-dir")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	g, closeGeo, err := buildGeo(ctx, s)
	if err != nil {
		return err
	}
	defer closeGeo()

	o, err := buildOrchestrator(s, g, m)
	if err != nil {
		return err
	}

	router, err := events.NewEventRouter(events.WithVerbose(cfg.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()
	router.AddHandler("exchange-logger", events.DefaultTopic, events.LoggingHandler(log.Logger))

	srv := server.New(o, g, server.Config{
		StaticDir:      s.Server.StaticDir,
		CORSOrigins:    s.Server.CORSOrigins,
		SearchLimit:    s.Server.SearchLimit,
		MapsBrowserKey: s.Maps.APIKey,
		MapsConfigured: s.MapsConfigured(),
		LLMConfigured:  s.LLMConfigured(),
		EventSinks:     []events.EventSink{router.Sink(events.DefaultTopic)},
	}, m)

	addr := net.JoinHostPort(s.Server.Host, strconv.Itoa(s.Server.Port))
	log.Info().
		Str("model", s.LLM.Model).
		Str("llm_base_url", s.LLM.BaseURL).
		Bool("google_maps_configured", s.MapsConfigured()).
		Bool("cache", s.CacheEnabled()).
		Msg("Starting waypoint")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		<-router.Running()
		return errors.Wrap(server.Run(ctx, addr, srv.Handler(), shutdownTimeout), "http server")
	})
	return eg.Wait()
}
