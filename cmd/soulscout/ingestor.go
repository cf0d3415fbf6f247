package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/ingest"
)

func ingestorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingestor",
		Short: "Watch DEX pools and publish market updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := newRuntime(ctx, "ingestor")
			if err != nil {
				return err
			}
			defer rt.Close()

			src := ingest.NewHTTPDex(rt.cfg.Ingestor.DexEndpoints)
			svc := ingest.NewService(rt.cfg, rt.bus, src, rt.store)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return svc.Run(ctx) })
			g.Go(func() error { return rt.healthServer("ingestor").Run(ctx) })
			if rt.cfg.Ingestor.PriceFeedURL != "" {
				feed := ingest.NewPriceFeed(rt.cfg.Ingestor.PriceFeedURL, svc.Aggregator())
				g.Go(func() error { return feed.Run(ctx) })
			}

			log.Info().Msg("ingestor running")
			return ignoreCancel(g.Wait())
		},
	}
}
