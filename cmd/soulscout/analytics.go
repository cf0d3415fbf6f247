package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/analytics"
)

func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Score market updates and emit alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := newRuntime(ctx, "analytics")
			if err != nil {
				return err
			}
			defer rt.Close()

			pipeline := analytics.NewPipeline(rt.cfg, rt.bus, rt.store)
			responder := analytics.NewResponder(rt.cfg, rt.bus, pipeline)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return pipeline.Run(ctx, rt.consumer) })
			g.Go(func() error { return responder.Run(ctx, rt.consumer) })
			g.Go(func() error { return rt.healthServer("analytics").Run(ctx) })

			log.Info().Msg("analytics running")
			return ignoreCancel(g.Wait())
		},
	}
}
