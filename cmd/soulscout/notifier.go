package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/notifier"
)

func notifierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifier",
		Short: "Apply alert policy and forward outbound messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := newRuntime(ctx, "notifier")
			if err != nil {
				return err
			}
			defer rt.Close()

			svc := notifier.NewService(rt.cfg, rt.bus, rt.store)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return svc.Run(ctx, rt.consumer) })
			g.Go(func() error { return rt.healthServer("notifier").Run(ctx) })

			log.Info().Msg("notifier running")
			return ignoreCancel(g.Wait())
		},
	}
}
