package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/portfolio"
)

func portfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Answer wallet balance and holdings commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := newRuntime(ctx, "portfolio")
			if err != nil {
				return err
			}
			defer rt.Close()

			solana := portfolio.NewRPC(rt.cfg.Portfolio.SolanaRPCURL)
			prices := portfolio.NewJupiterPrices(rt.cfg.Portfolio.PriceAPIURL)
			svc := portfolio.NewService(rt.cfg, rt.bus, rt.store, solana, prices)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return svc.Run(ctx, rt.consumer) })
			g.Go(func() error { return rt.healthServer("portfolio").Run(ctx) })

			log.Info().Msg("portfolio running")
			return ignoreCancel(g.Wait())
		},
	}
}
