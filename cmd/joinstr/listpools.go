package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joinstr-network/joinstr-daemon/internal/config"
)

var listpools = cli.Command{
	Name:  "listpools",
	Usage: "discover pools advertised on the relay",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "lookback",
			Usage: "how far back to look for advertisements",
			Value: time.Hour,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to listen on the relay",
			Value: 10 * time.Second,
		},
	},
	Action: listPoolsAction,
}

func listPoolsAction(ctx *cli.Context) error {
	runCtx, cancel := interruptContext()
	defer cancel()

	svc, cleanup, err := getService(runCtx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	lookback := ctx.Duration("lookback")
	timeout := ctx.Duration("timeout")
	if !ctx.IsSet("lookback") {
		lookback = time.Duration(config.GetInt(config.PoolLookbackKey)) * time.Second
	}
	if !ctx.IsSet("timeout") {
		timeout = time.Duration(config.GetInt(config.DiscoveryTimeoutKey)) * time.Second
	}

	pools, err := svc.ListPools(runCtx, lookback, timeout)
	if err != nil {
		return err
	}

	printRespJSON(pools)

	return nil
}
