package main

import (
	"github.com/urfave/cli/v2"
)

var listcoins = cli.Command{
	Name:  "listcoins",
	Usage: "list the wallet's unspent coins",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "mnemonic",
			Usage:    "the wallet mnemonic",
			EnvVars:  []string{"JOINSTR_MNEMONIC"},
			Required: true,
		},
		&cli.UintFlag{
			Name:  "index-min",
			Usage: "first derivation index to scan",
			Value: 0,
		},
		&cli.UintFlag{
			Name:  "index-max",
			Usage: "derivation index to stop scanning at (exclusive)",
			Value: 20,
		},
	},
	Action: listCoinsAction,
}

func listCoinsAction(ctx *cli.Context) error {
	runCtx, cancel := interruptContext()
	defer cancel()

	svc, cleanup, err := getService(runCtx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	coins, err := svc.ListCoins(
		ctx.String("mnemonic"),
		uint32(ctx.Uint("index-min")),
		uint32(ctx.Uint("index-max")),
	)
	if err != nil {
		return err
	}

	printRespJSON(coins)

	return nil
}
