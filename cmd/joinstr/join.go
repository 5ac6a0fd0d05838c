package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/joinstr-network/joinstr-daemon/internal/core/application"
)

var join = cli.Command{
	Name:  "join",
	Usage: "join a discovered pool and run the coinjoin to completion",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "pool",
			Usage:    "the id of the pool to join",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "input",
			Usage:    "the coin to mix as txid:vout",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "output",
			Usage:    "the destination segwit address",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "max-fee",
			Usage: "the highest total pool fee in satoshis to accept, 0 for no ceiling",
		},
		&cli.Uint64Flag{
			Name:  "denomination",
			Usage: "only join pools of exactly this denomination, 0 for any",
		},
		&cli.StringFlag{
			Name:     "mnemonic",
			Usage:    "the wallet mnemonic",
			EnvVars:  []string{"JOINSTR_MNEMONIC"},
			Required: true,
		},
		&cli.UintFlag{
			Name:  "index-max",
			Usage: "derivation index to stop key derivation at (exclusive)",
			Value: 20,
		},
	},
	Action: joinAction,
}

func joinAction(ctx *cli.Context) error {
	txid, vout, err := parseOutpoint(ctx.String("input"))
	if err != nil {
		return err
	}

	w, err := getWallet(ctx.String("mnemonic"), uint32(ctx.Uint("index-max")))
	if err != nil {
		return err
	}

	runCtx, cancel := interruptContext()
	defer cancel()

	svc, cleanup, err := getService(runCtx, w)
	if err != nil {
		return err
	}
	defer cleanup()

	peer := application.PeerConfig{
		InputTxid:     txid,
		InputVout:     vout,
		OutputAddress: ctx.String("output"),
		MaxFee:        ctx.Uint64("max-fee"),
		Denomination:  ctx.Uint64("denomination"),
	}

	mixTxid, err := svc.JoinCoinJoin(runCtx, ctx.String("pool"), peer)
	if err != nil {
		return err
	}

	fmt.Println(mixTxid)

	return nil
}
