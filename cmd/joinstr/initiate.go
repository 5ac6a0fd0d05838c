package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joinstr-network/joinstr-daemon/internal/config"
	"github.com/joinstr-network/joinstr-daemon/internal/core/application"
	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

var initiate = cli.Command{
	Name:  "initiate",
	Usage: "create a new pool, advertise it and run the coinjoin to completion",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:     "denomination",
			Usage:    "the per-peer output value in satoshis",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:  "fee",
			Usage: "the total pool fee in satoshis, split across peers",
			Value: 1000,
		},
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "the pool lifetime",
			Value: 10 * time.Minute,
		},
		&cli.IntFlag{
			Name:  "peers",
			Usage: "the target number of participants",
			Value: 5,
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
	Action: initiateAction,
}

func initiateAction(ctx *cli.Context) error {
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

	cfg := domain.PoolConfig{
		Denomination: ctx.Uint64("denomination"),
		Fee:          ctx.Uint64("fee"),
		MaxDuration:  uint64(ctx.Duration("duration") / time.Second),
		Peers:        ctx.Int("peers"),
		Network:      config.GetString(config.NetworkKey),
	}
	peer := application.PeerConfig{
		InputTxid:     txid,
		InputVout:     vout,
		OutputAddress: ctx.String("output"),
	}

	mixTxid, err := svc.InitiateCoinJoin(runCtx, cfg, peer)
	if err != nil {
		return err
	}

	fmt.Println(mixTxid)

	return nil
}
