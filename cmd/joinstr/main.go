package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "joinstr CLI"
	app.Usage = "Command line interface for coordinator-free coinjoins over nostr relays"
	app.Commands = append(
		app.Commands,
		&listpools,
		&listcoins,
		&initiate,
		&join,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[joinstr] %v\n", err)
	os.Exit(1)
}

func printRespJSON(resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(b))
}

// parseOutpoint splits a txid:vout string.
func parseOutpoint(s string) (string, uint32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 64 {
		return "", 0, fmt.Errorf("invalid outpoint %q, expected txid:vout", s)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid outpoint %q: %s", s, err)
	}
	return parts[0], uint32(vout), nil
}
