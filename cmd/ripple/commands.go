package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/freehandle/ripple/config"
	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/replicate"
	"github.com/freehandle/ripple/util"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the JSON configuration file",
		Value:   "ripple.json",
	}
	vaultFlag = &cli.StringFlag{
		Name:  "vault",
		Usage: "path to the identity vault",
		Value: "ripple.vault",
	}
	keyFlag = &cli.StringFlag{
		Name:  "key",
		Usage: "PEM ed25519 key to seal instead of a new random identity",
	}
)

var (
	initCommand = &cli.Command{
		Name:   "init",
		Usage:  "Creates an encrypted identity vault",
		Flags:  []cli.Flag{vaultFlag, keyFlag},
		Action: initVault,
	}
	tokenCommand = &cli.Command{
		Name:   "token",
		Usage:  "Prints the token of the identity in the vault",
		Flags:  []cli.Flag{vaultFlag},
		Action: printToken,
	}
	configCommand = &cli.Command{
		Name:      "config",
		Usage:     "Writes a standard configuration file for the identity in the vault",
		ArgsUsage: "output",
		Flags:     []cli.Flag{vaultFlag},
		Action:    writeConfig,
	}
	runCommand = &cli.Command{
		Name:   "run",
		Usage:  "Runs the node until interrupted",
		Flags:  []cli.Flag{configFlag},
		Action: run,
	}
	followCommand = &cli.Command{
		Name:      "follow",
		Usage:     "Publishes a follow (or unfollow with --undo) of a feed",
		ArgsUsage: "token",
		Flags:     []cli.Flag{configFlag, &cli.BoolFlag{Name: "undo"}},
		Action: func(ctx *cli.Context) error {
			return publishContact(ctx, (*replicate.Node).Follow)
		},
	}
	blockCommand = &cli.Command{
		Name:      "block",
		Usage:     "Publishes a block (or unblock with --undo) of a feed",
		ArgsUsage: "token",
		Flags:     []cli.Flag{configFlag, &cli.BoolFlag{Name: "undo"}},
		Action: func(ctx *cli.Context) error {
			return publishContact(ctx, (*replicate.Node).Block)
		},
	}
	readCommand = &cli.Command{
		Name:      "read",
		Usage:     "Prints the stored messages of a feed as JSON lines",
		ArgsUsage: "token",
		Flags:     []cli.Flag{configFlag, &cli.Uint64Flag{Name: "from", Value: 1}},
		Action:    readFeed,
	}
	clockCommand = &cli.Command{
		Name:   "clock",
		Usage:  "Prints the stored sequence of every feed",
		Flags:  []cli.Flag{configFlag},
		Action: printClock,
	}
)

func initVault(ctx *cli.Context) error {
	_, secret := crypto.RandomAsymetricKey()
	if path := ctx.String(keyFlag.Name); path != "" {
		key, err := config.ParseCredentials(path, crypto.ZeroToken)
		if err != nil {
			return err
		}
		secret = key
	}
	password, err := readPassword("Enter a password for the new vault:")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Repeat the password:")
	if err != nil {
		return err
	}
	if string(password) != string(confirm) {
		return errors.New("passwords do not match")
	}
	vault, err := util.NewSecureVault(password, ctx.String(vaultFlag.Name), secret)
	if err != nil {
		return err
	}
	fmt.Println(vault.SecretKey.PublicKey())
	return nil
}

func printToken(ctx *cli.Context) error {
	vault, err := openVault(ctx.String(vaultFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(vault.SecretKey.PublicKey())
	return nil
}

func writeConfig(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("need output file as argument")
	}
	vault, err := openVault(ctx.String(vaultFlag.Name))
	if err != nil {
		return err
	}
	cfg := config.StandardNodeConfig
	cfg.Token = vault.SecretKey.PublicKey().String()
	cfg.VaultPath = ctx.String(vaultFlag.Name)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ctx.Args().Get(0), data, 0644)
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig[config.NodeConfig](ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	key, err := loadIdentity(cfg)
	if err != nil {
		return err
	}
	node, err := openNode(cfg, key)
	if err != nil {
		return err
	}
	defer node.Close()

	signals, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(signals, cfg, node); err != nil {
		return err
	}
	fmt.Printf("node %v running on %v\n", node.Token(), cfg.ListenAddress())
	select {
	case <-signals.Done():
		slog.Info("shutting down")
	case <-node.Done():
		return errors.New("node stopped on a fatal store failure")
	}
	return nil
}

func publishContact(ctx *cli.Context, publish func(*replicate.Node, crypto.Token, bool) (*feed.Message, error)) error {
	if ctx.NArg() != 1 {
		return errors.New("need feed token as argument")
	}
	token := crypto.TokenFromString(ctx.Args().Get(0))
	if token.IsZero() {
		return errors.New("invalid feed token")
	}
	return withNode(ctx, func(node *replicate.Node) error {
		msg, err := publish(node, token, !ctx.Bool("undo"))
		if err != nil {
			return err
		}
		fmt.Printf("published sequence %d\n", msg.Sequence)
		return nil
	})
}

func printClock(ctx *cli.Context) error {
	return withNode(ctx, func(node *replicate.Node) error {
		wanted := node.Wanted()
		lines := make([]string, 0)
		for token, sequence := range node.Clock() {
			mark := " "
			if wanted.Contains(token) {
				mark = "*"
			}
			lines = append(lines, fmt.Sprintf("%s %v %d", mark, token, sequence))
		}
		sort.Strings(lines)
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	})
}

func readFeed(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("need feed token as argument")
	}
	token := crypto.TokenFromString(ctx.Args().Get(0))
	if token.IsZero() {
		return errors.New("invalid feed token")
	}
	return withNode(ctx, func(node *replicate.Node) error {
		messages, err := node.Read(token, ctx.Uint64("from"), ^uint64(0))
		if err != nil {
			return err
		}
		for _, msg := range messages {
			fmt.Println(msg.JSON())
		}
		return nil
	})
}

// withNode opens the node of the configuration without listening, for
// offline commands.
func withNode(ctx *cli.Context, fn func(node *replicate.Node) error) error {
	cfg, err := config.LoadConfig[config.NodeConfig](ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	key, err := loadIdentity(cfg)
	if err != nil {
		return err
	}
	node, err := openNode(cfg, key)
	if err != nil {
		return err
	}
	defer node.Close()
	return fn(node)
}
