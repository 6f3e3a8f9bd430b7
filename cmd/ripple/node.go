package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/freehandle/ripple/config"
	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/replicate"
	"github.com/freehandle/ripple/socket"
	"github.com/freehandle/ripple/store"
	"github.com/freehandle/ripple/util"
)

// setupLogging sends the default logger to the configured log file.
func setupLogging(cfg *config.NodeConfig) (func(), error) {
	var programLevel = new(slog.LevelVar)
	programLevel.Set(cfg.Level())
	if cfg.LogPath == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel})))
		return func() {}, nil
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file: %w", err)
	}
	logger := slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: programLevel})
	slog.SetDefault(slog.New(logger))
	return func() { logFile.Close() }, nil
}

func readPassword(phrase string) ([]byte, error) {
	fmt.Println(phrase)
	for {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, fmt.Errorf("error reading password: %w", err)
		}
		if len(password) > 0 {
			return password, nil
		}
		fmt.Println("Try again:")
	}
}

func openVault(path string) (*util.SecureVault, error) {
	password, err := readPassword(fmt.Sprintf("Password for vault %s:", path))
	if err != nil {
		return nil, err
	}
	return util.OpenVaultFromPassword(password, path)
}

// loadIdentity reads the node key from the PEM file or the vault.
func loadIdentity(cfg *config.NodeConfig) (crypto.PrivateKey, error) {
	token := crypto.TokenFromString(cfg.Token)
	if cfg.KeyPath != "" {
		return config.ParseCredentials(cfg.KeyPath, token)
	}
	vault, err := openVault(cfg.VaultPath)
	if err != nil {
		return crypto.ZeroPrivateKey, err
	}
	if !token.IsZero() && vault.SecretKey.PublicKey() != token {
		return crypto.ZeroPrivateKey, fmt.Errorf("vault does not match token: %v instead of %v", vault.SecretKey.PublicKey(), token)
	}
	return vault.SecretKey, nil
}

func settingsFromConfig(cfg *config.NodeConfig) replicate.Settings {
	settings := replicate.DefaultSettings()
	settings.Hops = cfg.Hops
	if cfg.SubscriptionBuffer > 0 {
		settings.SubscriptionBuffer = cfg.SubscriptionBuffer
	}
	if firewall := config.FirewallToValidConnections(cfg.Firewall); firewall != nil {
		settings.Firewall = firewall
	}
	return settings
}

func openNode(cfg *config.NodeConfig, key crypto.PrivateKey) (*replicate.Node, error) {
	db, err := store.Open(cfg.DataPath, store.Options{Sync: true})
	if err != nil {
		return nil, err
	}
	node, err := replicate.New(key, db, settingsFromConfig(cfg))
	if err != nil {
		db.Close()
		return nil, err
	}
	return node, nil
}

// serve opens the listeners and dials the configured peers in the
// background.
func serve(ctx context.Context, cfg *config.NodeConfig, node *replicate.Node) error {
	if _, err := node.Listen(cfg.ListenAddress()); err != nil {
		return fmt.Errorf("could not listen on port %v: %w", cfg.Port, err)
	}
	if cfg.WebsocketPort != 0 {
		if _, err := node.ListenWebsocket(cfg.WebsocketAddress(), cfg.WebsocketPath); err != nil {
			return fmt.Errorf("could not listen on websocket port %v: %w", cfg.WebsocketPort, err)
		}
	}
	for _, peer := range config.PeersToTokenAddr(cfg.Peers) {
		go func(peer socket.TokenAddr) {
			session, err := node.Connect(ctx, peer)
			if errors.Is(err, replicate.ErrConnectionDenied) {
				slog.Warn("peer denied the session", "address", peer.Addr, "token", peer.Token)
				return
			}
			if err != nil {
				slog.Info("could not connect to peer", "address", peer.Addr, "error", err)
				return
			}
			slog.Info("connected to peer", "address", peer.Addr, "connection", session.ID())
		}(peer)
	}
	return nil
}
