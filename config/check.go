package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/freehandle/ripple/crypto"
)

func (c NodeConfig) Check() error {
	if c.Token != "" && crypto.TokenFromString(c.Token).IsZero() {
		return errors.New("Token is not a valid token")
	}
	if c.Port < 1024 || c.Port > 49151 {
		return fmt.Errorf("Port must be between 1024 and 49151")
	}
	if c.WebsocketPort != 0 {
		if c.WebsocketPort < 1024 || c.WebsocketPort > 49151 {
			return fmt.Errorf("WebsocketPort must be between 1024 and 49151")
		}
		if c.WebsocketPort == c.Port {
			return fmt.Errorf("WebsocketPort must differ from Port")
		}
		if !strings.HasPrefix(c.WebsocketPath, "/") {
			return fmt.Errorf("WebsocketPath must start with /")
		}
	}
	if c.DataPath == "" {
		return errors.New("DataPath must be specified")
	}
	if (c.VaultPath == "") == (c.KeyPath == "") {
		return errors.New("exactly one of VaultPath or KeyPath must be specified")
	}
	if c.Hops < 0 || c.Hops > 6 {
		return fmt.Errorf("Hops must be between 0 and 6")
	}
	for n, peer := range c.Peers {
		if peer.Address == "" {
			return fmt.Errorf("Peers[%d] has no address", n)
		}
		if crypto.TokenFromString(peer.Token).IsZero() {
			return fmt.Errorf("Peers[%d] has an invalid token", n)
		}
	}
	for _, token := range c.Firewall.Whitelist {
		if crypto.TokenFromString(token).IsZero() {
			return fmt.Errorf("Firewall.Whitelist contains an invalid token")
		}
	}
	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
			return fmt.Errorf("LogLevel must be one of debug, info, warn or error")
		}
	}
	if c.SubscriptionBuffer < 0 {
		return errors.New("SubscriptionBuffer cannot be negative")
	}
	return nil
}
