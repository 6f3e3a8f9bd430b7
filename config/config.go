// Package config loads the JSON configuration of a ripple node.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/socket"
)

type Configurable interface {
	Check() error
}

func LoadConfig[T Configurable](path string) (*T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open configuration file: %w", err)
	}
	defer file.Close()
	var config T
	err = json.NewDecoder(file).Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("could not parse configuration file: %w", err)
	}
	if err := config.Check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func ParseJSON[T any](config string) (*T, error) {
	var node T
	err := json.Unmarshal([]byte(config), &node)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

type Peer struct {
	// Address is host:port for TCP or a ws:// or wss:// URL
	Address string // `json:"address"`
	Token   string // `json:"token"`
}

type FirewallConfig struct {
	// Whitelist restricts sessions to the listed tokens. An empty list leaves
	// admission to the social graph alone.
	Whitelist []string // `json:"whitelist"`
}

// NodeConfig is the configuration of a ripple node.
type NodeConfig struct {
	// Token of the node identity. Must match the key in the vault or key file.
	Token string // `json:"token"`
	// Hostname the listeners bind to. Empty binds every interface.
	Hostname string // `json:"hostname"`
	// Port for TCP replication sessions
	Port int // `json:"port"`
	// WebsocketPort for websocket replication sessions. Zero disables it.
	WebsocketPort int // `json:"websocketPort"`
	// WebsocketPath is the HTTP path of the websocket endpoint
	WebsocketPath string // `json:"websocketPath"`
	// DataPath is the leveldb directory of the log store
	DataPath string // `json:"dataPath"`
	// VaultPath is the encrypted identity created by ripple init
	VaultPath string // `json:"vaultPath"`
	// KeyPath is a PEM encoded ed25519 key, an alternative to the vault
	KeyPath string // `json:"keyPath"`
	// Hops is the follow distance within which feeds are replicated
	Hops int // `json:"hops"`
	// Peers dialed on start
	Peers []Peer // `json:"peers"`
	// Firewall rules
	Firewall FirewallConfig // `json:"firewall"`
	// LogPath is the file the node logs to. Empty logs to stderr.
	LogPath string // `json:"logPath"`
	// LogLevel is one of debug, info, warn or error
	LogLevel string // `json:"logLevel"`
	// SubscriptionBuffer is the capacity of event subscriptions
	SubscriptionBuffer int // `json:"subscriptionBuffer"`
}

var StandardNodeConfig = NodeConfig{
	Port:               7070,
	WebsocketPath:      "/ripple",
	DataPath:           "ripple-data",
	VaultPath:          "ripple.vault",
	Hops:               2,
	Peers:              []Peer{},
	LogLevel:           "info",
	SubscriptionBuffer: 256,
}

func (c NodeConfig) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

func (c NodeConfig) WebsocketAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.WebsocketPort)
}

func (c NodeConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// FirewallToValidConnections returns nil when the whitelist is empty.
func FirewallToValidConnections(f FirewallConfig) *socket.AcceptValidConnections {
	if len(f.Whitelist) == 0 {
		return nil
	}
	tokens := make([]crypto.Token, 0)
	for _, tokenStr := range f.Whitelist {
		token := crypto.TokenFromString(tokenStr)
		if token != crypto.ZeroToken {
			tokens = append(tokens, token)
		}
	}
	return socket.NewValidConnections(tokens)
}

func PeersToTokenAddr(peers []Peer) []socket.TokenAddr {
	tk := make([]socket.TokenAddr, 0)
	for _, peer := range peers {
		token := crypto.TokenFromString(peer.Token)
		if token != crypto.ZeroToken {
			tk = append(tk, socket.TokenAddr{
				Token: token,
				Addr:  peer.Address,
			})
		}
	}
	return tk
}
