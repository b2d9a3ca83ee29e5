// Package config loads the node's process configuration, grounded on the
// teacher's pkg/config.Load (viper reading a YAML file, merged with
// environment overrides) narrowed to the keys spec.md §6 names. Parsing
// semantics beyond "viper reads this struct" are out of scope (spec.md
// §1 Non-goals); this package is specified only by the Node struct it
// produces.
package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
)

// Node is the unified configuration for one node process, mirroring
// spec.md §6's recognized options exactly.
type Node struct {
	NodeBindEndpoint                      string   `mapstructure:"node_bind_endpoint"`
	NodeExternalEndpoint                  string   `mapstructure:"node_external_endpoint"`
	RPCEndpoint                           string   `mapstructure:"rpc_endpoint"`
	DBEndpoint                            string   `mapstructure:"db_endpoint"`
	NodeSeedHex                           string   `mapstructure:"node_seed"`
	InitialPeers                          []string `mapstructure:"initial_peers"`
	MaxLessPeers                          int      `mapstructure:"max_less_peers"`
	MaxGreaterPeers                       int      `mapstructure:"max_greater_peers"`
	AllowPeersWithPrivateIPAddresses      bool     `mapstructure:"allow_peers_with_private_ip_addresses"`
	AllowPeersWithNodeExternalIPAddress   bool     `mapstructure:"allow_peers_with_node_external_ip_address"`
	TxPoolSize                            int      `mapstructure:"tx_pool_size"`
	OpenPoolSize                          int      `mapstructure:"open_pool_size"`
	VotePoolSize                          int      `mapstructure:"vote_pool_size"`
	DataDir                               string   `mapstructure:"data_dir"`
}

// defaults mirror the teacher's posture of shipping a usable config
// without requiring every key to be set (pkg/config's "default.yaml").
func setDefaults(v *viper.Viper) {
	v.SetDefault("node_bind_endpoint", "0.0.0.0:7800")
	v.SetDefault("node_external_endpoint", "127.0.0.1:7800")
	v.SetDefault("rpc_endpoint", "127.0.0.1:7801")
	v.SetDefault("db_endpoint", "")
	v.SetDefault("initial_peers", []string{})
	v.SetDefault("max_less_peers", 512)
	v.SetDefault("max_greater_peers", 512)
	v.SetDefault("allow_peers_with_private_ip_addresses", false)
	v.SetDefault("allow_peers_with_node_external_ip_address", false)
	v.SetDefault("tx_pool_size", 10_000)
	v.SetDefault("open_pool_size", 1_000)
	v.SetDefault("vote_pool_size", 1_000)
	v.SetDefault("data_dir", "./data")
}

// Load reads path (YAML or any format viper recognizes by extension) and
// any SLT_-prefixed environment overrides into a Node, following the
// teacher's Load(env) shape (SetConfigFile + AutomaticEnv + Unmarshal).
func Load(path string) (*Node, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("slt")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var n Node
	if err := v.Unmarshal(&n); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return &n, nil
}

// ParseInitialPeers resolves the configured initial_peers strings to UDP
// addresses, skipping (and the caller logging) any that fail to parse.
func (n *Node) ParseInitialPeers() ([]*net.UDPAddr, []error) {
	out := make([]*net.UDPAddr, 0, len(n.InitialPeers))
	var errs []error
	for _, raw := range n.InitialPeers {
		addr, err := net.ResolveUDPAddr("udp4", raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: initial peer %q: %w", raw, err))
			continue
		}
		out = append(out, addr)
	}
	return out, errs
}
