package configuration

import (
	"fmt"
	"net"
	"time"
)

type Properties struct {
	App        AppConfigurationProperties        `yaml:"app"`
	Cluster    ClusterConfigurationProperties    `yaml:"cluster"`
	Network    NetworkConfigurationProperties    `yaml:"network"`
	Consensus  ConsensusConfigurationProperties  `yaml:"consensus"`
	Ledger     LedgerConfigurationProperties     `yaml:"ledger"`
	Mempool    MempoolConfigurationProperties    `yaml:"mempool"`
	Chain      ChainConfigurationProperties      `yaml:"chain"`
	Simulation SimulationConfigurationProperties `yaml:"simulation"`
	Transport  TransportConfigurationProperties  `yaml:"transport"`
	Metrics    MetricsConfigurationProperties    `yaml:"metrics"`
}

type AppConfigurationProperties struct {
	Profile  string `yaml:"profile"`
	LogLevel string `yaml:"log-level"`
}

type ClusterConfigurationProperties struct {
	NodeCount         int     `yaml:"node-count"`
	InitialBalance    float64 `yaml:"initial-balance"`
	ByzantineNodes    []int   `yaml:"byzantine-nodes"`
	EquivocatingNodes []int   `yaml:"equivocating-nodes"`
}

type NetworkConfigurationProperties struct {
	DropRate    float64 `yaml:"drop-rate"`
	MaxDelayMs  int     `yaml:"max-delay-ms"`
	MaxAttempts int     `yaml:"max-attempts"`
	Seed        uint64  `yaml:"seed"`
}

type ConsensusConfigurationProperties struct {
	MaxRetries       int `yaml:"max-retries"`
	RoundTimeoutMs   int `yaml:"round-timeout-ms"`
	FinalizedHistory int `yaml:"finalized-history"`
}

type LedgerConfigurationProperties struct {
	MaxSnapshots int `yaml:"max-snapshots"`
}

type MempoolConfigurationProperties struct {
	MaxSize int `yaml:"max-size"`
}

type ChainConfigurationProperties struct {
	WalDir string `yaml:"wal-dir"`
	NoSync bool   `yaml:"no-sync"`
}

type SimulationConfigurationProperties struct {
	MaxEvents int `yaml:"max-events"`
}

type TransportConfigurationProperties struct {
	Network              string `yaml:"network"`
	Address              string `yaml:"address"`
	Port                 string `yaml:"port"`
	Timeout              uint64 `yaml:"timeout"`
	MaxConcurrentStreams uint32 `yaml:"max-concurrent-streams"`
}

type MetricsConfigurationProperties struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default mirrors internal/static/application-local.yml.
func Default() *Properties {
	return &Properties{
		App: AppConfigurationProperties{Profile: "local", LogLevel: "info"},
		Cluster: ClusterConfigurationProperties{
			NodeCount:      4,
			InitialBalance: 1000,
		},
		Network: NetworkConfigurationProperties{
			MaxDelayMs:  50,
			MaxAttempts: 3,
			Seed:        1,
		},
		Consensus: ConsensusConfigurationProperties{
			MaxRetries:       5,
			RoundTimeoutMs:   1000,
			FinalizedHistory: 256,
		},
		Ledger:     LedgerConfigurationProperties{MaxSnapshots: 64},
		Simulation: SimulationConfigurationProperties{MaxEvents: 100000},
		Transport: TransportConfigurationProperties{
			Network:              "tcp",
			Address:              "127.0.0.1",
			Port:                 "7070",
			Timeout:              5000,
			MaxConcurrentStreams: 64,
		},
		Metrics: MetricsConfigurationProperties{Address: "127.0.0.1:9090"},
	}
}

func (p *Properties) Validate() error {
	switch {
	case p.Cluster.NodeCount < 1:
		return fmt.Errorf("%w: cluster.node-count must be >= 1, got %d", ErrInvalidConfig, p.Cluster.NodeCount)
	case p.Cluster.InitialBalance < 0:
		return fmt.Errorf("%w: cluster.initial-balance must not be negative", ErrInvalidConfig)
	case p.Network.DropRate < 0 || p.Network.DropRate > 1:
		return fmt.Errorf("%w: network.drop-rate must be within [0,1], got %v", ErrInvalidConfig, p.Network.DropRate)
	case p.Network.MaxDelayMs < 0:
		return fmt.Errorf("%w: network.max-delay-ms must not be negative", ErrInvalidConfig)
	case p.Network.MaxAttempts < 1:
		return fmt.Errorf("%w: network.max-attempts must be >= 1", ErrInvalidConfig)
	case p.Consensus.MaxRetries < 1:
		return fmt.Errorf("%w: consensus.max-retries must be >= 1", ErrInvalidConfig)
	case p.Consensus.RoundTimeoutMs < 1:
		return fmt.Errorf("%w: consensus.round-timeout-ms must be >= 1", ErrInvalidConfig)
	}
	return nil
}

func (c *NetworkConfigurationProperties) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

func (c *ConsensusConfigurationProperties) RoundTimeout() time.Duration {
	return time.Duration(c.RoundTimeoutMs) * time.Millisecond
}

func (c *TransportConfigurationProperties) Addr() string {
	return net.JoinHostPort(c.Address, c.Port)
}

func (c *TransportConfigurationProperties) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}
