package node

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"bftledger/internal/chain"
	"bftledger/internal/configuration"
	"bftledger/internal/consensus"
	"bftledger/internal/network"
	"bftledger/internal/sim"
	"bftledger/internal/statemachine"
	"bftledger/internal/types"
)

type Config struct {
	NodeCount      int
	InitialBalance float64
	Byzantine      []int
	Equivocating   []int

	Network      network.Config
	Consensus    consensus.Config
	MaxSnapshots int
	MempoolSize  int

	WALDir string
	NoSync bool

	MaxEvents int
}

func NewConfigFromProperties(p *configuration.Properties) Config {
	return Config{
		NodeCount:      p.Cluster.NodeCount,
		InitialBalance: p.Cluster.InitialBalance,
		Byzantine:      slices.Clone(p.Cluster.ByzantineNodes),
		Equivocating:   slices.Clone(p.Cluster.EquivocatingNodes),
		Network: network.Config{
			DropRate:    p.Network.DropRate,
			MaxDelay:    p.Network.MaxDelay(),
			MaxAttempts: p.Network.MaxAttempts,
			Seed:        p.Network.Seed,
		},
		Consensus: consensus.Config{
			MaxRetries:       p.Consensus.MaxRetries,
			RoundTimeout:     p.Consensus.RoundTimeout(),
			FinalizedHistory: p.Consensus.FinalizedHistory,
		},
		MaxSnapshots: p.Ledger.MaxSnapshots,
		MempoolSize:  p.Mempool.MaxSize,
		WALDir:       p.Chain.WalDir,
		NoSync:       p.Chain.NoSync,
		MaxEvents:    p.Simulation.MaxEvents,
	}
}

// Report describes one drain of the event queue.
type Report struct {
	Events      int
	VirtualTime time.Duration
}

// Cluster owns the shared scheduler, network and ledger and every agent
// running on them. All operations are serialized by mu.
type Cluster struct {
	mu sync.Mutex

	cfg     Config
	clock   *sim.Scheduler
	network *network.Simulator
	ledger  *statemachine.StateMachine

	agents    map[int]*Agent
	byzantine []int
	nextID    int
}

func NewCluster(cfg Config) (*Cluster, error) {
	clock := sim.NewScheduler()
	c := &Cluster{
		cfg:     cfg,
		clock:   clock,
		network: network.NewSimulator(clock, cfg.Network),
		ledger:  statemachine.New(cfg.MaxSnapshots),
		agents:  make(map[int]*Agent),
		nextID:  1,
	}

	c.ledger.OnCommit(func(batch []types.Transaction) {
		slog.Debug("ledger committed batch", "size", len(batch))
	})

	for i := 0; i < cfg.NodeCount; i++ {
		if _, err := c.addNodeLocked(); err != nil {
			return nil, errors.Join(err, c.Close())
		}
	}

	for _, id := range cfg.Byzantine {
		c.markByzantineLocked(id)
	}

	slog.Info("cluster created",
		"nodes", cfg.NodeCount,
		"initial_balance", cfg.InitialBalance,
		"byzantine", cfg.Byzantine,
		"equivocating", cfg.Equivocating,
	)

	return c, nil
}

// AddNode registers a new participant and seeds its account.
func (c *Cluster) AddNode() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addNodeLocked()
}

func (c *Cluster) addNodeLocked() (int, error) {
	id := c.nextID

	var journal chain.Journal
	if c.cfg.WALDir != "" {
		j, err := chain.OpenWALJournal(filepath.Join(c.cfg.WALDir, "node-"+strconv.Itoa(id)), c.cfg.NoSync)
		if err != nil {
			return 0, fmt.Errorf("open journal for node %d: %w", id, err)
		}
		journal = j
	}

	a := NewAgent(id, c.network, c.ledger, c.clock, journal, AgentConfig{
		Consensus:   c.cfg.Consensus,
		MempoolSize: c.cfg.MempoolSize,
	})
	if slices.Contains(c.cfg.Equivocating, id) {
		a.engine.SetEquivocate(true)
	}
	for _, bad := range c.byzantine {
		a.engine.MarkByzantine(bad)
	}

	c.ledger.Seed(id, c.cfg.InitialBalance)
	c.network.Register(a)
	c.agents[id] = a
	c.nextID++

	slog.Info("node added", "node_id", id, "participants", c.network.TotalParticipants())
	return id, nil
}

func (c *Cluster) agent(id int) (*Agent, error) {
	a, ok := c.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return a, nil
}

// Start triggers a round on node id and runs the simulation until it is
// quiet again.
func (c *Cluster) Start(id int) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := c.agent(id)
	if err != nil {
		return Report{}, err
	}
	a.ProposeBlock()
	return c.settleLocked()
}

func (c *Cluster) Rollback(id int) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := c.agent(id)
	if err != nil {
		return Report{}, err
	}
	a.RollbackConsensus()
	return c.settleLocked()
}

func (c *Cluster) CreateTransaction(senderID, receiverID int, amount float64) (types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := c.agent(senderID)
	if err != nil {
		return types.Transaction{}, err
	}
	return a.CreateTransaction(receiverID, amount)
}

// MarkByzantine makes every agent, present and future, discount votes from id.
func (c *Cluster) MarkByzantine(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.agent(id); err != nil {
		return err
	}
	c.markByzantineLocked(id)
	return nil
}

func (c *Cluster) markByzantineLocked(id int) {
	if slices.Contains(c.byzantine, id) {
		return
	}
	c.byzantine = append(c.byzantine, id)
	for _, a := range c.agents {
		a.engine.MarkByzantine(id)
	}
}

func (c *Cluster) Status(id int) (AgentStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := c.agent(id)
	if err != nil {
		return AgentStatus{}, err
	}
	return a.Status(), nil
}

func (c *Cluster) StatusAll() []AgentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]AgentStatus, 0, len(c.agents))
	for _, id := range c.network.Participants() {
		out = append(out, c.agents[id].Status())
	}
	return out
}

func (c *Cluster) Balance(id int) float64 {
	return c.ledger.GetBalance(id)
}

func (c *Cluster) Balances() map[int]float64 {
	return c.ledger.Balances()
}

func (c *Cluster) Ledger() *statemachine.StateMachine {
	return c.ledger
}

func (c *Cluster) NodeIDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.agents))
}

func (c *Cluster) NetworkStats() network.Stats {
	return c.network.Stats()
}

// SetNetworkConditions changes loss and latency for every later broadcast.
func (c *Cluster) SetNetworkConditions(dropRate float64, maxDelay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.network.SetMessageDropRate(dropRate)
	c.network.SetMaxDelay(maxDelay)
	slog.Info("network conditions changed", "drop_rate", dropRate, "max_delay", maxDelay)
}

// Settle drains pending deliveries and timers within the configured event
// budget.
func (c *Cluster) Settle() (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settleLocked()
}

func (c *Cluster) settleLocked() (Report, error) {
	start := c.clock.Now()
	n, err := c.clock.Run(c.cfg.MaxEvents)
	rep := Report{Events: n, VirtualTime: c.clock.Now() - start}

	if err != nil {
		slog.Warn("simulation did not settle",
			"events", n,
			"virtual_time", rep.VirtualTime,
			"pending", c.clock.Pending(),
		)
		return rep, fmt.Errorf("settle: %w", err)
	}
	return rep, nil
}

func (c *Cluster) Close() error {
	var errs []error
	for _, a := range c.agents {
		if err := a.chain.Close(); err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", a.id, err))
		}
	}
	return errors.Join(errs...)
}
