package network

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"bftledger/internal/domain"
	"bftledger/internal/metrics"
	"bftledger/internal/types"
)

const DefaultMaxAttempts = 3

type Config struct {
	DropRate    float64
	MaxDelay    time.Duration
	MaxAttempts int
	Seed        uint64
}

// BroadcastResult counts per-recipient outcomes of a single Send call.
type BroadcastResult struct {
	Scheduled int
	Lost      int
	Drops     int
}

type Stats struct {
	Broadcasts int
	Scheduled  int
	Lost       int
	Drops      int
}

// Simulator delivers messages between registered participants over a
// virtual clock, dropping and delaying them at random.
type Simulator struct {
	mu sync.Mutex

	clock        domain.Clock
	rng          *rand.Rand
	participants map[int]domain.Participant
	order        []int

	dropRate    float64
	maxDelay    time.Duration
	maxAttempts int

	stats Stats
}

func NewSimulator(clock domain.Clock, cfg Config) *Simulator {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}

	s := &Simulator{
		clock:        clock,
		rng:          rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		participants: make(map[int]domain.Participant),
		maxAttempts:  attempts,
	}
	s.SetMessageDropRate(cfg.DropRate)
	s.SetMaxDelay(cfg.MaxDelay)

	slog.Debug("network simulator created",
		"drop_rate", s.dropRate,
		"max_delay", s.maxDelay,
		"max_attempts", s.maxAttempts,
		"seed", cfg.Seed,
	)

	return s
}

func (s *Simulator) Register(p domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.ID()
	if _, exists := s.participants[id]; exists {
		slog.Warn("participant registered twice, replacing handler", "node_id", id)
	} else {
		s.order = append(s.order, id)
	}
	s.participants[id] = p

	metrics.NetworkParticipants.Set(float64(len(s.participants)))
}

func (s *Simulator) Broadcast(msg types.Message) {
	s.Send(msg)
}

// Send delivers msg to every registered participant except the sender.
// Each recipient gets up to maxAttempts independent tries; the first one
// that is not dropped schedules delivery after a uniform delay.
func (s *Simulator) Send(msg types.Message) BroadcastResult {
	s.mu.Lock()

	var res BroadcastResult
	type delivery struct {
		to    domain.Participant
		delay time.Duration
	}
	deliveries := make([]delivery, 0, len(s.order))

	for _, id := range s.order {
		if id == msg.SenderID {
			continue
		}

		delivered := false
		for attempt := 0; attempt < s.maxAttempts; attempt++ {
			if s.dropRate > 0 && s.rng.Float64() < s.dropRate {
				res.Drops++
				metrics.NetworkMessagesTotal.WithLabelValues(msg.Phase.String(), "dropped").Inc()
				continue
			}
			deliveries = append(deliveries, delivery{to: s.participants[id], delay: s.sampleDelay()})
			delivered = true
			break
		}

		if delivered {
			res.Scheduled++
			metrics.NetworkMessagesTotal.WithLabelValues(msg.Phase.String(), "scheduled").Inc()
		} else {
			res.Lost++
			metrics.NetworkMessagesTotal.WithLabelValues(msg.Phase.String(), "lost").Inc()
			slog.Debug("message lost after retries",
				"from", msg.SenderID,
				"to", id,
				"phase", msg.Phase,
				"attempts", s.maxAttempts,
			)
		}
	}

	s.stats.Broadcasts++
	s.stats.Scheduled += res.Scheduled
	s.stats.Lost += res.Lost
	s.stats.Drops += res.Drops
	s.mu.Unlock()

	for _, d := range deliveries {
		to := d.to
		metrics.NetworkDeliveryDelay.Observe(d.delay.Seconds())
		s.clock.AfterFunc(d.delay, func() { to.Receive(msg) })
	}

	return res
}

func (s *Simulator) sampleDelay() time.Duration {
	if s.maxDelay <= 0 {
		return 0
	}
	return time.Duration(s.rng.Int64N(int64(s.maxDelay) + 1))
}

func (s *Simulator) TotalParticipants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

func (s *Simulator) IsRegistered(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[id]
	return ok
}

// Participants returns ids in registration order.
func (s *Simulator) Participants() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// SetMessageDropRate clamps rate into [0, 1].
func (s *Simulator) SetMessageDropRate(rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	s.mu.Lock()
	s.dropRate = rate
	s.mu.Unlock()
}

func (s *Simulator) SetMaxDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.maxDelay = d
	s.mu.Unlock()
}

func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
