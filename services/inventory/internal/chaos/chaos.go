// Package chaos injects the two fault-injection toggles of spec §6/§8
// into the Inventory Custodian's reserveStock path: gremlin latency
// (forces the coordinator's 2s deadline to trip, scenario 3) and a
// Schrödinger crash (terminates the process after a commit but before the
// reply, scenario 4). Both are no-ops unless their env toggle is set.
package chaos

import (
	"context"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kyungseok/reservation-core/common/config"
)

// Injector applies configured chaos behavior around reserveStock.
type Injector struct {
	cfg    config.ChaosConfig
	logger *zap.Logger
	rng    *rand.Rand
}

// NewInjector builds an Injector from cfg.
func NewInjector(cfg config.ChaosConfig, logger *zap.Logger) *Injector {
	return &Injector{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GremlinDelay sleeps for a random duration in [GremlinMinDelay,
// GremlinMaxDelay] when gremlin mode is on, or returns immediately
// otherwise. The sleep respects ctx cancellation so a client that has
// already given up does not leak the goroutine.
func (i *Injector) GremlinDelay(ctx context.Context) {
	if !i.cfg.GremlinMode {
		return
	}

	delay := i.cfg.GremlinMinDelay
	if i.cfg.GremlinMaxDelay > i.cfg.GremlinMinDelay {
		spread := i.cfg.GremlinMaxDelay - i.cfg.GremlinMinDelay
		delay += time.Duration(i.rng.Int63n(int64(spread) + 1))
	}

	i.logger.Warn("gremlin latency injected", zap.Duration("delay", delay))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

// SchrodingerCrashAfterCommit exits the process with probability
// SchrodingerCrashProbability when Schrödinger mode is on. Call it after a
// reserveStock transaction commits but before the RPC reply is written,
// so the caller observes a transport failure despite the commit having
// already happened (§8 scenario 4).
func (i *Injector) SchrodingerCrashAfterCommit() {
	if !i.cfg.SchrodingerMode {
		return
	}

	if i.rng.Float64() < i.cfg.SchrodingerCrashProbability {
		i.logger.Error("schrodinger crash triggered after commit, terminating process")
		os.Exit(1)
	}
}
