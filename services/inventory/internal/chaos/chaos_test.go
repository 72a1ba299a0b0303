package chaos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/kyungseok/reservation-core/common/config"
)

func TestGremlinDelay_NoopWhenDisabled(t *testing.T) {
	inj := NewInjector(config.ChaosConfig{GremlinMode: false}, zap.NewNop())

	start := time.Now()
	inj.GremlinDelay(context.Background())

	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestGremlinDelay_SleepsWithinConfiguredBounds(t *testing.T) {
	inj := NewInjector(config.ChaosConfig{
		GremlinMode:     true,
		GremlinMinDelay: 10 * time.Millisecond,
		GremlinMaxDelay: 20 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	inj.GremlinDelay(context.Background())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestGremlinDelay_ReturnsEarlyOnContextCancellation(t *testing.T) {
	inj := NewInjector(config.ChaosConfig{
		GremlinMode:     true,
		GremlinMinDelay: 5 * time.Second,
		GremlinMaxDelay: 5 * time.Second,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	inj.GremlinDelay(ctx)

	assert.Less(t, time.Since(start), time.Second, "a cancelled context must cut the delay short")
}

func TestSchrodingerCrashAfterCommit_NoopWhenDisabled(t *testing.T) {
	inj := NewInjector(config.ChaosConfig{SchrodingerMode: false}, zap.NewNop())

	// Would os.Exit(1) if this were misclassified as enabled; reaching the
	// assertion proves it didn't.
	inj.SchrodingerCrashAfterCommit()
	assert.True(t, true)
}

func TestSchrodingerCrashAfterCommit_NeverTriggersAtZeroProbability(t *testing.T) {
	inj := NewInjector(config.ChaosConfig{SchrodingerMode: true, SchrodingerCrashProbability: 0}, zap.NewNop())

	for i := 0; i < 100; i++ {
		inj.SchrodingerCrashAfterCommit()
	}
	assert.True(t, true)
}
