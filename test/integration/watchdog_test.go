//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eliteGoblin/gpuguard/internal/daemon"
	"github.com/eliteGoblin/gpuguard/internal/domain"
	"github.com/eliteGoblin/gpuguard/internal/infra"
	"github.com/eliteGoblin/gpuguard/internal/usecase"
	"github.com/eliteGoblin/gpuguard/test/fixtures"
)

// Time scale for scenarios: intervals and grace periods are milliseconds
// here where the shipped defaults are seconds.
const (
	checkInterval = 10 * time.Millisecond
	gracePeriod   = 40 * time.Millisecond
	pollInterval  = 5 * time.Millisecond
)

func newWatchdog(sampler domain.Sampler, dir domain.ProcessDirectory, logger *zap.Logger) *daemon.Watchdog {
	escalator := usecase.NewEscalator(usecase.EscalatorConfig{
		Threshold:     85.0,
		NameFragments: []string{"trex"},
		GracePeriod:   gracePeriod,
		PollInterval:  pollInterval,
	}, dir, logger)
	return daemon.NewWatchdog(daemon.WatchdogConfig{CheckInterval: checkInterval}, sampler, escalator, logger)
}

func runInBackground(w *daemon.Watchdog) (cancel func()) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return func() {
		cancelCtx()
		Eventually(done).Should(BeClosed())
	}
}

var _ = Describe("Watchdog escalation scenarios", func() {
	trex := domain.TargetProcess{PID: 4321, Name: "trex", Cmdline: "/opt/trex --algo ethash"}

	Describe("overheating with a cooperative target", func() {
		It("requests a graceful stop and never force kills", func() {
			sampler := fixtures.NewFakeSampler(domain.CelsiusReading(90.0))
			dir := fixtures.NewFakeDirectory(true, trex)

			cancel := runInBackground(newWatchdog(sampler, dir, zap.NewNop()))
			defer cancel()

			Eventually(dir.StoppedPIDs).Should(ContainElement(int32(4321)))
			Consistently(dir.KilledPIDs, 3*gracePeriod).Should(BeEmpty())
		})
	})

	Describe("overheating with a stubborn target", func() {
		It("force kills after the grace period elapses", func() {
			sampler := fixtures.NewFakeSampler(domain.CelsiusReading(90.0))
			dir := fixtures.NewFakeDirectory(false, trex)

			start := time.Now()
			cancel := runInBackground(newWatchdog(sampler, dir, zap.NewNop()))
			defer cancel()

			Eventually(dir.KilledPIDs, 10*gracePeriod).Should(Equal([]int32{4321}))
			Expect(time.Since(start)).To(BeNumerically(">=", gracePeriod))
			Expect(dir.StoppedPIDs()).To(ContainElement(int32(4321)))
		})
	})

	Describe("temperature below the threshold", func() {
		It("never enumerates processes", func() {
			sampler := fixtures.NewFakeSampler(domain.CelsiusReading(80.0))
			dir := fixtures.NewFakeDirectory(false, trex)

			cancel := runInBackground(newWatchdog(sampler, dir, zap.NewNop()))
			defer cancel()

			Eventually(sampler.Calls).Should(BeNumerically(">=", 3))
			Expect(dir.SnapshotCalls()).To(BeZero())
			Expect(dir.StoppedPIDs()).To(BeEmpty())
			Expect(dir.KilledPIDs()).To(BeEmpty())
		})
	})

	Describe("sensor tool absent", func() {
		It("keeps ticking and logs a distinguishable not-found entry", func() {
			core, logs := observer.New(zapcore.DebugLevel)
			logger := zap.New(core)

			sampler := infra.NewNvidiaSmiSamplerWithBinary("definitely-not-nvidia-smi-xyz", logger)
			dir := fixtures.NewFakeDirectory(false, trex)

			cancel := runInBackground(newWatchdog(sampler, dir, logger))
			defer cancel()

			// Loop survives the unavailable readings across multiple ticks.
			Eventually(func() int {
				return logs.FilterMessageSnippet("GPU temperature unavailable").Len()
			}).Should(BeNumerically(">=", 2))

			notFound := logs.FilterMessageSnippet("nvidia-smi not found")
			Expect(notFound.Len()).To(BeNumerically(">=", 1))
			Expect(notFound.All()[0].Level).To(Equal(zapcore.ErrorLevel))

			Expect(dir.SnapshotCalls()).To(BeZero())
		})
	})
})
