package infra

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/gpuguard/internal/domain"
)

const (
	defaultSmiBinary  = "nvidia-smi"
	defaultSmiTimeout = 10 * time.Second
)

// NvidiaSmiSampler implements domain.Sampler by shelling out to nvidia-smi.
type NvidiaSmiSampler struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewNvidiaSmiSampler creates a sampler using nvidia-smi from PATH.
func NewNvidiaSmiSampler(logger *zap.Logger) *NvidiaSmiSampler {
	return NewNvidiaSmiSamplerWithBinary(defaultSmiBinary, logger)
}

// NewNvidiaSmiSamplerWithBinary creates a sampler with a custom query binary (for testing).
func NewNvidiaSmiSamplerWithBinary(binary string, logger *zap.Logger) *NvidiaSmiSampler {
	return &NvidiaSmiSampler{
		binary:  binary,
		timeout: defaultSmiTimeout,
		logger:  logger,
	}
}

// Sample runs one sensor query and reduces the per-device readings to their
// maximum: the hottest device governs the decision. Sensor failures are never
// fatal, the result is an unavailable Reading and the next tick is the retry.
func (s *NvidiaSmiSampler) Sample(ctx context.Context) domain.Reading {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.binary,
		"--query-gpu=temperature.gpu",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			// Environment problem, not a transient failure. Surface it loudly.
			s.logger.Error("nvidia-smi not found, ensure NVIDIA drivers are installed and nvidia-smi is in PATH",
				zap.String("binary", s.binary))
		} else {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				s.logger.Warn("nvidia-smi failed",
					zap.Error(err),
					zap.String("stderr", strings.TrimSpace(string(exitErr.Stderr))))
			} else {
				s.logger.Warn("nvidia-smi failed", zap.Error(err))
			}
		}
		return domain.UnavailableReading()
	}

	temps := s.parseTemperatures(string(out))
	if len(temps) == 0 {
		s.logger.Warn("no valid temperature readings in nvidia-smi output")
		return domain.UnavailableReading()
	}

	max := temps[0]
	for _, t := range temps[1:] {
		if t > max {
			max = t
		}
	}
	s.logger.Debug("sampled GPU temperatures",
		zap.Float64s("celsius", temps),
		zap.Float64("max", max))
	return domain.CelsiusReading(max)
}

// parseTemperatures extracts one value per output line, skipping anything
// that is not a plain decimal literal.
func (s *NvidiaSmiSampler) parseTemperatures(out string) []float64 {
	var temps []float64
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !isTemperatureLiteral(line) {
			s.logger.Warn("skipping unparsable nvidia-smi line", zap.String("line", line))
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		temps = append(temps, v)
	}
	return temps
}

// isTemperatureLiteral accepts unsigned decimal literals: digits with at
// most one decimal point, no sign, no exponent.
func isTemperatureLiteral(s string) bool {
	dots, digits := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}

// Ensure NvidiaSmiSampler implements domain.Sampler.
var _ domain.Sampler = (*NvidiaSmiSampler)(nil)
