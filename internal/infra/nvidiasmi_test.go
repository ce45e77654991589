package infra

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestIsTemperatureLiteral verifies the parser shape check
func TestIsTemperatureLiteral(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"85", true},
		{"85.5", true},
		{"0", true},
		{"0.0", true},
		{".5", true},
		{"85.", true},
		{"", false},
		{".", false},
		{"85.5.5", false},
		{"-85", false},
		{"+85", false},
		{"1e5", false},
		{"85C", false},
		{"abc", false},
		{"8 5", false},
		{"N/A", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, isTemperatureLiteral(tt.input))
		})
	}
}

// TestParseTemperatures verifies line-by-line parsing with junk tolerance
func TestParseTemperatures(t *testing.T) {
	s := NewNvidiaSmiSampler(zap.NewNop())

	tests := []struct {
		name  string
		input string
		want  []float64
	}{
		{"single device", "85\n", []float64{85}},
		{"multiple devices", "75\n82.5\n79\n", []float64{75, 82.5, 79}},
		{"windows line endings", "75\r\n82\r\n", []float64{75, 82}},
		{"surrounding whitespace", "  75  \n\t82\n", []float64{75, 82}},
		{"junk lines skipped", "75\nN/A\n82\nGPU error\n", []float64{75, 82}},
		{"empty lines skipped", "\n\n75\n\n", []float64{75}},
		{"all junk", "N/A\nerror\n", nil},
		{"empty output", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.parseTemperatures(tt.input))
		})
	}
}

// writeFakeSmi creates an executable script standing in for nvidia-smi
func writeFakeSmi(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake sensor script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-nvidia-smi")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

// TestSample_MaxAcrossDevices verifies reduction to the hottest device
func TestSample_MaxAcrossDevices(t *testing.T) {
	bin := writeFakeSmi(t, "printf '75\\n90\\n82\\n'")
	s := NewNvidiaSmiSamplerWithBinary(bin, zap.NewNop())

	reading := s.Sample(context.Background())

	require.True(t, reading.Available)
	assert.Equal(t, 90.0, reading.Celsius)
}

// TestSample_IgnoresInvalidLines verifies junk lines never poison the reading
func TestSample_IgnoresInvalidLines(t *testing.T) {
	bin := writeFakeSmi(t, "printf '75\\nN/A\\n82\\n'")
	s := NewNvidiaSmiSamplerWithBinary(bin, zap.NewNop())

	reading := s.Sample(context.Background())

	require.True(t, reading.Available)
	assert.Equal(t, 82.0, reading.Celsius)
}

// TestSample_AllInvalid verifies unparsable output is unavailable, not 0.0
func TestSample_AllInvalid(t *testing.T) {
	bin := writeFakeSmi(t, "printf 'N/A\\ngarbage\\n'")
	s := NewNvidiaSmiSamplerWithBinary(bin, zap.NewNop())

	reading := s.Sample(context.Background())

	assert.False(t, reading.Available)
}

// TestSample_NonZeroExit verifies a failing tool yields unavailable
func TestSample_NonZeroExit(t *testing.T) {
	bin := writeFakeSmi(t, "echo 'driver error' >&2\nexit 1")
	s := NewNvidiaSmiSamplerWithBinary(bin, zap.NewNop())

	reading := s.Sample(context.Background())

	assert.False(t, reading.Available)
}

// TestSample_BinaryNotFound verifies a missing tool yields unavailable
func TestSample_BinaryNotFound(t *testing.T) {
	s := NewNvidiaSmiSamplerWithBinary("definitely-not-nvidia-smi-xyz", zap.NewNop())

	reading := s.Sample(context.Background())

	assert.False(t, reading.Available)
}

// TestSample_BinaryPathMissing covers the absolute-path variant of not-found
func TestSample_BinaryPathMissing(t *testing.T) {
	s := NewNvidiaSmiSamplerWithBinary(filepath.Join(t.TempDir(), "nvidia-smi"), zap.NewNop())

	reading := s.Sample(context.Background())

	assert.False(t, reading.Available)
}
