package sim

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Frame scan policies for FrameAllocator.
const (
	ScanFirstFit = "first-fit" // scan from frame 0 on every fault
	ScanNextFit  = "next-fit"  // resume after the last allocated frame; cursor starts at 0
)

// ValidScanPolicies is the set of recognized frame scan policy names.
var ValidScanPolicies = map[string]bool{"": true, ScanFirstFit: true, ScanNextFit: true}

// Config groups every tunable of a simulation run. Zero values are not
// meaningful; start from DefaultConfig and override.
type Config struct {
	MaxConcurrent  int    `yaml:"max_concurrent"`  // live workers at any time
	TotalTarget    int    `yaml:"total_target"`    // workers spawned over the whole run
	PageCount      int    `yaml:"page_count"`      // pages per worker address space
	PageSize       int    `yaml:"page_size"`       // bytes per page and per frame
	FrameCount     int    `yaml:"frame_count"`     // physical frames
	ReferenceLimit int    `yaml:"reference_limit"` // references a worker makes before terminating
	Scheme         string `yaml:"scheme"`          // "uniform" or "weighted"
	ScanPolicy     string `yaml:"scan_policy"`     // "first-fit" or "next-fit"

	AccessCostNs       uint32 `yaml:"access_cost_ns"`        // charged on every memory access
	FaultPenaltyNs     uint32 `yaml:"fault_penalty_ns"`      // charged on every page fault
	WriteBackPenaltyNs uint32 `yaml:"write_back_penalty_ns"` // charged when a dirty victim is evicted; 0 disables
	IdleTickMaxNs      uint32 `yaml:"idle_tick_max_ns"`      // upper bound of the random idle tick
	SpawnJitterMaxNs   int64  `yaml:"spawn_jitter_max_ns"`   // upper bound of the spawn gate threshold

	Timeout time.Duration `yaml:"timeout"` // wall-clock time before no more workers are spawned
	Seed    int64         `yaml:"seed"`
	Debug   bool          `yaml:"debug"` // dump reference and LRU lists after every exchange
}

// DefaultConfig returns the stock simulation constants.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:      18,
		TotalTarget:        40,
		PageCount:          32,
		PageSize:           1024,
		FrameCount:         256,
		ReferenceLimit:     1000,
		Scheme:             SchemeUniform.String(),
		ScanPolicy:         ScanNextFit,
		AccessCostNs:       1_000_000,
		FaultPenaltyNs:     10_000_000,
		WriteBackPenaltyNs: 0,
		IdleTickMaxNs:      1000,
		SpawnJitterMaxNs:   500 * 1_000_001,
		Timeout:            2 * time.Second,
		Seed:               42,
	}
}

// Validate checks sizes and policy names.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrent <= 0:
		return fmt.Errorf("%w: max_concurrent must be positive, got %d", ErrInvalidConfig, c.MaxConcurrent)
	case c.TotalTarget <= 0:
		return fmt.Errorf("%w: total_target must be positive, got %d", ErrInvalidConfig, c.TotalTarget)
	case c.PageCount <= 0:
		return fmt.Errorf("%w: page_count must be positive, got %d", ErrInvalidConfig, c.PageCount)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	case c.FrameCount <= 0:
		return fmt.Errorf("%w: frame_count must be positive, got %d", ErrInvalidConfig, c.FrameCount)
	case c.ReferenceLimit < 0:
		return fmt.Errorf("%w: reference_limit must be non-negative, got %d", ErrInvalidConfig, c.ReferenceLimit)
	case c.SpawnJitterMaxNs < 0:
		return fmt.Errorf("%w: spawn_jitter_max_ns must be non-negative, got %d", ErrInvalidConfig, c.SpawnJitterMaxNs)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must be non-negative, got %s", ErrInvalidConfig, c.Timeout)
	}
	if uint64(c.PageCount)*uint64(c.PageSize) > 1<<32 {
		return fmt.Errorf("%w: address space %d*%d overflows 32 bits", ErrInvalidConfig, c.PageCount, c.PageSize)
	}
	if _, err := ParseScheme(c.Scheme); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !ValidScanPolicies[c.ScanPolicy] {
		return fmt.Errorf("%w: unknown scan policy %q", ErrInvalidConfig, c.ScanPolicy)
	}
	return nil
}

// AddressSpace returns the size in bytes of one worker's virtual address space.
func (c Config) AddressSpace() int {
	return c.PageCount * c.PageSize
}
