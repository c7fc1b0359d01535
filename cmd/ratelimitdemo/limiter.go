package main

import (
	"fmt"

	"github.com/devbali/tgrl"
)

// parseMode maps the --mode flag to a tgrl.Mode.
func parseMode(s string) (tgrl.Mode, error) {
	switch s {
	case "reads-only":
		return tgrl.ModeReadsOnly, nil
	case "writes-only":
		return tgrl.ModeWritesOnly, nil
	case "all":
		return tgrl.ModeAll, nil
	default:
		return 0, fmt.Errorf("unrecognized --mode %q (want reads-only, writes-only, or all)", s)
	}
}

// newLimiter builds either a MultiTenantRateLimiter or a
// SingleQueueRateLimiter from the root command's shared flags.
func newLimiter() (tgrl.RateLimiter, error) {
	mode, err := parseMode(modeFlag)
	if err != nil {
		return nil, err
	}
	opts := tgrl.Options{
		RateBytesPerSec: rateBytesPerSec,
		RefillPeriodUs:  refillPeriodUs,
		Fairness:        fairness,
		Mode:            mode,
		TenantSource:    demoTenantSource,
	}
	if single {
		return tgrl.NewSingleQueueRateLimiter(opts)
	}
	return tgrl.New(opts)
}
