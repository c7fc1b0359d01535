package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/devbali/tgrl"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "enqueue a single burst of requests and plot bytes granted per refill period",
	RunE:  runDrain,
}

func runDrain(cmd *cobra.Command, args []string) error {
	limiter, err := newLimiter()
	if err != nil {
		return err
	}
	defer limiter.Close()

	priorities := [...]tgrl.Priority{tgrl.PriorityLow, tgrl.PriorityMid, tgrl.PriorityHigh, tgrl.PriorityUser}

	const callsPerTenant = 20
	var wg sync.WaitGroup
	for tenant := 0; tenant < tenants; tenant++ {
		tenantID := tgrl.TenantID(tenant % tgrl.NumTenants)
		for i := 0; i < callsPerTenant; i++ {
			wg.Add(1)
			pri := priorities[i%len(priorities)]
			go func() {
				defer wg.Done()
				defer registerTenant(tenantID)()
				limiter.Request(requestBytes, pri, nil, tgrl.OpWrite)
			}()
		}
	}

	samples := make([]float64, 0, 32)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var last int64
	ticker := time.NewTicker(time.Duration(refillPeriodUs) * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if len(samples) == 0 {
				samples = append(samples, 0)
			}
			fmt.Fprintln(cmd.OutOrStdout(), asciigraph.Plot(samples, asciigraph.Height(10)))
			return nil
		case <-ticker.C:
			var total int64
			for _, pri := range priorities {
				total += limiter.GetTotalBytesThrough(pri)
			}
			samples = append(samples, float64(total-last))
			last = total
		}
	}
}
