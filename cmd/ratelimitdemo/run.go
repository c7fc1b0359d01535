package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/devbali/tgrl"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "generate concurrent multi-tenant load against a limiter and report what got through",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	limiter, err := newLimiter()
	if err != nil {
		return err
	}
	defer limiter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(durationSeconds)*time.Second)
	defer cancel()

	priorities := [...]tgrl.Priority{tgrl.PriorityLow, tgrl.PriorityMid, tgrl.PriorityHigh, tgrl.PriorityUser}

	var wg sync.WaitGroup
	for tenant := 0; tenant < tenants; tenant++ {
		for w := 0; w < workers; w++ {
			wg.Add(1)
			tenantID := tgrl.TenantID(tenant % tgrl.NumTenants)
			go func() {
				defer wg.Done()
				defer registerTenant(tenantID)()
				rng := rand.New(rand.NewPCG(uint64(tenantID), uint64(w)))
				for {
					select {
					case <-ctx.Done():
						return
					default:
					}
					pri := priorities[rng.IntN(len(priorities))]
					limiter.Request(requestBytes, pri, nil, tgrl.OpWrite)
				}
			}()
		}
	}
	wg.Wait()

	var buf bytes.Buffer
	tbl := tablewriter.NewWriter(&buf)
	tbl.SetHeader([]string{"priority", "requests", "bytes through"})
	for _, pri := range priorities {
		tbl.Append([]string{
			pri.String(),
			fmt.Sprintf("%d", limiter.GetTotalRequests(pri)),
			fmt.Sprintf("%d", limiter.GetTotalBytesThrough(pri)),
		})
	}
	tbl.Render()
	fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return nil
}
