package tgrl

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
)

// parsePriority accepts the lowercase names Priority.String() produces.
func parsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "mid":
		return PriorityMid, nil
	case "high":
		return PriorityHigh, nil
	case "user":
		return PriorityUser, nil
	default:
		return 0, fmt.Errorf("unrecognized priority %q", s)
	}
}

func TestRefillDataDriven(t *testing.T) {
	var l *MultiTenantRateLimiter
	reqs := map[string]*request{}

	datadriven.RunTest(t, "testdata/refill", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "init":
			var rate int64
			for _, arg := range td.CmdArgs {
				if arg.Key == "rate-per-period" {
					n, err := strconv.ParseInt(arg.Vals[0], 10, 64)
					if err != nil {
						return err.Error()
					}
					rate = n
				}
			}
			clk := newManualClock()
			l = newTestLimiter(t, 1, clk, 0)
			l.refillBytesPerPeriod.Store(rate)
			reqs = map[string]*request{}
			return ""

		case "enqueue":
			var tenant, pri, bytesStr, name string
			for _, arg := range td.CmdArgs {
				switch arg.Key {
				case "tenant":
					tenant = arg.Vals[0]
				case "pri":
					pri = arg.Vals[0]
				case "bytes":
					bytesStr = arg.Vals[0]
				case "name":
					name = arg.Vals[0]
				}
			}
			tenantID, err := strconv.Atoi(tenant)
			if err != nil {
				return err.Error()
			}
			priority, err := parsePriority(pri)
			if err != nil {
				return err.Error()
			}
			n, err := strconv.ParseInt(bytesStr, 10, 64)
			if err != nil {
				return err.Error()
			}
			l.mu.Lock()
			req := enqueueLocked(l, TenantID(tenantID), priority, n)
			l.mu.Unlock()
			reqs[name] = req
			return ""

		case "refill":
			l.mu.Lock()
			l.refillAndGrantLocked()
			l.mu.Unlock()
			return ""

		case "show":
			var buf strings.Builder
			names := make([]string, 0, len(reqs))
			for name := range reqs {
				names = append(names, name)
			}
			sortStrings(names)
			l.mu.Lock()
			for _, name := range names {
				fmt.Fprintf(&buf, "%s: requestBytes=%d\n", name, reqs[name].requestBytes)
			}
			for t := 0; t < NumTenants; t++ {
				if l.mu.available[t] != 0 {
					fmt.Fprintf(&buf, "available[%d]=%d\n", t, l.mu.available[t])
				}
			}
			l.mu.Unlock()
			return buf.String()

		default:
			return fmt.Sprintf("unrecognized command %q", td.Cmd)
		}
	})
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
