package main

import (
	"bytes"
	"runtime"
	"sync"

	"github.com/devbali/tgrl"
)

// goroutineTenants backs demoTenantSource, letting this CLI's synthetic
// load generator identify which simulated tenant a given worker goroutine
// belongs to. A real embedder almost always has its own request- or
// goroutine-scoped identifier already (a context value, a connection
// handle) and should wire tgrl.TenantSource to that directly instead of
// parsing runtime.Stack like this demo does.
var goroutineTenants sync.Map // goroutine id (string) -> tgrl.TenantID

// registerTenant associates the calling goroutine with id until the
// returned func is called.
func registerTenant(id tgrl.TenantID) func() {
	gid := currentGoroutineID()
	goroutineTenants.Store(gid, id)
	return func() { goroutineTenants.Delete(gid) }
}

func currentGoroutineID() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return ""
	}
	return string(fields[1])
}

var demoTenantSource tgrl.TenantSource = tgrl.FuncTenantSource(func() tgrl.TenantID {
	if v, ok := goroutineTenants.Load(currentGoroutineID()); ok {
		return v.(tgrl.TenantID)
	}
	return tgrl.TenantUnset
})
