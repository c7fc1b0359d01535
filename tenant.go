package tgrl

// TenantSource identifies which tenant the calling goroutine's I/O should
// be charged to. It replaces the thread-local lookup
// (TG_GetThreadMetadata) the originating RocksDB code used: Go goroutines
// are not OS threads and carry no stable identity of their own, so this
// collaborator is injected as an ordinary interface rather than recovered
// from ambient per-thread state.
type TenantSource interface {
	// Current returns the calling goroutine's tenant, or one of
	// TenantUnset / TenantInvalid.
	Current() TenantID
}

// FuncTenantSource adapts a plain function to TenantSource, the same way
// http.HandlerFunc adapts a function to http.Handler. Most callers only
// need a single-method lookup (e.g. reading a tenant id out of a
// request-scoped context.Context they already carry) and shouldn't need
// to define a named type just to satisfy TenantSource.
type FuncTenantSource func() TenantID

// Current implements TenantSource.
func (f FuncTenantSource) Current() TenantID {
	return f()
}

// FixedTenantSource returns a TenantSource that always reports id,
// convenient for single-tenant callers and tests.
func FixedTenantSource(id TenantID) TenantSource {
	return FuncTenantSource(func() TenantID { return id })
}

// resolveTenant maps the raw value a TenantSource returns to either a
// concrete queueable tenant id, or reports that the request should be
// dropped (ok == false).
func resolveTenant(raw TenantID) (id TenantID, ok bool) {
	switch {
	case raw == TenantInvalid:
		return 0, false
	case raw == TenantUnset:
		return TenantFlushDefault, true
	default:
		return raw, true
	}
}
