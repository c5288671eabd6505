package goClerk

import (
	"context"

	"github.com/MrEthical07/goClerk/internal/flows"
	"github.com/MrEthical07/goClerk/resource"
)

const environmentFlightKey = "environment"

// Environment returns the instance configuration, fetching it on the first
// call. Concurrent first callers share one request. The returned value is
// shared and must not be modified.
func (e *Engine) Environment(ctx context.Context) (*Environment, error) {
	if env := e.CachedEnvironment(); env != nil {
		e.metricInc(MetricEnvironmentCacheHit)
		return env, nil
	}
	return e.RefreshEnvironment(ctx)
}

// RefreshEnvironment fetches the instance configuration and replaces the
// cached copy. It is the only way the cache is refreshed.
func (e *Engine) RefreshEnvironment(ctx context.Context) (*Environment, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	ch := e.envGroup.DoChan(environmentFlightKey, func() (any, error) {
		env, err := flows.RunFetchEnvironment(context.WithoutCancel(ctx), e.flows.Environment)
		if err != nil {
			return nil, err
		}
		e.envMu.Lock()
		e.env = env
		e.envMu.Unlock()
		return env, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*resource.Environment), nil
	}
}

// CachedEnvironment returns the cached instance configuration without any
// I/O, or nil before the first successful fetch.
func (e *Engine) CachedEnvironment() *Environment {
	e.envMu.RLock()
	defer e.envMu.RUnlock()
	return e.env
}
