package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goClerk/internal/pipeline"
	"github.com/MrEthical07/goClerk/resource"
)

type EnvironmentDeps struct {
	Send      func(context.Context, pipeline.Request, any) error
	MetricInc func(int)
	Metric    int
}

// RunFetchEnvironment loads the instance configuration. It never touches the
// Client.
func RunFetchEnvironment(ctx context.Context, deps EnvironmentDeps) (*resource.Environment, error) {
	if deps.MetricInc != nil {
		deps.MetricInc(deps.Metric)
	}
	var env resource.Environment
	if err := deps.Send(ctx, pipeline.Request{Method: http.MethodGet, Path: "/v1/environment"}, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
