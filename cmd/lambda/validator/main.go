// validator Lambda runs rule validation (and optional quality measurement)
// against an inline dataset.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/datavet-systems/datavet/internal/lambdafn"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/pkg/dataset"
)

var (
	deps     *lambdafn.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*lambdafn.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = lambdafn.Init(context.Background())
	})
	return deps, depsErr
}

// handleValidate validates the inline records and, when a quality config is
// present, measures the five quality dimensions. With a configured store the
// run and metrics are recorded; recording failures do not fail the request.
func handleValidate(ctx context.Context, d *lambdafn.Deps, req lambdafn.ValidatorRequest) (lambdafn.ValidatorResponse, error) {
	if req.Dataset == "" {
		return lambdafn.ValidatorResponse{}, fmt.Errorf("dataset is required")
	}
	if len(req.Records) == 0 {
		return lambdafn.ValidatorResponse{}, fmt.Errorf("records are required")
	}
	if len(req.Rules) == 0 {
		return lambdafn.ValidatorResponse{}, fmt.Errorf("rules are required")
	}

	var opts []dataset.Option
	if req.AsOf != nil {
		opts = append(opts, dataset.WithAsOf(*req.AsOf))
	}
	ds := dataset.FromRecords(req.Dataset, req.Records, opts...)

	result, err := d.Executor.Execute(ctx, ds, req.Rules)
	if err != nil {
		return lambdafn.ValidatorResponse{}, err
	}

	resp := lambdafn.ValidatorResponse{Result: result}

	if req.Quality != nil {
		calc, err := quality.NewFromConfig(req.Quality)
		if err != nil {
			return lambdafn.ValidatorResponse{}, err
		}
		metrics, err := calc.Measure(ds, result)
		if err != nil {
			return lambdafn.ValidatorResponse{}, fmt.Errorf("measuring quality: %w", err)
		}
		resp.Metrics = &metrics
	}

	if d.Store != nil {
		if err := d.Store.RecordRun(ctx, *result); err != nil {
			d.Logger.Warn("recording run failed", "dataset", req.Dataset, "error", err)
		}
		if resp.Metrics != nil {
			if err := d.Store.AppendMetrics(ctx, *resp.Metrics); err != nil {
				d.Logger.Warn("recording metrics failed", "dataset", req.Dataset, "error", err)
			}
		}
	}

	return resp, nil
}

func handler(ctx context.Context, req lambdafn.ValidatorRequest) (lambdafn.ValidatorResponse, error) {
	d, err := getDeps()
	if err != nil {
		return lambdafn.ValidatorResponse{}, err
	}
	return handleValidate(ctx, d, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
