package environment

import (
	"context"

	szruntime "github.com/wippyai/sz-runtime"
	"github.com/wippyai/sz-runtime/native"
)

// Diagnostic is the repository health and maintenance hub.
type Diagnostic struct {
	caller
}

// GetRepositoryInfo describes the data stores behind the repository.
func (d *Diagnostic) GetRepositoryInfo(ctx context.Context) (string, error) {
	return d.text(ctx, func(api native.API) native.StringResult {
		return api.DiagnosticGetRepositoryInfo()
	})
}

// CheckRepositoryPerformance runs an insert benchmark against the repository
// for the given number of seconds and reports the result.
func (d *Diagnostic) CheckRepositoryPerformance(ctx context.Context, secondsToRun int64) (string, error) {
	return d.text(ctx, func(api native.API) native.StringResult {
		return api.DiagnosticCheckRepositoryPerformance(secondsToRun)
	})
}

// GetFeature returns a stored feature value by id.
func (d *Diagnostic) GetFeature(ctx context.Context, id szruntime.FeatureID) (string, error) {
	return d.text(ctx, func(api native.API) native.StringResult {
		return api.DiagnosticGetFeature(int64(id))
	})
}

// PurgeRepository deletes all loaded records from the repository. Registered
// configurations survive; there is no undo for the records.
func (d *Diagnostic) PurgeRepository(ctx context.Context) error {
	return d.rc(ctx, func(api native.API) int64 {
		return api.DiagnosticPurgeRepository()
	})
}
