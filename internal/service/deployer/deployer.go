package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/oshokin/ac-deploy/internal/config"
	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/domain/deployment"
	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/transport/remote"
)

// ErrHealthCheck is returned when the service does not settle in "active".
var ErrHealthCheck = errors.New("health check failed")

var (
	errOptionsRequired   = errors.New("deployment options are required")
	errStoreRequired     = errors.New("object store is required")
	errTransportRequired = errors.New("remote transport is required")
)

// Store is the object store the run publishes unit archives to.
type Store interface {
	// Exists reports whether objectPath is stored. It never fails.
	Exists(ctx context.Context, objectPath string) bool
	// Upload stores localFile at objectPath and returns its public URL.
	Upload(ctx context.Context, localFile, objectPath string) (string, error)
	// PublicURL returns the download URL of objectPath.
	PublicURL(objectPath string) string
}

// Options are inputs of a single run.
type Options struct {
	// Config is validated by Run and never modified.
	Config *config.Config
	// ArchivePath is the server pack to deploy.
	ArchivePath string
	// Baseline lists the stock content. DefaultBaseline is used when nil.
	Baseline *content.Baseline
	Store    Store
	// Transport reaches the host named by Config.Target.
	Transport remote.Transport
}

// Report describes the outcome of a run.
type Report struct {
	RunID string
	// Operator is user@hostname of the machine running the deployment.
	Operator string
	State    deployment.State
	History  []deployment.Transition
	// ScanErr is set when the archive could not be read. The run then ends
	// Idle with nothing deployed.
	ScanErr error
	// Units are the non-baseline units found in the archive.
	Units []content.Unit
	// Uploaded were published by this run, Existing were already stored.
	Uploaded []content.Unit
	Existing []content.Unit
	// Failed could not be packaged or uploaded, Missing had no local directory.
	Failed  []content.Unit
	Missing []content.Unit
	// ManifestPath is the manifest inside the extracted pack.
	ManifestPath string
	// ManifestAdded lists the units that got a new url.
	ManifestAdded []content.Unit
	// Damaged lists the live directories a failed replacement already
	// removed or swapped. They need manual repair.
	Damaged []string
	// Diagnosis is set when the run failed after the service was touched.
	Diagnosis *Diagnosis
	// Err is the cause of a Failed run.
	Err error
}

// Succeeded reports whether the run ended healthy or had nothing to do.
func (r *Report) Succeeded() bool {
	return r.State == deployment.Healthy || (r.State == deployment.Idle && r.Err == nil)
}

// Run executes one deployment. The returned report is never nil; the error is
// set when the run ended in Failed or could not start.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	runID := uuid.NewString()
	operator := detectOperator()
	ctx = logger.WithKV(logger.WithName(ctx, "deployer"), "run_id", runID, "operator", operator)

	report := &Report{RunID: runID, Operator: operator, State: deployment.Idle}

	r, err := newRunner(opts, report)
	if err != nil {
		report.Err = err

		return report, err
	}

	warnIfAlreadyRunning(ctx)

	err = r.run(ctx)

	report.State = r.lifecycle.State()
	report.History = r.lifecycle.History()

	if err != nil {
		report.Err = err
		logger.ErrorKV(ctx, "Deployment failed", "state", report.State, "error", err)

		return report, err
	}

	logger.InfoKV(ctx, "Deployment finished", "state", report.State)

	return report, nil
}

// runner holds the state of a single run.
type runner struct {
	cfg        *config.Config
	archive    string
	baseline   *content.Baseline
	store      Store
	transport  remote.Transport
	target     remote.Target
	signatures []Signature
	lifecycle  *deployment.Lifecycle
	report     *Report
	// serviceTouched is set once the stop command was issued.
	serviceTouched bool
}

func newRunner(opts *Options, report *Report) (*runner, error) {
	if opts == nil || opts.Config == nil {
		return nil, errOptionsRequired
	}

	if err := config.Validate(opts.Config); err != nil {
		return nil, err
	}

	if opts.Store == nil {
		return nil, errStoreRequired
	}

	if opts.Transport == nil {
		return nil, errTransportRequired
	}

	signatures, err := CompileSignatures(opts.Config.Service.FailureSignatures)
	if err != nil {
		return nil, err
	}

	baseline := opts.Baseline
	if baseline == nil {
		baseline = content.DefaultBaseline()
	}

	t := opts.Config.Target

	return &runner{
		cfg:        opts.Config,
		archive:    opts.ArchivePath,
		baseline:   baseline,
		store:      opts.Store,
		transport:  opts.Transport,
		target:     remote.Target{Host: t.Host, Zone: t.Zone, Project: t.Project, Principal: t.Principal},
		signatures: signatures,
		lifecycle:  deployment.NewLifecycle(),
		report:     report,
	}, nil
}

// run walks the run sequence:
// 1) Find new units.
// 2) Publish their archives.
// 3) Extract the pack and merge the manifest.
// 4) Stage the pack on the host.
// 5) Stop the service, replace directories, start it.
// 6) Wait for the service to become active.
func (r *runner) run(ctx context.Context) error {
	units := r.scan(ctx)
	if len(units) == 0 {
		logger.Info(ctx, "Nothing to deploy")

		return nil
	}

	r.publish(ctx, units)

	if err := r.prepare(ctx); err != nil {
		return r.fail(ctx, err)
	}

	if err := r.copyPack(ctx); err != nil {
		return r.fail(ctx, fmt.Errorf("stage pack: %w", err))
	}

	if err := r.advance(ctx, deployment.Staged); err != nil {
		return r.fail(ctx, err)
	}

	steps := []struct {
		state deployment.State
		do    func(context.Context) error
	}{
		{deployment.ServiceStopping, r.stopService},
		{deployment.DirectoriesReplacing, r.replaceDirectories},
		{deployment.ServiceStarting, r.startService},
		{deployment.HealthChecking, r.checkHealth},
	}

	for _, step := range steps {
		if err := r.advance(ctx, step.state); err != nil {
			return r.fail(ctx, err)
		}

		if err := step.do(ctx); err != nil {
			return r.fail(ctx, fmt.Errorf("%s: %w", step.state, err))
		}
	}

	return r.advance(ctx, deployment.Healthy)
}

func (r *runner) advance(ctx context.Context, state deployment.State) error {
	if err := r.lifecycle.Advance(state); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Entered state", "state", state)

	return nil
}

// fail moves to Failed and diagnoses the service when it was touched.
func (r *runner) fail(ctx context.Context, cause error) error {
	r.lifecycle.Fail(cause)

	if !r.serviceTouched {
		return cause
	}

	d := r.diagnose(ctx)
	r.report.Diagnosis = &d

	logger.ErrorKV(ctx, "Service failure diagnosed", "cause", d.Cause, "line", d.Line)

	return fmt.Errorf("%w (diagnosis: %s)", cause, d)
}
