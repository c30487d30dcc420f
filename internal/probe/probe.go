package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	utilexec "k8s.io/utils/exec"

	apperrors "github.com/kubeadapt/sample-gpu-app/internal/errors"
	"github.com/kubeadapt/sample-gpu-app/internal/observability"
)

const component = "probe"

// queryArgs requests the GPUSample columns as bare CSV.
var queryArgs = []string{
	"--query-gpu=index,name,memory.used,memory.total,utilization.gpu",
	"--format=csv,noheader,nounits",
}

// Probe implements Querier by running nvidia-smi (or a compatible command).
type Probe struct {
	exec    utilexec.Interface
	command string
	timeout time.Duration
	metrics *observability.Metrics
}

// NewProbe creates a Probe that runs command through execer with the given
// per-invocation timeout.
func NewProbe(execer utilexec.Interface, command string, timeout time.Duration, metrics *observability.Metrics) *Probe {
	return &Probe{
		exec:    execer,
		command: command,
		timeout: timeout,
		metrics: metrics,
	}
}

// Query runs the probe once. Failures are logged and counted, never returned.
func (p *Probe) Query(ctx context.Context) []GPUSample {
	start := time.Now()
	samples, err := p.query(ctx)
	p.metrics.GPUProbeDuration.WithLabelValues().Observe(time.Since(start).Seconds())

	if err != nil {
		code := apperrors.CodeOf(err)
		p.metrics.GPUProbeFailures.WithLabelValues(code.Reason()).Inc()
		if code == apperrors.ErrProbeNotFound {
			// Expected on hosts without a GPU driver; stays out of the default log.
			slog.Debug("gpu probe unavailable", "code", code, "error", err)
		} else {
			slog.Warn("gpu probe failed", "code", code, "error", err)
		}
		return []GPUSample{}
	}
	return samples
}

func (p *Probe) query(ctx context.Context) ([]GPUSample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.exec.CommandContext(ctx, p.command, queryArgs...).Output()
	if err != nil {
		return nil, p.classify(ctx, err)
	}

	samples, skipped := ParseQueryOutput(out)
	for _, e := range skipped {
		slog.Warn("gpu probe: dropped output line", "code", apperrors.CodeOf(e), "error", e)
	}
	if len(samples) == 0 {
		return nil, apperrors.New(apperrors.ErrProbeNoData, component,
			fmt.Sprintf("%s returned no usable lines", p.command), nil)
	}
	return samples, nil
}

// classify maps an execution error onto the probe taxonomy. The context is
// checked first because a killed process also reports a non-zero exit.
func (p *Probe) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return apperrors.New(apperrors.ErrProbeTimeout, component,
				fmt.Sprintf("%s did not finish within %v", p.command, p.timeout), err)
		}
		return apperrors.New(apperrors.ErrProbeExecFailed, component, "probe canceled", ctxErr)
	}

	if errors.Is(err, utilexec.ErrExecutableNotFound) {
		return apperrors.New(apperrors.ErrProbeNotFound, component,
			fmt.Sprintf("%s not found", p.command), err)
	}

	var exitErr utilexec.ExitError
	if errors.As(err, &exitErr) {
		return apperrors.New(apperrors.ErrProbeExitStatus, component,
			fmt.Sprintf("%s exited with status %d", p.command, exitErr.ExitStatus()), err)
	}

	return apperrors.New(apperrors.ErrProbeExecFailed, component,
		fmt.Sprintf("run %s", p.command), err)
}
