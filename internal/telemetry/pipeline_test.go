package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilexec "k8s.io/utils/exec"
	testingexec "k8s.io/utils/exec/testing"

	"github.com/kubeadapt/sample-gpu-app/internal/observability"
	"github.com/kubeadapt/sample-gpu-app/internal/probe"
)

// nvidiaSMI returns an executor that answers every call with output.
func nvidiaSMI(outputs ...string) *testingexec.FakeExec {
	fe := &testingexec.FakeExec{}
	for _, out := range outputs {
		fe.CommandScript = append(fe.CommandScript, func(cmd string, args ...string) utilexec.Cmd {
			fcmd := &testingexec.FakeCmd{
				OutputScript: []testingexec.FakeAction{
					func() ([]byte, []byte, error) { return []byte(out), nil, nil },
				},
			}
			return testingexec.InitFakeCmd(fcmd, cmd, args...)
		})
	}
	return fe
}

func TestPipeline_TwoTeslaT4Rendered(t *testing.T) {
	m := observability.NewMetrics()
	fe := nvidiaSMI("0, Tesla T4, 512, 16384, 10\n1, Tesla T4, 1024, 16384, 20\n")
	p := NewPoller(probe.NewProbe(fe, "nvidia-smi", time.Second, m), m, time.Hour)

	p.tick(context.Background())

	out, err := m.Render()
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "app_gpu_available 2\n")
	assert.Contains(t, text, `app_gpu_memory_used_bytes{gpu_index="0"} 5.36870912e+08`)
	assert.Contains(t, text, `app_gpu_memory_used_bytes{gpu_index="1"} 1.073741824e+09`)
	assert.Contains(t, text, `app_gpu_utilization_percent{gpu_index="1"} 20`)
	assert.Equal(t, 1, fe.CommandCalls)
}

func TestPipeline_GPUGoneAfterFailedQuery(t *testing.T) {
	m := observability.NewMetrics()
	fe := nvidiaSMI("0, Tesla T4, 512, 16384, 10\n", "")
	p := NewPoller(probe.NewProbe(fe, "nvidia-smi", time.Second, m), m, time.Hour)

	p.tick(context.Background())
	p.tick(context.Background())

	out, err := m.Render()
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "app_gpu_available 0\n")
	assert.NotContains(t, text, `app_gpu_memory_used_bytes{gpu_index="0"}`)
	assert.Contains(t, text, `app_gpu_probe_failures_total{reason="probe_no_data"} 1`)
}
