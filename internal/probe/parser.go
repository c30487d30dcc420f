package probe

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/kubeadapt/sample-gpu-app/internal/errors"
)

// queryFields is the number of columns requested from nvidia-smi.
const queryFields = 5

// ParseQueryOutput parses nvidia-smi CSV output (noheader, nounits) into
// samples. Each rejected line contributes one PROBE_PARSE_SKIP error to the
// second return value; blank lines are ignored. The returned slice is never
// nil and preserves input order. Lines have no length limit, so one oversized
// line is skipped on its own without losing the lines after it.
func ParseQueryOutput(data []byte) ([]GPUSample, []error) {
	samples := make([]GPUSample, 0)
	var skipped []error

	for i, raw := range strings.Split(string(data), "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		s, err := parseLine(line)
		if err != nil {
			skipped = append(skipped, apperrors.New(apperrors.ErrProbeParseSkip, "probe",
				fmt.Sprintf("line %d skipped", lineNo), err))
			continue
		}
		samples = append(samples, s)
	}

	return samples, skipped
}

// parseLine parses a single line:
//
//	0, Tesla T4, 512, 16384, 10
//
// Extra trailing columns are ignored.
func parseLine(line string) (GPUSample, error) {
	var s GPUSample

	parts := strings.Split(line, ",")
	if len(parts) < queryFields {
		return s, fmt.Errorf("expected %d fields, got %d", queryFields, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var nums [4]int
	for i, idx := range [4]int{0, 2, 3, 4} {
		n, err := strconv.Atoi(parts[idx])
		if err != nil {
			return s, fmt.Errorf("field %d: %w", idx, err)
		}
		nums[i] = n
	}

	s = GPUSample{
		Index:              nums[0],
		Name:               parts[1],
		MemoryUsedMB:       nums[1],
		MemoryTotalMB:      nums[2],
		UtilizationPercent: nums[3],
	}

	switch {
	case s.Index < 0:
		return GPUSample{}, fmt.Errorf("negative gpu index %d", s.Index)
	case s.MemoryUsedMB < 0 || s.MemoryUsedMB > s.MemoryTotalMB:
		return GPUSample{}, fmt.Errorf("memory used %d outside [0, %d]", s.MemoryUsedMB, s.MemoryTotalMB)
	case s.UtilizationPercent < 0 || s.UtilizationPercent > 100:
		return GPUSample{}, fmt.Errorf("utilization %d outside [0, 100]", s.UtilizationPercent)
	}

	return s, nil
}
