// Package probe samples GPU telemetry by running nvidia-smi.
//
// The probe asks for index, name, memory.used, memory.total and
// utilization.gpu as header-less CSV without units and turns each output
// line into a GPUSample. Lines that do not parse, or that describe an
// impossible device (used memory above total, utilization above 100%),
// are dropped individually; the rest of the batch is kept in order.
//
// Query never fails. A missing binary, a timeout, a non-zero exit status
// or output without a single valid line all yield an empty slice. The
// cause is classified with an errors.Code, logged, and counted in
// app_gpu_probe_failures_total so that a misconfigured host can be told
// apart from a transient timeout.
package probe
