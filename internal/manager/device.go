package manager

import (
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ocrd/internal/engine"
)

// DeviceInfo describes the detected accelerator, if any.
type DeviceInfo struct {
	Available bool
	Name      string
	// ComputeCap is the accelerator capability tier, e.g. 8.6; zero when
	// unknown or no accelerator is present.
	ComputeCap float64
}

// DetectDevice probes for an NVIDIA accelerator via nvidia-smi. Absence of
// the tool or any query failure means CPU-only.
func DetectDevice(log zerolog.Logger) DeviceInfo {
	out, err := exec.Command("nvidia-smi", "--query-gpu=name,compute_cap", "--format=csv,noheader").Output()
	if err != nil {
		log.Warn().Msg("no accelerator detected, inference will use CPU (this will be slow)")
		return DeviceInfo{}
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if line == "" {
		return DeviceInfo{}
	}
	info := DeviceInfo{Available: true, Name: line}
	if parts := strings.Split(line, ","); len(parts) == 2 {
		info.Name = strings.TrimSpace(parts[0])
		if cc, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
			info.ComputeCap = cc
		}
	}
	log.Info().Str("gpu", info.Name).Float64("compute_cap", info.ComputeCap).Msg("accelerator detected")
	return info
}

// placement maps the device preference and detected hardware to an engine
// placement. A caller preference of cpu always wins; gpu requested without
// hardware falls back to CPU. Modern accelerators (capability >= 8.0) get
// bf16, older ones f16, CPU stays at f32.
func placement(pref string, dev DeviceInfo) engine.Placement {
	if pref == "cpu" || !dev.Available {
		return engine.Placement{Device: "cpu", DType: "f32"}
	}
	dtype := "f16"
	if dev.ComputeCap >= 8.0 {
		dtype = "bf16"
	}
	return engine.Placement{Device: "cuda", DType: dtype}
}
