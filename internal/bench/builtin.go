package bench

import "github.com/buckleypaul/runbench/internal/buildopt"

// Builtins returns the benchmarks shipped with the firmware examples.
func Builtins() []Benchmark {
	return []Benchmark{
		&Profile{
			ProfileName: "rtos",
			BinaryName:  "bench-rtos",
			Terminator:  []byte("Done!"),
			Use:         buildopt.AllFeatures,
		},
		&Profile{
			ProfileName: "latency",
			BinaryName:  "bench-latency",
			Use:         buildopt.Features{ShadowExceptionStacks: true},
		},
		&Profile{
			ProfileName: "coremark",
			BinaryName:  "bench-coremark",
			Terminator:  []byte("* portable_fini - system halted"),
			Use:         buildopt.Features{ShadowStacks: true, ICallSanitizer: true},
		},
		&Profile{
			ProfileName: "profile-ses",
			BinaryName:  "profile-ses",
			Use:         buildopt.Features{ShadowExceptionStacks: true},
		},
		&Profile{
			ProfileName: "profile-rtos",
			BinaryName:  "profile-rtos",
			Use:         buildopt.AllFeatures,
		},
	}
}
