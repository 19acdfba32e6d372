package main

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"
)

func newInfoCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show CPU features and the effective engine configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			cfg := g.engineConfig()

			fmt.Fprintf(out, "arch:          %s\n", runtime.GOARCH)
			fmt.Fprintf(out, "cpus:          %d\n", runtime.NumCPU())
			fmt.Fprintf(out, "parallel:      %t\n", cfg.Parallel.Enabled)
			fmt.Fprintf(out, "workers:       %d\n", cfg.Parallel.NumWorkers)
			fmt.Fprintf(out, "blocked from:  %d elements per group, %d blocks\n", cfg.BlockedMinGroup, cfg.Blocks)
			fmt.Fprintf(out, "cpu features:  %s\n", strings.Join(cpuFeatures(), " "))
		},
	}
}

// cpuFeatures lists the detected SIMD features relevant to float
// reductions and half-precision conversion.
func cpuFeatures() []string {
	features := map[string]bool{
		"sse4.1":     cpu.X86.HasSSE41,
		"avx":        cpu.X86.HasAVX,
		"avx2":       cpu.X86.HasAVX2,
		"fma":        cpu.X86.HasFMA,
		"avx512f":    cpu.X86.HasAVX512F,
		"avx512bf16": cpu.X86.HasAVX512BF16,
		"asimd":      cpu.ARM64.HasASIMD,
		"fphp":       cpu.ARM64.HasFPHP,
		"asimdhp":    cpu.ARM64.HasASIMDHP,
		"sve":        cpu.ARM64.HasSVE,
	}
	names := lo.Keys(lo.PickBy(features, func(_ string, ok bool) bool { return ok }))
	if len(names) == 0 {
		return []string{"none"}
	}
	slices.Sort(names)
	return names
}
