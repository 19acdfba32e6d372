package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/born-ml/bnorm/internal/serialization"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func newInspectCmd(g *globalOptions) *cobra.Command {
	var skipChecksum bool
	cmd := &cobra.Command{
		Use:   "inspect <checkpoint>",
		Short: "Print a checkpoint's header and array summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ckpt, err := serialization.ReadFile(args[0], serialization.ReaderOptions{
				SkipChecksumValidation: skipChecksum,
			})
			if err != nil {
				return err
			}
			g.logger.Debug("read checkpoint", "path", args[0], "arrays", len(ckpt.Arrays))
			printCheckpoint(cmd.OutOrStdout(), ckpt)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "do not verify the data checksum")
	return cmd
}

func printCheckpoint(out io.Writer, ckpt *serialization.Checkpoint) {
	h := ckpt.Header
	fmt.Fprintf(out, "format:   v%d (written by %s at %s)\n", h.FormatVersion, h.ToolVersion, h.CreatedAt.Format("2006-01-02 15:04:05Z"))
	fmt.Fprintf(out, "flags:    %#x\n", ckpt.Flags)

	if l := h.Layer; l != nil {
		fmt.Fprintf(out, "layer:    %s features=%d epsilon=%g momentum=%g dtype=%s layout=%s shape=%v\n",
			l.Mode, l.NumFeatures, l.Epsilon, l.Momentum, l.DType, l.Layout, l.Shape)
	}
	if c := h.CheckpointMeta; c != nil {
		fmt.Fprintf(out, "training: epoch=%d step=%d loss=%.6g optimizer=%s %v\n",
			c.Epoch, c.Step, c.Loss, c.OptimizerType, c.OptimizerConfig)
	}
	if len(h.Metadata) > 0 {
		keys := lo.Keys(h.Metadata)
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "meta:     %s=%s\n", k, h.Metadata[k])
		}
	}

	fmt.Fprintf(out, "%-24s %6s %12s %12s %12s\n", "array", "len", "min", "max", "mean")
	for _, name := range ckpt.Names() {
		a := ckpt.Arrays[name]
		if len(a) == 0 {
			fmt.Fprintf(out, "%-24s %6d\n", name, 0)
			continue
		}
		fmt.Fprintf(out, "%-24s %6d %12.5g %12.5g %12.5g\n",
			name, len(a), floats.Min(a), floats.Max(a), stat.Mean(a, nil))
	}
}
