package main

import (
	"fmt"
	"runtime"

	"github.com/born-ml/bnorm/internal/serialization"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bnorm %s (checkpoint format v%d, %s %s/%s)\n",
				version, serialization.FormatVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
