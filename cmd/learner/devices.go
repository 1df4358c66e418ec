package main

import (
	"fmt"

	"github.com/born-ml/learner/internal/device"
	"github.com/born-ml/learner/internal/parallel"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Show the CPU and the visible accelerators",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		cpu := device.DescribeCPU()
		fmt.Fprintf(out, "cpu:     %s\n", cpu)
		fmt.Fprintf(out, "workers: %d\n", parallel.DefaultConfig().NumWorkers)

		runtimes := device.Available()
		if len(runtimes) == 0 {
			fmt.Fprintln(out, "accelerators: none compiled in (build with -tags webgpu or -tags cuda)")
			return nil
		}
		for _, e := range runtimes {
			n, err := e.Count()
			if err != nil {
				fmt.Fprintf(out, "%s: unavailable (%v)\n", e.Name(), err)
				continue
			}
			fmt.Fprintf(out, "%s: %d device(s)\n", e.Name(), n)
		}
		fmt.Fprintf(out, "selected: %s\n", device.Detect().Name())
		return nil
	},
}
