package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/born-ml/learner/internal/checkpoint"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <checkpoint>",
	Short: "Print a checkpoint summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := checkpoint.Load(args[0])
		if err != nil {
			return err
		}

		summary := summarize(c)
		out := cmd.OutOrStdout()
		if inspectFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		fmt.Fprintf(out, "step:    %d\n", summary.Step)
		fmt.Fprintf(out, "created: %s\n", summary.CreatedAt)
		for _, k := range sortedKeys(summary.Metadata) {
			fmt.Fprintf(out, "%s: %s\n", k, summary.Metadata[k])
		}
		for _, m := range summary.Modules {
			fmt.Fprintf(out, "module %s (%d parameters, %d optimizer tensors)\n", m.ID, m.Parameters, m.OptimizerTensors)
			for _, p := range m.Tensors {
				fmt.Fprintf(out, "  %-24s %v\n", p.Name, p.Shape)
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "output format (text, json)")
}

type checkpointSummary struct {
	Step      int64             `json:"step"`
	CreatedAt string            `json:"created_at"`
	Metadata  map[string]string `json:"metadata"`
	Modules   []moduleSummary   `json:"modules"`
}

type moduleSummary struct {
	ID               string          `json:"id"`
	Parameters       int             `json:"parameters"`
	OptimizerTensors int             `json:"optimizer_tensors"`
	Tensors          []tensorSummary `json:"tensors"`
}

type tensorSummary struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

func summarize(c *checkpoint.Checkpoint) checkpointSummary {
	s := checkpointSummary{
		Step:      c.Step,
		CreatedAt: c.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		Metadata:  c.Metadata,
	}
	for _, id := range c.Modules {
		weights := c.Weights[id]
		m := moduleSummary{ID: id, OptimizerTensors: len(c.Optimizer[id])}
		for _, name := range sortedKeys(weights) {
			arr := weights[name]
			m.Parameters += arr.NumElements()
			m.Tensors = append(m.Tensors, tensorSummary{Name: name, Shape: arr.Shape})
		}
		s.Modules = append(s.Modules, m)
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
