package main

import (
	"fmt"
	"net"

	"github.com/born-ml/learner/internal/dist"
	"github.com/spf13/cobra"
)

var (
	rendezvousListen    string
	rendezvousNamespace string
)

var rendezvousCmd = &cobra.Command{
	Use:   "rendezvous",
	Short: "Run the socket.io rendezvous server for multi-process training",
	Long: `Run the server that "learner train --rendezvous" workers join.

Each gradient collective is gathered per group and round, averaged, and
returned to every member. A member that disconnects breaks its group.`,
	Example: `  learner rendezvous --listen :3000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ln, err := net.Listen("tcp", rendezvousListen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", rendezvousListen, err)
		}
		return dist.NewRendezvous(ctx, rendezvousNamespace).Serve(ctx, ln)
	},
}

func init() {
	rendezvousCmd.Flags().StringVar(&rendezvousListen, "listen", ":3000", "address to listen on")
	rendezvousCmd.Flags().StringVar(&rendezvousNamespace, "namespace", "/", "socket.io namespace")
}
