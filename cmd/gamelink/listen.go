package main

import (
	"fmt"

	"github.com/qntx/gamelink/channel"
	"github.com/spf13/cobra"
)

// newListenCmd prints every envelope of the given kinds until interrupted.
func newListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen <kind>...",
		Short: "Print incoming messages of the given kinds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp(cmd)

			c, err := newChannel(a)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			for _, kind := range args {
				kind := kind
				c.On(kind, func(data channel.Payload) {
					line, err := channel.EncodeEnvelope(kind, data)
					if err != nil {
						a.Logger.Warn("Cannot print %q message: %v", kind, err)

						return
					}

					_, _ = fmt.Fprintln(out, string(line))
				})
			}

			if err := c.Connect(cmd.Context()); err != nil {
				c.Disconnect()

				return err
			}
			defer c.Disconnect()

			<-cmd.Context().Done()

			return nil
		},
	}
}
