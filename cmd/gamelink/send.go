package main

import (
	stdjson "encoding/json"
	"fmt"

	json "github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <kind> [json-payload]",
		Short: "Send one message and disconnect",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := stdjson.RawMessage("null")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("payload is not valid JSON: %s", args[1])
				}

				payload = stdjson.RawMessage(args[1])
			}

			c, err := newChannel(getApp(cmd))
			if err != nil {
				return err
			}
			defer c.Disconnect()

			if err := c.Connect(cmd.Context()); err != nil {
				return err
			}

			return c.Send(args[0], payload)
		},
	}
}
