package main

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"strings"

	json "github.com/bytedance/sonic"
	"github.com/qntx/gamelink/gameapi"
	"github.com/qntx/gamelink/rest"
	"github.com/spf13/cobra"
)

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:       "api <get|post|put|delete> <endpoint> [json-body]",
		Short:     "Call the game HTTP API",
		Args:      cobra.RangeArgs(2, 3),
		ValidArgs: []string{"get", "post", "put", "delete"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp(cmd)

			var body any
			if len(args) == 3 {
				if !json.Valid([]byte(args[2])) {
					return fmt.Errorf("body is not valid JSON: %s", args[2])
				}

				body = stdjson.RawMessage(args[2])
			}

			s, err := gameapi.New(a.Cfg.APIURL, a.Logger,
				rest.WithTimeout(a.Cfg.Timeout),
				rest.WithDebug(a.Cfg.Debug),
				rest.WithEnvProxy(),
			)
			if err != nil {
				return err
			}

			ctx, endpoint := cmd.Context(), args[1]

			var resp gameapi.Response[stdjson.RawMessage]

			switch strings.ToLower(args[0]) {
			case "get":
				resp = gameapi.Get[stdjson.RawMessage](ctx, s, endpoint)
			case "post":
				resp = gameapi.Post[stdjson.RawMessage](ctx, s, endpoint, body)
			case "put":
				resp = gameapi.Put[stdjson.RawMessage](ctx, s, endpoint, body)
			case "delete":
				resp = gameapi.Delete[stdjson.RawMessage](ctx, s, endpoint)
			default:
				return fmt.Errorf("unknown method %q", args[0])
			}

			out, err := json.ConfigStd.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if !resp.Success {
				return errors.New(resp.Error)
			}

			return nil
		},
	}
}
