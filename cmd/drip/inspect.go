package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xraph/drip"
	"github.com/xraph/drip/access"
	"github.com/xraph/drip/event"
	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

// newInspectCmd reads state straight from the configured store. Badger
// holds a directory lock, so stop the server first.
func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read streams, events and roles from the store",
	}

	var (
		streamFilter uint64
		limit        int
		sender       string
		recipient    string
	)

	withEngine := func(cmd *cobra.Command, fn func(e *drip.Engine, w io.Writer) error) error {
		cfg, err := loadConfig(v)
		if err != nil {
			return err
		}
		logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
		st, err := openStore(cmd.Context(), cfg.Store, logger)
		if err != nil {
			return err
		}
		clock, err := newClock(cfg.Clock)
		if err != nil {
			_ = st.Close()
			return err
		}
		e := drip.New(st,
			drip.WithClock(clock),
			drip.WithLogger(logger),
			drip.WithEscrowAccount(types.Identity(cfg.Engine.EscrowAccount)),
			drip.WithTreasuryAccount(types.Identity(cfg.Engine.TreasuryAccount)),
		)
		defer e.Stop()
		return fn(e, cmd.OutOrStdout())
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print global counters and limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(e *drip.Engine, w io.Writer) error {
				s, err := e.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(w, s)
			})
		},
	}

	show := &cobra.Command{
		Use:   "stream <id>",
		Short: "Print one stream and what is claimable now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("stream id: %w", err)
			}
			return withEngine(cmd, func(e *drip.Engine, w io.Writer) error {
				s, err := e.GetStream(cmd.Context(), id)
				if err != nil {
					return err
				}
				c, err := e.ClaimableNow(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(w, map[string]any{"stream": s, "claimable": c})
			})
		},
	}

	list := &cobra.Command{
		Use:   "streams",
		Short: "List streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(e *drip.Engine, w io.Writer) error {
				streams, err := e.ListStreams(cmd.Context(), stream.ListOpts{
					Sender:    types.Identity(sender),
					Recipient: types.Identity(recipient),
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				return printJSON(w, streams)
			})
		},
	}
	list.Flags().StringVar(&sender, "sender", "", "Only streams from this sender")
	list.Flags().StringVar(&recipient, "recipient", "", "Only streams to this recipient")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum number of records")

	events := &cobra.Command{
		Use:   "events",
		Short: "Print the event log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd, func(e *drip.Engine, w io.Writer) error {
				evs, err := e.ListEvents(cmd.Context(), event.ListOpts{StreamID: streamFilter, Limit: limit})
				if err != nil {
					return err
				}
				return printJSON(w, evs)
			})
		},
	}
	events.Flags().Uint64Var(&streamFilter, "stream", 0, "Only events of this stream")
	events.Flags().IntVar(&limit, "limit", 50, "Maximum number of records")

	roles := &cobra.Command{
		Use:   "roles <role>",
		Short: "List holders of a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := access.ParseRole(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, func(e *drip.Engine, w io.Writer) error {
				holders, err := e.ListRoleHolders(cmd.Context(), role)
				if err != nil {
					return err
				}
				return printJSON(w, holders)
			})
		},
	}

	cmd.AddCommand(stats, show, list, events, roles)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
