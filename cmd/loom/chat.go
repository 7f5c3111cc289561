package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/loom/pkg/events"
)

func newChatCommand() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "chat <tree-id> <node-id> <prompt>",
		Short: "Send a prompt on a node and stream the response to the terminal",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			treeID, err := parseTreeArg(args[0])
			if err != nil {
				return err
			}
			nodeID, err := parseNodeArg(args[1])
			if err != nil {
				return err
			}
			prompt := args[2]

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()

			if _, err := engine.LoadCanvas(ctx); err != nil {
				return err
			}

			changes, err := bus.Subscribe(ctx)
			if err != nil {
				return err
			}

			eg, egCtx := errgroup.WithContext(ctx)

			eg.Go(func() error {
				defer cancel()
				return engine.SendMessage(egCtx, treeID, nodeID, prompt, model)
			})

			printed := 0
			eg.Go(func() error {
				for {
					select {
					case <-egCtx.Done():
						return nil
					case ev, ok := <-changes:
						if !ok {
							return nil
						}
						switch ev.Kind {
						case events.ChangeNodeStreaming:
							if ev.NodeID != nodeID {
								continue
							}
							text, streaming := engine.StreamingText(nodeID)
							if !streaming || len(text) <= printed {
								continue
							}
							fmt.Fprint(out, text[printed:])
							printed = len(text)
						case events.ChangeError:
							if ev.Error != "" {
								fmt.Fprintf(errOut, "\nerror: %s\n", ev.Error)
							}
						}
					}
				}
			})

			if err := eg.Wait(); err != nil {
				return err
			}

			// the overlay is gone once the stream settles; print the canonical
			// remainder so text the subscriber never drained is not swallowed
			if node := engine.NodeByID(treeID, nodeID); node != nil && len(node.Response) > printed {
				fmt.Fprintln(out, node.Response[printed:])
			} else if printed > 0 {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model identifier to generate with")

	return cmd
}
