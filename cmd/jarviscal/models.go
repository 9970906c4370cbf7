package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jarviscal/internal/termview"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or switch the assistant's language model",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := a.client.ListModels(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), termview.RenderModels(models))
			return nil
		},
	}

	switchCmd := &cobra.Command{
		Use:   "switch <name>",
		Short: "Activate a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.client.SwitchModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("backend refused to switch to %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", args[0])
			return nil
		},
	}

	cmd.RunE = list.RunE
	cmd.AddCommand(list, switchCmd)
	return cmd
}
