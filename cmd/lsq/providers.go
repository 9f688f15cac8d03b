package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Keyring-Network/keyring-gavryn/livesearch/internal/secrets"
)

func newProvidersCmd() *cobra.Command {
	var visionOnly bool
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List supported LLM providers and their models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			file, err := loadKeysFile(cfg.KeysFile)
			if err != nil {
				return err
			}
			keys := secrets.NewKeyring(file, nil, nil)
			out := cmd.OutOrStdout()
			for _, spec := range newCatalog().Providers() {
				if visionOnly && len(spec.VisionModels) == 0 {
					continue
				}
				hasKey := keys.GetAPIKey(cmd.Context(), spec.ID, "") != ""
				fmt.Fprintln(out, renderProvider(spec, hasKey))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&visionOnly, "vision", false, "only list providers with vision models")
	return cmd
}
