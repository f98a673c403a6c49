package main

import (
	"encoding/json"

	"github.com/go-go-golems/waypoint/pkg/capabilities/maps"
	"github.com/go-go-golems/waypoint/pkg/geo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCapabilitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Print the capabilities advertised to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output, _ := cmd.Flags().GetString("output")
			// the schemas do not depend on a configured provider
			reg, err := maps.NewRegistry(geo.Provider(unconfiguredProvider{}))
			if err != nil {
				return err
			}
			caps := reg.ListCapabilities()

			w := cmd.OutOrStdout()
			switch output {
			case "yaml":
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				defer func() {
					_ = enc.Close()
				}()
				return errors.Wrap(enc.Encode(caps), "could not encode capabilities")
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(caps), "could not encode capabilities")
			}
			return errors.Errorf("unknown output format %q", output)
		},
	}
	cmd.Flags().StringP("output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}
