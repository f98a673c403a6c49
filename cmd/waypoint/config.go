package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(s.Masked())
			if err != nil {
				return errors.Wrap(err, "could not encode settings")
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
