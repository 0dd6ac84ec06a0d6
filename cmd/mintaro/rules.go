/*
Copyright 2024 Mintaro Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// rulesCommands manages the live classification rule set.
func rulesCommands(app *appInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and manage classification rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(app.mintaro.Rules().Rules(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the built-in default rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.mintaro.Rules().Reset()
			fmt.Println("classification rules reset to defaults")
			return nil
		},
	})

	var enable, disable string
	toggle := &cobra.Command{
		Use:   "toggle",
		Short: "Enable or disable a rule by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable != "" {
				return app.mintaro.Rules().SetEnabled(enable, true)
			}
			if disable != "" {
				return app.mintaro.Rules().SetEnabled(disable, false)
			}
			return fmt.Errorf("pass --enable or --disable with a rule id")
		},
	}
	toggle.Flags().StringVar(&enable, "enable", "", "Rule id to enable")
	toggle.Flags().StringVar(&disable, "disable", "", "Rule id to disable")
	cmd.AddCommand(toggle)

	return cmd
}
