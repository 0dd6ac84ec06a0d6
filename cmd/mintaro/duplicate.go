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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mintaro-app/mintaro"
)

// checkDuplicateCommand hashes a file and reports collisions with previously
// ingested documents without ingesting anything.
func checkDuplicateCommand(app *appInstance) *cobra.Command {
	var (
		userID          string
		paymentMethodID string
		periodStartStr  string
		periodEndStr    string
	)

	cmd := &cobra.Command{
		Use:   "check-duplicate <file>",
		Short: "Check whether a statement was already uploaded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			opts := mintaro.DuplicateCheckOptions{
				UserID:          userID,
				FileHash:        mintaro.CalculateFileHash(data),
				PaymentMethodID: paymentMethodID,
			}
			if periodStartStr != "" && periodEndStr != "" {
				start, err := time.Parse("2006-01-02", periodStartStr)
				if err != nil {
					return fmt.Errorf("invalid period-start: %v", err)
				}
				end, err := time.Parse("2006-01-02", periodEndStr)
				if err != nil {
					return fmt.Errorf("invalid period-end: %v", err)
				}
				opts.PeriodStart = &start
				opts.PeriodEnd = &end
			}

			result, err := app.mintaro.CheckForDuplicates(context.Background(), opts)
			if err != nil {
				return err
			}

			if msg := mintaro.GetDuplicateMessage(result); msg != nil {
				fmt.Fprintln(os.Stderr, *msg)
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User scope for the check")
	cmd.Flags().StringVar(&paymentMethodID, "payment-method", "", "Payment method for the period-overlap check")
	cmd.Flags().StringVar(&periodStartStr, "period-start", "", "Billing period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&periodEndStr, "period-end", "", "Billing period end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
