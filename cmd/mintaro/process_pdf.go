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

	"github.com/spf13/cobra"

	"github.com/mintaro-app/mintaro"
)

// processPDFCommand runs one statement PDF through the pipeline and prints the
// result as JSON.
func processPDFCommand(app *appInstance) *cobra.Command {
	var (
		userID     string
		parserKey  string
		skipMatch  bool
		includeRaw bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "process-pdf <file>",
		Short: "Extract and reconcile transactions from a statement PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			fileHash := mintaro.CalculateFileHash(data)

			dupes, err := app.mintaro.CheckForDuplicates(ctx, mintaro.DuplicateCheckOptions{
				UserID:   userID,
				FileHash: fileHash,
			})
			if err != nil {
				return err
			}
			if msg := mintaro.GetDuplicateMessage(dupes); msg != nil {
				fmt.Fprintln(os.Stderr, *msg)
				if !dupes.CanProceed {
					return fmt.Errorf("duplicate document, aborting")
				}
			}

			result, err := app.mintaro.ProcessPDF(ctx, data, mintaro.ProcessPDFOptions{
				Parser:         parserKey,
				SkipMatching:   skipMatch,
				IncludeRawText: includeRaw,
				UserID:         userID,
			})
			if err != nil {
				return err
			}

			if !dryRun && !skipMatch {
				for _, set := range result.Matches {
					best := set.Best()
					if best == nil || !set.AutoApprovable {
						continue
					}
					if err := app.mintaro.RecordConfirmedMatch(ctx, userID, best.LedgerTransactionID, set.CandidateID, dryRun); err != nil {
						return err
					}
				}
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User whose ledger is matched against")
	cmd.Flags().StringVar(&parserKey, "parser", "", "Force a specific statement parser")
	cmd.Flags().BoolVar(&skipMatch, "skip-matching", false, "Extract only, do not rank against the ledger")
	cmd.Flags().BoolVar(&includeRaw, "raw-text", false, "Include extracted text in the output")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview without writing match references")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
