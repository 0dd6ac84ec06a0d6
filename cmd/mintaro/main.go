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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mintaro-app/mintaro"
	"github.com/mintaro-app/mintaro/config"
	"github.com/mintaro-app/mintaro/database"
)

// CLI wraps the root cobra command.
type CLI struct {
	cmd *cobra.Command
}

// appInstance holds the service and its configuration for the subcommands.
type appInstance struct {
	mintaro *mintaro.Mintaro
	cnf     *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and builds the service before any subcommand
// executes.
func preRun(app *appInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		service, err := setupMintaro(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.mintaro = service
		app.cnf = cnf
		return nil
	}
}

// setupMintaro connects the datasource and builds the service. The CLI runs
// without an exchange-rate oracle; cross-currency pairs degrade to medium
// confidence, which is fine for shell-driven review.
func setupMintaro(cfg *config.Configuration) (*mintaro.Mintaro, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	service, err := mintaro.NewMintaro(db, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating mintaro: %v", err)
	}
	return service, nil
}

// NewCLI assembles the root command and its subcommands.
func NewCLI() *CLI {
	var configFile string
	app := &appInstance{}

	var rootCmd = &cobra.Command{
		Use:   "mintaro",
		Short: "Personal finance reconciliation pipeline",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./mintaro.json", "Configuration file for mintaro")
	rootCmd.PersistentPreRunE = preRun(app, &configFile)

	rootCmd.AddCommand(processPDFCommand(app))
	rootCmd.AddCommand(checkDuplicateCommand(app))
	rootCmd.AddCommand(rulesCommands(app))

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
