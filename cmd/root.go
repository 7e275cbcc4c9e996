/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/amrplot/InputParameters"
	"github.com/notargets/amrplot/plotfile"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "amrplot",
	Short: "Inspect and read AMR plotfiles",
	Long: `
Reads the Header, the level cell headers and the binary box records of AMR
plotfiles. Box data can be selected by field, level and box, exported to .npy,
and the box table exported to SQLite.

amrplot info plt00100
amrplot read plt00100 --level 1 --fields density,temp --npy out/plt00100`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.amrplot.yaml)")
	rootCmd.PersistentFlags().StringP("inputParameters", "I", "", "YAML file for read parameters like:\n\t- LimitLevel\n\t- Fields")
	rootCmd.PersistentFlags().IntP("parallel", "p", 0, "number of concurrent box readers, 0 uses every CPU")
	rootCmd.PersistentFlags().Bool("validate", false, "report header and cell header failures with a full diagnostic")
	rootCmd.PersistentFlags().String("logLevel", "warning", "log level: debug, info, warning, error")
	for _, name := range []string{"parallel", "validate", "logLevel"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".amrplot" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".amrplot")
	}

	viper.SetEnvPrefix("AMRPLOT")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	level, err := logrus.ParseLevel(viper.GetString("logLevel"))
	if err != nil {
		logger.WithError(err).Warn("unknown log level, using warning")
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	return logger
}

// readParameters loads the read parameters file named by -I, an empty
// parameter set when none is given.
func readParameters(cmd *cobra.Command) (pp *InputParameters.PlotfileParameters, err error) {
	pp = &InputParameters.PlotfileParameters{}
	fileName, _ := cmd.Flags().GetString("inputParameters")
	if len(fileName) == 0 {
		return
	}
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	if err = pp.Parse(data); err != nil {
		return nil, fmt.Errorf("read parameters %s: %w", fileName, err)
	}
	return
}

// openPlotfile opens path with the options of the read parameters file, the
// config and the command line, in that order.
func openPlotfile(cmd *cobra.Command, path string, extra ...plotfile.Option) (*plotfile.Plotfile, *InputParameters.PlotfileParameters, error) {
	pp, err := readParameters(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger()
	opts := pp.Options()
	if np := viper.GetInt("parallel"); np > 0 {
		opts = append(opts, plotfile.WithParallelDegree(np))
	}
	if viper.GetBool("validate") {
		opts = append(opts, plotfile.ValidateMode())
	}
	opts = append(opts, plotfile.WithLogger(logger))
	opts = append(opts, extra...)
	pf, err := plotfile.Open(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return pf, pp, nil
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}
