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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notargets/amrplot/plotfile"
)

// ValidateCmd represents the validate command
var ValidateCmd = &cobra.Command{
	Use:   "validate <plotfile>",
	Short: "Check every box record against the headers",
	Long: `
Parses the headers in validate mode, then reads the header of every box record
and compares its shape and field count with the cell headers. With --minmax the
min/max stored in the cell headers are compared with the box data as well.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		minMax, _ := cmd.Flags().GetBool("minmax")
		exitOnError(RunValidate(cmd, args[0], minMax))
		fmt.Println("ok")
	},
}

func init() {
	rootCmd.AddCommand(ValidateCmd)
	ValidateCmd.Flags().Bool("minmax", false, "compare stored min/max with the box data")
}

func RunValidate(cmd *cobra.Command, path string, minMax bool) error {
	ctx := context.Background()
	extra := []plotfile.Option{plotfile.ValidateMode()}
	if minMax {
		extra = append(extra, plotfile.WithMaxMins())
	}
	pf, _, err := openPlotfile(cmd, path, extra...)
	if err != nil {
		return err
	}
	if err = pf.CheckRecords(ctx); err != nil {
		return err
	}
	if minMax {
		for lv := 0; lv <= pf.LimitLevel; lv++ {
			if err = pf.CheckMinMax(ctx, lv); err != nil {
				return err
			}
		}
	}
	return nil
}
