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

	"github.com/spf13/cobra"

	"github.com/notargets/amrplot/plotfile"
)

// DeriveCmd represents the derive command
var DeriveCmd = &cobra.Command{
	Use:   "derive <plotfile> <output>",
	Short: "Create the directory tree and Header of a derived plotfile",
	Long: `
Creates <output>, its level directories and a Header describing the same mesh
as <plotfile> with a new field list. Binary data is not written.

amrplot derive plt00100 plt00100_vort --fields vorticity,enstrophy`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		fields, _ := cmd.Flags().GetStringSlice("fields")
		limit, _ := cmd.Flags().GetInt("limitLevel")
		extra := []plotfile.Option{plotfile.HeaderOnly()}
		if limit >= 0 {
			extra = append(extra, plotfile.WithLimitLevel(limit))
		}
		pf, _, err := openPlotfile(cmd, args[0], extra...)
		exitOnError(err)
		exitOnError(Derive(pf, args[1], fields))
		fmt.Printf("wrote %s\n", args[1])
	},
}

func init() {
	rootCmd.AddCommand(DeriveCmd)
	DeriveCmd.Flags().StringSliceP("fields", "f", nil, "field names of the derived plotfile, source fields by default")
	DeriveCmd.Flags().Int("limitLevel", -1, "deepest level written, -1 keeps every level")
}

// Derive writes the directory tree and the Header of a plotfile sharing the
// mesh of pf, levels above pf.LimitLevel left out.
func Derive(pf *plotfile.Plotfile, outPath string, fields []string) error {
	if err := pf.MakeDirTree(outPath, -1); err != nil {
		return err
	}
	var opts []plotfile.HeaderOption
	if len(fields) != 0 {
		opts = append(opts, plotfile.WithFieldNames(fields))
	}
	return pf.WriteHeader(outPath, opts...)
}
