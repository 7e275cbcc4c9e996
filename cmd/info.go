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
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/amrplot/plotfile"
)

// InfoCmd represents the info command
var InfoCmd = &cobra.Command{
	Use:   "info <plotfile>",
	Short: "Print the plotfile metadata and the box layout of every level",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		headerOnly, _ := cmd.Flags().GetBool("headerOnly")
		var extra []plotfile.Option
		if headerOnly {
			extra = append(extra, plotfile.HeaderOnly())
		}
		pf, pp, err := openPlotfile(cmd, args[0], extra...)
		exitOnError(err)
		if len(pp.Title) != 0 {
			pp.Print()
		}
		PrintInfo(os.Stdout, pf)
	},
}

func init() {
	rootCmd.AddCommand(InfoCmd)
	InfoCmd.Flags().Bool("headerOnly", false, "skip the level cell headers")
}

// PrintInfo writes a summary of pf to w.
func PrintInfo(w io.Writer, pf *plotfile.Plotfile) {
	fmt.Fprintf(w, "%s\t\t= Plotfile\n", pf.Path)
	fmt.Fprintf(w, "%s\t\t= Version\n", pf.Version)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Dimensions\n", pf.NDims)
	fmt.Fprintf(w, "%g\t\t\t\t= Time\n", pf.Time)
	fmt.Fprintf(w, "[%d/%d]\t\t\t\t= Limit/Max Level\n", pf.LimitLevel, pf.MaxLevel)
	fmt.Fprintf(w, "%v -> %v\t= Domain\n", pf.GeoLow, pf.GeoHigh)
	fmt.Fprintf(w, "[%s]\t= Fields\n", strings.Join(pf.Fields.Names(), ", "))
	for lv := 0; lv <= pf.LimitLevel; lv++ {
		fmt.Fprintf(w, "Level[%d] = %d boxes, grid %v, dx %v", lv, pf.NumBoxes(lv), pf.GridSizes[lv], pf.Dx[lv])
		if pf.Levels != nil {
			fmt.Fprintf(w, ", %d binary files", len(pf.ByBinaryFile(lv)))
		}
		fmt.Fprintln(w)
	}
	if pf.Levels != nil {
		fmt.Fprintf(w, "%v\t= Box Shapes\n", pf.UniqueBoxShapes())
	}
}
