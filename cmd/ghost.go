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

	"github.com/spf13/cobra"

	"github.com/notargets/amrplot/plotfile"
)

// GhostCmd represents the ghost command
var GhostCmd = &cobra.Command{
	Use:   "ghost <plotfile>",
	Short: "Print the face neighbors of every box of a level (3D only)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetInt("level")
		pf, _, err := openPlotfile(cmd, args[0], plotfile.WithGhost())
		exitOnError(err)
		exitOnError(PrintGhost(os.Stdout, pf, level))
	},
}

func init() {
	rootCmd.AddCommand(GhostCmd)
	GhostCmd.Flags().IntP("level", "l", 0, "AMR level")
}

var faceNames = [3][2]string{{"-x", "+x"}, {"-y", "+y"}, {"-z", "+z"}}

// PrintGhost writes one line per box listing its neighbors on each face.
func PrintGhost(w io.Writer, pf *plotfile.Plotfile, level int) error {
	gm, err := pf.GhostMap()
	if err != nil {
		return err
	}
	if level < 0 || level >= len(gm.Neighbors) {
		return fmt.Errorf("level %d out of range, the ghost map covers %d levels", level, len(gm.Neighbors))
	}
	fmt.Fprintf(w, "[%d]\t\t\t\t= Lattice Unit\n", gm.Unit)
	fmt.Fprintf(w, "%v\t\t\t= Lattice Shape\n", gm.Lattices[level].Shape)
	for box, faces := range gm.Neighbors[level] {
		fmt.Fprintf(w, "B%d", box)
		for axis := 0; axis < 3; axis++ {
			for side := 0; side < 2; side++ {
				fmt.Fprintf(w, " %s%v", faceNames[axis][side], faces[axis][side])
			}
		}
		fmt.Fprintln(w)
	}
	csr := gm.Connectivity(level)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Adjacent Pairs\n", csr.NNZ()/2)
	return nil
}
