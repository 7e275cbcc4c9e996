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
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/amrplot/catalog"
	"github.com/notargets/amrplot/plotfile"
)

// CatalogCmd represents the catalog command
var CatalogCmd = &cobra.Command{
	Use:   "catalog <plotfile> <database>",
	Short: "Export the box table of a plotfile to SQLite",
	Long: `
Writes the geometry, global index range, record location and stored min/max of
every box to a SQLite database. With --region the boxes of --level overlapping
the region are listed afterwards.

amrplot catalog plt00100 plt00100.db --region 0.2,0.2,0.2:0.4,0.4,0.4 --level 1`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		region, _ := cmd.Flags().GetString("region")
		level, _ := cmd.Flags().GetInt("level")
		pf, _, err := openPlotfile(cmd, args[0], plotfile.WithMaxMins())
		exitOnError(err)
		cat, err := catalog.Open(args[1], newLogger())
		exitOnError(err)
		defer cat.Close()
		n, err := cat.Export(ctx, pf)
		exitOnError(err)
		fmt.Printf("[%d]\t\t\t\t= Boxes Exported\n", n)
		if len(region) != 0 {
			exitOnError(PrintRegion(ctx, os.Stdout, cat, level, region))
		}
	},
}

func init() {
	rootCmd.AddCommand(CatalogCmd)
	CatalogCmd.Flags().String("region", "", "list the boxes overlapping lo:hi, comma separated coordinates")
	CatalogCmd.Flags().IntP("level", "l", 0, "AMR level of the region query")
}

// PrintRegion lists the boxes of a level overlapping the region "x,y[,z]:x,y[,z]".
func PrintRegion(ctx context.Context, w io.Writer, cat *catalog.Catalog, level int, region string) error {
	lo, hi, err := ParseRegion(region)
	if err != nil {
		return err
	}
	bm, err := cat.Overlapping(ctx, level, lo, hi)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%v\t= Boxes in Region\n", bm.ToArray())
	return nil
}

// ParseRegion parses "x,y[,z]:x,y[,z]".
func ParseRegion(s string) (lo, hi []float64, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("malformed region %q, expected lo:hi", s)
	}
	parse := func(p string) (v []float64, err error) {
		for _, tok := range strings.Split(p, ",") {
			var f float64
			if f, err = strconv.ParseFloat(strings.TrimSpace(tok), 64); err != nil {
				return nil, fmt.Errorf("malformed region %q", s)
			}
			v = append(v, f)
		}
		return
	}
	if lo, err = parse(parts[0]); err != nil {
		return
	}
	if hi, err = parse(parts[1]); err != nil {
		return
	}
	if len(lo) != len(hi) {
		return nil, nil, fmt.Errorf("region bounds %q differ in length", s)
	}
	return
}
