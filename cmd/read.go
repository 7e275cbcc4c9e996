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
	"path/filepath"

	"github.com/kshedden/gonpy"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/amrplot/InputParameters"
	"github.com/notargets/amrplot/plotfile"
	"github.com/notargets/amrplot/utils"
)

type ReadRequest struct {
	Level   int
	Fields  []string
	Span    string // field index range like "2:5", used when Fields is empty
	BoxList string // box index phrases like "0,3:5,end", used when Boxes is nil
	Boxes   []int  // nil with an empty BoxList reads the whole level
	NpyOut  string // file prefix of the .npy export, empty for none
}

// ReadCmd represents the read command
var ReadCmd = &cobra.Command{
	Use:   "read <plotfile>",
	Short: "Read box data and print per box field statistics",
	Long: `
Reads the selected fields of the selected boxes of one level. Boxes are read in
parallel, one .npy file per box is written with --npy.

amrplot read plt00100 --level 1 --fields density,temp --boxes 0,4,7`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rr := &ReadRequest{}
		rr.Level, _ = cmd.Flags().GetInt("level")
		rr.Fields, _ = cmd.Flags().GetStringSlice("fields")
		rr.Span, _ = cmd.Flags().GetString("span")
		rr.NpyOut, _ = cmd.Flags().GetString("npy")
		rr.BoxList, _ = cmd.Flags().GetString("boxes")
		dir, _ := cmd.Flags().GetString("profile")
		exitOnError(runProfiled(dir, func() error {
			pf, pp, err := openPlotfile(cmd, args[0])
			if err != nil {
				return err
			}
			rr.merge(pp)
			return RunRead(context.Background(), os.Stdout, pf, rr)
		}))
	},
}

// runProfiled runs fn under a CPU profile written to dir, the profile is
// flushed before the error of fn is returned. An empty dir runs fn unprofiled.
func runProfiled(dir string, fn func() error) error {
	if len(dir) == 0 {
		return fn()
	}
	p := profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook)
	err := fn()
	p.Stop()
	return err
}

func init() {
	rootCmd.AddCommand(ReadCmd)
	ReadCmd.Flags().IntP("level", "l", 0, "AMR level to read")
	ReadCmd.Flags().StringSliceP("fields", "f", nil, "field names to read, all fields by default")
	ReadCmd.Flags().StringP("span", "s", "", "contiguous field index range like 2:5 or 3:, instead of --fields")
	ReadCmd.Flags().StringP("boxes", "b", "", "box indices and ranges like 0,4:8,end, all boxes by default")
	ReadCmd.Flags().String("npy", "", "write every box as <prefix>_L<level>_B<box>.npy")
	ReadCmd.Flags().String("profile", "", "write a CPU profile to this directory")
}

// merge fills what the command line left unset from the read parameters.
func (rr *ReadRequest) merge(pp *InputParameters.PlotfileParameters) {
	if len(rr.Fields) == 0 && len(rr.Span) == 0 {
		rr.Fields = pp.Fields
	}
	if rr.Boxes == nil && len(rr.BoxList) == 0 {
		if boxes, ok := pp.Levels[rr.Level]; ok {
			rr.Boxes = boxes
		}
	}
}

func (rr *ReadRequest) fieldView(pf *plotfile.Plotfile) (plotfile.FieldView, error) {
	switch {
	case len(rr.Fields) != 0:
		return pf.FieldsByName(rr.Fields...)
	case len(rr.Span) != 0:
		a, b, err := utils.ParseDim(rr.Span, pf.NumFields())
		if err != nil {
			return plotfile.FieldView{}, err
		}
		return pf.FieldSpan(a, b)
	default:
		return pf.FieldSpan(0, pf.NumFields())
	}
}

// RunRead reads the request and prints min, max and mean of every field of
// every box read.
func RunRead(ctx context.Context, w io.Writer, pf *plotfile.Plotfile, rr *ReadRequest) error {
	fv, err := rr.fieldView(pf)
	if err != nil {
		return err
	}
	view, err := fv.Level(rr.Level)
	if err != nil {
		return err
	}
	boxes := rr.Boxes
	if boxes == nil && len(rr.BoxList) != 0 {
		if boxes, err = utils.ParseIndexList(rr.BoxList, view.Len()); err != nil {
			return err
		}
	}
	if boxes == nil {
		boxes = make([]int, view.Len())
		for i := range boxes {
			boxes[i] = i
		}
	}
	data, err := view.List(ctx, boxes...)
	if err != nil {
		return err
	}
	for i, bd := range data {
		for n, k := range bd.Fields {
			vals := bd.Field(n)
			fmt.Fprintf(w, "L%d B%d %-16s min %12.6g max %12.6g mean %12.6g\n", rr.Level, boxes[i],
				pf.Fields.Name(k), floats.Min(vals), floats.Max(vals), floats.Sum(vals)/float64(len(vals)))
		}
		if len(rr.NpyOut) != 0 {
			fn := fmt.Sprintf("%s_L%d_B%d.npy", rr.NpyOut, rr.Level, boxes[i])
			if err = WriteNpy(fn, bd); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteNpy writes the box as a Fortran ordered array of shape (shape..., nfields),
// the layout of the record on disk.
func WriteNpy(path string, bd *plotfile.BoxData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return err
	}
	w.Shape = append(append([]int(nil), bd.Shape...), len(bd.Fields))
	w.ColumnMajor = true
	w.Version = 2
	return w.WriteFloat64(bd.Values.RawMatrix().Data)
}
