package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/amrplot/plotfile"
)

// Parameters obtained from the YAML read parameters file
type PlotfileParameters struct {
	Title          string   `yaml:"Title"`
	LimitLevel     *int     `yaml:"LimitLevel"` // unset reads every level
	HeaderOnly     bool     `yaml:"HeaderOnly"`
	ValidateMode   bool     `yaml:"ValidateMode"`
	MaxMins        bool     `yaml:"MaxMins"`
	Ghost          bool     `yaml:"Ghost"`
	ParallelDegree int      `yaml:"ParallelDegree"`
	Fields         []string `yaml:"Fields"`
	// Levels maps a level number to the box indices read at that level
	Levels map[int][]int `yaml:"Levels"`
}

func (pp *PlotfileParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, pp)
}

// Options returns the plotfile open options selected by the parameters.
func (pp *PlotfileParameters) Options() (opts []plotfile.Option) {
	if pp.LimitLevel != nil {
		opts = append(opts, plotfile.WithLimitLevel(*pp.LimitLevel))
	}
	if pp.HeaderOnly {
		opts = append(opts, plotfile.HeaderOnly())
	}
	if pp.ValidateMode {
		opts = append(opts, plotfile.ValidateMode())
	}
	if pp.MaxMins {
		opts = append(opts, plotfile.WithMaxMins())
	}
	if pp.Ghost {
		opts = append(opts, plotfile.WithGhost())
	}
	if pp.ParallelDegree > 0 {
		opts = append(opts, plotfile.WithParallelDegree(pp.ParallelDegree))
	}
	return
}

func (pp *PlotfileParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", pp.Title)
	if pp.LimitLevel != nil {
		fmt.Printf("[%d]\t\t\t\t= Limit Level\n", *pp.LimitLevel)
	} else {
		fmt.Printf("[all]\t\t\t\t= Limit Level\n")
	}
	fmt.Printf("[%v]\t\t\t= Header Only\n", pp.HeaderOnly)
	fmt.Printf("[%v]\t\t\t= Validate Mode\n", pp.ValidateMode)
	fmt.Printf("[%v]\t\t\t= Max Mins\n", pp.MaxMins)
	fmt.Printf("[%v]\t\t\t= Ghost\n", pp.Ghost)
	fmt.Printf("[%d]\t\t\t\t= Parallel Degree\n", pp.ParallelDegree)
	fmt.Printf("%v\t= Fields\n", pp.Fields)
	keys := make([]int, len(pp.Levels))
	i := 0
	for k := range pp.Levels {
		keys[i] = k
		i++
	}
	sort.Ints(keys)
	for _, key := range keys {
		fmt.Printf("Levels[%d] = %v\n", key, pp.Levels[key])
	}
}
