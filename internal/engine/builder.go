package engine

import (
	"github.com/backmassage/pngcrunch/internal/config"
)

// Engine identifiers, in pipeline order.
const (
	IDImageMagick = "imagemagick"
	IDOptiPNG     = "optipng"
	IDAdvPNG      = "advpng"
	IDOxiPNG      = "oxipng"
)

// advpngLevels are the deflate effort levels tried by the advpng pass, low to high.
var advpngLevels = []string{"-1", "-2", "-3", "-4"}

// Spec describes one external engine.
type Spec struct {
	ID        string
	Command   config.EngineConfig
	ProbeArgs []string

	// FreshCopy engines get the canonical file copied over the working
	// copy before they run. The others chain on whatever the previous
	// step left in the working copy.
	FreshCopy bool

	args func(canonical, working string) [][]string
}

// Invocations returns the complete argv of every process the engine runs
// for one step. Most engines run once; advpng runs once per level.
func (s Spec) Invocations(canonical, working string) [][]string {
	var out [][]string
	for _, a := range s.args(canonical, working) {
		argv := make([]string, 0, 1+len(s.Command.Args)+len(a))
		argv = append(argv, s.Command.Command)
		argv = append(argv, s.Command.Args...)
		argv = append(argv, a...)
		out = append(out, argv)
	}
	return out
}

// ProbeArgv returns the argv used by the availability gate.
func (s Spec) ProbeArgv() []string {
	argv := []string{s.Command.Command}
	argv = append(argv, s.Command.Args...)
	return append(argv, s.ProbeArgs...)
}

// Specs returns the fixed, ordered engine pipeline for set.
func Specs(set config.EngineSet) []Spec {
	set = set.Clone()
	return []Spec{
		{
			// Strip metadata and force 8-bit RGBA, reading the canonical file.
			ID:        IDImageMagick,
			Command:   set.ImageMagick,
			ProbeArgs: []string{"-version"},
			FreshCopy: true,
			args: func(canonical, working string) [][]string {
				return [][]string{{canonical, "-strip", "PNG32:" + working}}
			},
		},
		{
			// Maximum effort, no bit-depth/color-type/palette reductions, in place.
			ID:        IDOptiPNG,
			Command:   set.OptiPNG,
			ProbeArgs: []string{"-version"},
			FreshCopy: true,
			args: func(_, working string) [][]string {
				return [][]string{{"-o7", "-nb", "-nc", "-np", working}}
			},
		},
		{
			// Recompress in place once per deflate level.
			ID:        IDAdvPNG,
			Command:   set.AdvPNG,
			ProbeArgs: []string{"--version"},
			args: func(_, working string) [][]string {
				out := make([][]string, 0, len(advpngLevels))
				for _, lvl := range advpngLevels {
					out = append(out, []string{"-z", lvl, working})
				}
				return out
			},
		},
		{
			// Re-pack without color/palette reduction, quiet, in place.
			ID:        IDOxiPNG,
			Command:   set.OxiPNG,
			ProbeArgs: []string{"--version"},
			args: func(_, working string) [][]string {
				return [][]string{{"-o", "6", "--nc", "--np", "-q", working}}
			},
		},
	}
}
