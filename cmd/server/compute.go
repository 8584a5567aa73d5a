package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"fleetwear/internal/wearout"
)

var computeFlags struct {
	current  float64
	target   float64
	interval float64
	max      float64
	inverse  bool
	unit     string
}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Evaluate one wear reading and print the result as JSON",
	Example: `  fleetwear compute --current 14000 --target 15000 --interval 15000
  fleetwear compute --current 6 --max 12 --inverse --unit mm`,
	RunE: runCompute,
}

func init() {
	f := computeCmd.Flags()
	f.Float64Var(&computeFlags.current, "current", 0, "current value (odometer km or tread mm)")
	f.Float64Var(&computeFlags.target, "target", 0, "value at which service is due (countdown mode)")
	f.Float64Var(&computeFlags.interval, "interval", 0, "full service interval (countdown mode)")
	f.Float64Var(&computeFlags.max, "max", 0, "value that counts as full health (absolute mode)")
	f.BoolVar(&computeFlags.inverse, "inverse", false, "higher current means healthier (absolute mode)")
	f.StringVar(&computeFlags.unit, "unit", wearout.DefaultUnit, "unit label")
	computeCmd.MarkFlagRequired("current")
	rootCmd.AddCommand(computeCmd)
}

func runCompute(cmd *cobra.Command, args []string) error {
	in := computeInput(cmd)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(wearout.Compute(in))
}

// computeInput leaves optional fields nil unless their flag was given, so
// an omitted flag means "no data" rather than zero.
func computeInput(cmd *cobra.Command) wearout.Input {
	f := cmd.Flags()
	opt := func(name string, v float64) *float64 {
		if !f.Changed(name) {
			return nil
		}
		return &v
	}
	return wearout.Input{
		Current:  computeFlags.current,
		Target:   opt("target", computeFlags.target),
		Interval: opt("interval", computeFlags.interval),
		Max:      opt("max", computeFlags.max),
		Inverse:  computeFlags.inverse,
		Unit:     computeFlags.unit,
	}
}
