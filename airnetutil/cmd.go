/*
Copyright © 2023 the AirNet authors.
This file is part of AirNet.

AirNet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

AirNet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with AirNet.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package airnetutil wires the airnet library into a command-line
// tool: flag handling, configuration files, logging, and the
// steady/transient execution paths.
package airnetutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/airnetmodel/airnet"
	"github.com/airnetmodel/airnet/report"
)

// ErrNotConverged is returned when a steady solve fails to converge or
// a transient run is cancelled before completion; the CLI maps it to
// exit code 2.
var ErrNotConverged = errors.New("airnet: simulation did not converge or complete")

// Cfg holds the resolved configuration for a run.
var Cfg *viper.Viper

// Root is the top-level command.
var Root = &cobra.Command{
	Use:   "airnet",
	Short: "airnet simulates multi-zone building airflow and contaminant transport",
	Long: `airnet solves the steady-state pressures and flows of a multi-zone
airflow network and, when the input defines species or a transient
block, advances contaminant transport through time. Input and output
are JSON files; see the repository documentation for the format.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// options are the configuration options available to airnet,
// registered as flags and bound to Cfg.
var options = []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}{
	{
		name:       "input",
		shorthand:  "i",
		usage:      "input specifies the model JSON file to simulate.",
		defaultVal: "",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:       "output",
		shorthand:  "o",
		usage:      "output specifies where the result JSON is written.",
		defaultVal: "",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:      "method",
		shorthand: "m",
		usage: `method selects the airflow globalization: 'tr' for trust
              region (default) or 'sur' for sub-relaxation.`,
		defaultVal: "tr",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:       "verbose",
		shorthand:  "v",
		usage:      "verbose enables debug logging of the solve.",
		defaultVal: false,
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:       "config",
		usage:      "config specifies an optional TOML file preloading the flags above.",
		defaultVal: "",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:       "exposure-report",
		usage:      "exposure-report writes a per-occupant exposure summary to the given file.",
		defaultVal: "",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name:       "exfiltration-report",
		usage:      "exfiltration-report writes a per-species exfiltration summary to the given file.",
		defaultVal: "",
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
	{
		name: "pressurization",
		usage: `pressurization, when positive, additionally runs a blower-door
              test at the given pressure difference [Pa] and prints the report.`,
		defaultVal: 0.0,
		flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
	},
}

// rootFlags is the persistent flag set of Root, cached here so
// loadConfigFile does not need to refer to Root directly.
var rootFlags = Root.PersistentFlags()

func init() {
	Root.RunE = func(cmd *cobra.Command, args []string) error {
		return Run()
	}
	Cfg = viper.New()
	for _, o := range options {
		for _, fs := range o.flagsets {
			switch v := o.defaultVal.(type) {
			case string:
				if o.shorthand != "" {
					fs.StringP(o.name, o.shorthand, v, o.usage)
				} else {
					fs.String(o.name, v, o.usage)
				}
			case bool:
				if o.shorthand != "" {
					fs.BoolP(o.name, o.shorthand, v, o.usage)
				} else {
					fs.Bool(o.name, v, o.usage)
				}
			case float64:
				fs.Float64(o.name, v, o.usage)
			}
			Cfg.BindPFlag(o.name, fs.Lookup(o.name))
		}
	}
}

// tomlConfig mirrors the optional configuration file.
type tomlConfig struct {
	Input              string  `toml:"input"`
	Output             string  `toml:"output"`
	Method             string  `toml:"method"`
	Verbose            bool    `toml:"verbose"`
	ExposureReport     string  `toml:"exposure_report"`
	ExfiltrationReport string  `toml:"exfiltration_report"`
	Pressurization     float64 `toml:"pressurization"`
}

// loadConfigFile preloads flag defaults from a TOML file. Flags given
// on the command line still win.
func loadConfigFile(path string) error {
	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	set := func(name string, val interface{}) {
		if f := rootFlags.Lookup(name); f != nil && !f.Changed {
			Cfg.Set(name, val)
		}
	}
	if tc.Input != "" {
		set("input", tc.Input)
	}
	if tc.Output != "" {
		set("output", tc.Output)
	}
	if tc.Method != "" {
		set("method", tc.Method)
	}
	if tc.Verbose {
		set("verbose", true)
	}
	if tc.ExposureReport != "" {
		set("exposure-report", tc.ExposureReport)
	}
	if tc.ExfiltrationReport != "" {
		set("exfiltration-report", tc.ExfiltrationReport)
	}
	if tc.Pressurization > 0 {
		set("pressurization", tc.Pressurization)
	}
	return nil
}

// Run executes a simulation with the current configuration.
func Run() error {
	if cfgFile := Cfg.GetString("config"); cfgFile != "" {
		if err := loadConfigFile(cfgFile); err != nil {
			return err
		}
	}

	if Cfg.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	input := Cfg.GetString("input")
	output := Cfg.GetString("output")
	if input == "" || output == "" {
		return fmt.Errorf("both --input and --output are required")
	}

	var method airnet.SolverMethod
	switch Cfg.GetString("method") {
	case "tr", "trustRegion", "":
		method = airnet.TrustRegion
	case "sur", "subRelaxation":
		method = airnet.SubRelaxation
	default:
		return fmt.Errorf("unknown solver method %q", Cfg.GetString("method"))
	}

	logrus.Debugf("reading input %s", input)
	model, err := airnet.ReadModelFile(input)
	if err != nil {
		return err
	}
	net := model.Network
	logrus.Debugf("network: %d nodes, %d links, %d unknown pressures",
		len(net.Nodes), len(net.Links), net.UnknownCount())

	if dp := cast.ToFloat64(Cfg.Get("pressurization")); dp > 0 {
		p := report.Pressurize(net, dp, 1.2)
		fmt.Print(p.Text())
	}

	if model.HasTransient || len(model.Species) > 0 {
		return runTransient(model, net, method, output)
	}
	return runSteady(net, method, output)
}

func runSteady(net *airnet.Network, method airnet.SolverMethod, output string) error {
	solver := airnet.NewSolver(method)
	logrus.Debugf("solving steady state with %s", method)
	result := solver.Solve(net)
	if result.Converged {
		logrus.Debugf("converged in %d iterations (max residual %g kg/s)", result.Iterations, result.MaxResidual)
	} else {
		logrus.Warnf("failed to converge after %d iterations (max residual %g kg/s)", result.Iterations, result.MaxResidual)
	}
	if err := airnet.WriteSteadyResultFile(output, net, result); err != nil {
		return err
	}
	logrus.Debugf("results written to %s", output)
	if !result.Converged {
		return ErrNotConverged
	}
	return nil
}

func runTransient(model *airnet.ModelInput, net *airnet.Network, method airnet.SolverMethod, output string) error {
	cfg := model.Transient
	cfg.AirflowMethod = method

	sim := &airnet.TransientSimulation{
		Config:    cfg,
		Species:   model.Species,
		Sources:   model.Sources,
		Schedules: model.Schedules,
	}
	if Cfg.GetBool("verbose") {
		sim.Progress = func(t, end float64) bool {
			fmt.Fprintf(os.Stderr, "\r  t=%g/%gs", t, end)
			return true
		}
	}

	logrus.Debugf("running transient %gs to %gs (dt=%gs)", cfg.StartTime, cfg.EndTime, cfg.TimeStep)
	result, err := sim.Run(net)
	if Cfg.GetBool("verbose") {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	if err := airnet.WriteTransientResultFile(output, net, result, model.Species); err != nil {
		return err
	}
	logrus.Debugf("results written to %s (%d output steps)", output, len(result.History))

	if path := Cfg.GetString("exposure-report"); path != "" {
		rows := report.Exposure(sim.Occupants, model.Species)
		if err := os.WriteFile(path, []byte(report.ExposureCSV(rows)), 0644); err != nil {
			return err
		}
	}
	if path := Cfg.GetString("exfiltration-report"); path != "" {
		results := report.Exfiltration(net, model.Species, result.History)
		if err := os.WriteFile(path, []byte(report.ExfiltrationCSV(results)), 0644); err != nil {
			return err
		}
	}

	if !result.Completed {
		return ErrNotConverged
	}
	return nil
}
