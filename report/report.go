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

// Package report formats post-processing summaries of airnet
// simulations: building pressurization tests, occupant exposure,
// contaminant exfiltration, and control system logs. Each report has a
// plain-text form for terminals and a CSV form for spreadsheets.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/airnetmodel/airnet"
)

// ── Pressurization (blower door) ─────────────────────────────────────

// OpeningLeakage is the contribution of one exterior opening to a
// pressurization test.
type OpeningLeakage struct {
	LinkID      int
	FromName    string
	ToName      string
	ElementType string
	MassFlow    float64 // kg/s at the target pressure
	VolumeFlow  float64 // m³/s
}

// Pressurization summarizes a whole-building pressurization test at a
// uniform target pressure difference.
type Pressurization struct {
	TargetDeltaP    float64 // Pa
	AirDensity      float64 // kg/m³
	TotalMassFlow   float64 // kg/s
	TotalVolumeFlow float64 // m³/s
	TotalVolumeFlowPerHour float64 // m³/h
	EquivalentLeakageArea  float64 // m²
	Openings        []OpeningLeakage
}

// Pressurize evaluates every envelope opening (a link touching an
// ambient node) at the target pressure difference, emulating a blower
// door test.
func Pressurize(net *airnet.Network, targetDeltaP, airDensity float64) Pressurization {
	p := Pressurization{TargetDeltaP: targetDeltaP, AirDensity: airDensity}
	for _, l := range net.Links {
		if l.Element == nil {
			continue
		}
		fromAmb := net.Nodes[l.From].KnownPressure()
		toAmb := net.Nodes[l.To].KnownPressure()
		if fromAmb == toAmb {
			continue // interior path, or ambient-to-ambient
		}
		res := l.Element.Calculate(targetDeltaP, airDensity)
		mdot := math.Abs(res.MassFlow)
		p.TotalMassFlow += mdot
		p.Openings = append(p.Openings, OpeningLeakage{
			LinkID:      l.ID,
			FromName:    net.Nodes[l.From].Name,
			ToName:      net.Nodes[l.To].Name,
			ElementType: l.Element.TypeName(),
			MassFlow:    mdot,
			VolumeFlow:  mdot / airDensity,
		})
	}
	p.TotalVolumeFlow = p.TotalMassFlow / airDensity
	p.TotalVolumeFlowPerHour = p.TotalVolumeFlow * 3600
	if targetDeltaP > 0 {
		p.EquivalentLeakageArea = p.TotalVolumeFlow / math.Sqrt(2*targetDeltaP/airDensity)
	}
	return p
}

// Text renders the pressurization report for a terminal.
func (p Pressurization) Text() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Building pressurization at %.1f Pa (ρ = %.3f kg/m³)\n", p.TargetDeltaP, p.AirDensity)
	fmt.Fprintf(&buf, "Total leakage: %.4g kg/s = %.4g m³/s = %.4g m³/h\n", p.TotalMassFlow, p.TotalVolumeFlow, p.TotalVolumeFlowPerHour)
	fmt.Fprintf(&buf, "Equivalent leakage area: %.4g m²\n\n", p.EquivalentLeakageArea)
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "link\telement\tfrom\tto\tmass flow [kg/s]\tvolume flow [m³/s]")
	for _, o := range p.Openings {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.5g\t%.5g\n", o.LinkID, o.ElementType, o.FromName, o.ToName, o.MassFlow, o.VolumeFlow)
	}
	w.Flush()
	return buf.String()
}

// CSV renders the pressurization breakdown as CSV.
func (p Pressurization) CSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"linkId", "elementType", "from", "to", "massFlow_kgs", "volumeFlow_m3s"})
	for _, o := range p.Openings {
		w.Write([]string{
			strconv.Itoa(o.LinkID), o.ElementType, o.FromName, o.ToName,
			formatG(o.MassFlow), formatG(o.VolumeFlow),
		})
	}
	w.Flush()
	return buf.String()
}

func formatG(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
