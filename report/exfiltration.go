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

// OpeningExfiltration is the contaminant mass carried outdoors through
// one envelope opening over a transient history.
type OpeningExfiltration struct {
	LinkID       int
	FromName     string
	ToName       string
	TotalMass    float64 // kg of species carried to ambient
	AvgMassFlow  float64 // kg/s of species, averaged over the run
	PeakMassFlow float64 // kg/s of species
}

// SpeciesExfiltration aggregates exfiltration for one species.
type SpeciesExfiltration struct {
	SpeciesID   int
	SpeciesName string
	Total       float64 // kg
	Openings    []OpeningExfiltration
}

// Exfiltration integrates, over a transient history, the species mass
// that left the building through each envelope opening. Species flux
// through a link is taken as q·C_upwind with the upwind zone's density
// converting the recorded mass flow to volume flow.
func Exfiltration(net *airnet.Network, species []airnet.Species, history []airnet.TimeStepRecord) []SpeciesExfiltration {
	out := make([]SpeciesExfiltration, len(species))
	for k, sp := range species {
		out[k] = SpeciesExfiltration{SpeciesID: sp.ID, SpeciesName: sp.Name}
	}
	if len(history) < 2 {
		return out
	}

	type accum struct {
		total float64
		peak  float64
	}
	// [species][link]
	acc := make([]map[int]*accum, len(species))
	for k := range acc {
		acc[k] = make(map[int]*accum)
	}

	duration := history[len(history)-1].Time - history[0].Time
	for si := 1; si < len(history); si++ {
		step := history[si]
		dt := step.Time - history[si-1].Time
		if dt <= 0 || step.Concentrations == nil {
			continue
		}
		for li, l := range net.Links {
			if li >= len(step.Airflow.MassFlows) {
				break
			}
			mdot := step.Airflow.MassFlows[li]
			donor, acceptor := l.From, l.To
			if mdot < 0 {
				donor, acceptor = acceptor, donor
				mdot = -mdot
			} else if mdot == 0 {
				continue
			}
			// Only flow from an interior zone out to ambient counts.
			if net.Nodes[donor].KnownPressure() || !net.Nodes[acceptor].KnownPressure() {
				continue
			}
			rho := net.Nodes[donor].Density
			if rho <= 0 {
				continue
			}
			q := mdot / rho
			for k := range species {
				if donor >= len(step.Concentrations) || k >= len(step.Concentrations[donor]) {
					continue
				}
				flux := q * step.Concentrations[donor][k]
				a := acc[k][li]
				if a == nil {
					a = &accum{}
					acc[k][li] = a
				}
				a.total += flux * dt
				a.peak = math.Max(a.peak, flux)
			}
		}
	}

	for k := range species {
		for li, a := range acc[k] {
			l := net.Links[li]
			o := OpeningExfiltration{
				LinkID:       l.ID,
				FromName:     net.Nodes[l.From].Name,
				ToName:       net.Nodes[l.To].Name,
				TotalMass:    a.total,
				PeakMassFlow: a.peak,
			}
			if duration > 0 {
				o.AvgMassFlow = a.total / duration
			}
			out[k].Openings = append(out[k].Openings, o)
			out[k].Total += a.total
		}
	}
	return out
}

// ExfiltrationText renders the exfiltration report for a terminal.
func ExfiltrationText(results []SpeciesExfiltration) string {
	var buf bytes.Buffer
	for _, r := range results {
		fmt.Fprintf(&buf, "Species %s: %.5g kg exfiltrated\n", r.SpeciesName, r.Total)
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "link\tfrom\tto\ttotal [kg]\tavg [kg/s]\tpeak [kg/s]")
		for _, o := range r.Openings {
			fmt.Fprintf(w, "%d\t%s\t%s\t%.5g\t%.5g\t%.5g\n",
				o.LinkID, o.FromName, o.ToName, o.TotalMass, o.AvgMassFlow, o.PeakMassFlow)
		}
		w.Flush()
		buf.WriteByte('\n')
	}
	return buf.String()
}

// ExfiltrationCSV renders the exfiltration report as CSV.
func ExfiltrationCSV(results []SpeciesExfiltration) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"species", "linkId", "from", "to", "total_kg", "avg_kgs", "peak_kgs"})
	for _, r := range results {
		for _, o := range r.Openings {
			w.Write([]string{
				r.SpeciesName, strconv.Itoa(o.LinkID), o.FromName, o.ToName,
				formatG(o.TotalMass), formatG(o.AvgMassFlow), formatG(o.PeakMassFlow),
			})
		}
	}
	w.Flush()
	return buf.String()
}
