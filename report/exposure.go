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
	"strconv"
	"text/tabwriter"

	"github.com/airnetmodel/airnet"
)

// OccupantExposure is one occupant's exposure to one species over a
// simulation.
type OccupantExposure struct {
	OccupantID        int
	OccupantName      string
	SpeciesName       string
	BreathingRate     float64 // m³/s
	CumulativeDose    float64 // kg
	PeakConcentration float64 // kg/m³
	TimeAtPeak        float64 // s
	TotalExposureTime float64 // s
	MeanConcentration float64 // kg/m³, dose / (breathing rate · exposed time)
}

// Exposure summarizes the exposure records accumulated by the
// transient driver into per-occupant, per-species rows.
func Exposure(occupants []*airnet.Occupant, species []airnet.Species) []OccupantExposure {
	var rows []OccupantExposure
	for _, o := range occupants {
		for _, rec := range o.Exposure {
			if rec.SpeciesIndex < 0 || rec.SpeciesIndex >= len(species) {
				continue
			}
			row := OccupantExposure{
				OccupantID:        o.ID,
				OccupantName:      o.Name,
				SpeciesName:       species[rec.SpeciesIndex].Name,
				BreathingRate:     o.BreathingRate,
				CumulativeDose:    rec.CumulativeDose,
				PeakConcentration: rec.PeakConcentration,
				TimeAtPeak:        rec.TimeAtPeak,
				TotalExposureTime: rec.TotalExposureTime,
			}
			if o.BreathingRate > 0 && rec.TotalExposureTime > 0 {
				row.MeanConcentration = rec.CumulativeDose / (o.BreathingRate * rec.TotalExposureTime)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// ExposureText renders exposure rows for a terminal.
func ExposureText(rows []OccupantExposure) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "occupant\tspecies\tdose [kg]\tpeak [kg/m³]\tt(peak) [s]\texposed [s]\tmean [kg/m³]")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.5g\t%.5g\t%.0f\t%.0f\t%.5g\n",
			r.OccupantName, r.SpeciesName, r.CumulativeDose, r.PeakConcentration,
			r.TimeAtPeak, r.TotalExposureTime, r.MeanConcentration)
	}
	w.Flush()
	return buf.String()
}

// ExposureCSV renders exposure rows as CSV.
func ExposureCSV(rows []OccupantExposure) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"occupantId", "occupant", "species", "dose_kg", "peak_kgm3", "timeAtPeak_s", "exposedTime_s", "mean_kgm3"})
	for _, r := range rows {
		w.Write([]string{
			strconv.Itoa(r.OccupantID), r.OccupantName, r.SpeciesName,
			formatG(r.CumulativeDose), formatG(r.PeakConcentration),
			formatG(r.TimeAtPeak), formatG(r.TotalExposureTime), formatG(r.MeanConcentration),
		})
	}
	w.Flush()
	return buf.String()
}
