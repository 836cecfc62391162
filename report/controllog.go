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
	"text/tabwriter"

	"github.com/airnetmodel/airnet"
)

// ControlColumns names the columns of a control log in capture order.
type ControlColumns struct {
	Sensors     []string
	Controllers []string
	Actuators   []string
}

// ControlColumnsFor derives column names from the control entities.
func ControlColumnsFor(sensors []*airnet.Sensor, controllers []*airnet.Controller, actuators []*airnet.Actuator) ControlColumns {
	var c ControlColumns
	for _, s := range sensors {
		c.Sensors = append(c.Sensors, s.Name)
	}
	for _, ctl := range controllers {
		c.Controllers = append(c.Controllers, ctl.Name)
	}
	for _, a := range actuators {
		c.Actuators = append(c.Actuators, a.Name)
	}
	return c
}

// ControlLogText renders the captured control snapshots for a
// terminal.
func ControlLogText(cols ControlColumns, log []airnet.ControlSnapshot) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "t [s]")
	for _, n := range cols.Sensors {
		fmt.Fprintf(w, "\t%s", n)
	}
	for _, n := range cols.Controllers {
		fmt.Fprintf(w, "\t%s (u)", n)
	}
	for _, n := range cols.Actuators {
		fmt.Fprintf(w, "\t%s", n)
	}
	fmt.Fprintln(w)
	for _, snap := range log {
		fmt.Fprintf(w, "%.0f", snap.Time)
		for _, v := range snap.SensorValues {
			fmt.Fprintf(w, "\t%.5g", v)
		}
		for _, v := range snap.ControllerOutputs {
			fmt.Fprintf(w, "\t%.5g", v)
		}
		for _, v := range snap.ActuatorValues {
			fmt.Fprintf(w, "\t%.5g", v)
		}
		fmt.Fprintln(w)
	}
	w.Flush()
	return buf.String()
}

// ControlLogCSV renders the captured control snapshots as CSV.
func ControlLogCSV(cols ControlColumns, log []airnet.ControlSnapshot) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"time_s"}
	for _, n := range cols.Sensors {
		header = append(header, "sensor:"+n)
	}
	for _, n := range cols.Controllers {
		header = append(header, "controller:"+n, "error:"+n)
	}
	for _, n := range cols.Actuators {
		header = append(header, "actuator:"+n)
	}
	w.Write(header)
	for _, snap := range log {
		row := []string{formatG(snap.Time)}
		for _, v := range snap.SensorValues {
			row = append(row, formatG(v))
		}
		for i, v := range snap.ControllerOutputs {
			row = append(row, formatG(v))
			if i < len(snap.ControllerErrors) {
				row = append(row, formatG(snap.ControllerErrors[i]))
			} else {
				row = append(row, "")
			}
		}
		for _, v := range snap.ActuatorValues {
			row = append(row, formatG(v))
		}
		w.Write(row)
	}
	w.Flush()
	return buf.String()
}
