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

package airnet

import "math"

// ZoneConnection attaches an air handler to a zone, with the fraction
// of the handler's flow assigned to that zone.
type ZoneConnection struct {
	ZoneID   int
	Fraction float64
}

// SimpleAHS is a constant-volume air-handling system descriptor:
// supply and return flows distributed over zone connections, with an
// outdoor-air intake and an exhaust. The outdoor-air and supply-flow
// schedule ids are stored with the descriptor; nothing in this package
// evaluates them, so the flows stay at their design values.
type SimpleAHS struct {
	ID   int
	Name string

	SupplyFlow     float64 // m³/s delivered to the supply zones
	ReturnFlow     float64 // m³/s drawn from the return zones
	OutdoorAirFlow float64 // m³/s of fresh intake
	ExhaustFlow    float64 // m³/s rejected outdoors

	SupplyTemperature float64 // K

	SupplyZones []ZoneConnection
	ReturnZones []ZoneConnection

	OutdoorAirScheduleID int // -1 = constant
	SupplyFlowScheduleID int // -1 = constant
}

// NewSimpleAHS returns an air handler with the given design flows.
func NewSimpleAHS(id int, name string, supply, ret, outdoorAir, exhaust float64) *SimpleAHS {
	return &SimpleAHS{
		ID: id, Name: name,
		SupplyFlow: supply, ReturnFlow: ret,
		OutdoorAirFlow: outdoorAir, ExhaustFlow: exhaust,
		SupplyTemperature:    TRef,
		OutdoorAirScheduleID: -1, SupplyFlowScheduleID: -1,
	}
}

// OutdoorAirFraction returns the fresh-air share of the supply flow.
func (a *SimpleAHS) OutdoorAirFraction() float64 {
	if a.SupplyFlow <= 0 {
		return 0
	}
	return a.OutdoorAirFlow / a.SupplyFlow
}

// RecirculatedFlow returns the return air re-delivered to the zones.
func (a *SimpleAHS) RecirculatedFlow() float64 {
	return a.SupplyFlow - a.OutdoorAirFlow
}

// Balanced reports whether the handler conserves air within tol:
// supply + exhaust must equal return + outdoor intake.
func (a *SimpleAHS) Balanced(tol float64) bool {
	return math.Abs((a.SupplyFlow+a.ExhaustFlow)-(a.ReturnFlow+a.OutdoorAirFlow)) <= tol
}
