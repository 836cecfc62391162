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

// ExposureRecord accumulates one occupant's exposure to one species.
type ExposureRecord struct {
	SpeciesIndex      int
	CumulativeDose    float64 // kg, total inhaled mass
	PeakConcentration float64 // kg/m³
	TimeAtPeak        float64 // s, when the peak was first encountered
	TotalExposureTime float64 // s, time spent at nonzero concentration
}

// Occupant is a person moving between zones, tracked for inhalation
// exposure. The zone may be driven by a schedule whose value, rounded
// to the nearest integer, is interpreted as a zone index.
type Occupant struct {
	ID            int
	Name          string
	ZoneIndex     int
	BreathingRate float64 // m³/s; 1.2e-4 ≈ 7.2 L/min at rest
	ScheduleID    int     // -1 = stationary

	// EmissionRate, when positive, makes the occupant a mobile source
	// of EmissionSpecies (kg/s) in whatever zone they occupy.
	EmissionRate    float64
	EmissionSpecies int

	Exposure []ExposureRecord
}

// NewOccupant returns a stationary occupant in the given zone.
func NewOccupant(id int, name string, zoneIndex int, breathingRate float64) *Occupant {
	return &Occupant{
		ID: id, Name: name, ZoneIndex: zoneIndex,
		BreathingRate: breathingRate, ScheduleID: -1, EmissionSpecies: -1,
	}
}

// InitExposure sizes the exposure records for the species set.
func (o *Occupant) InitExposure(numSpecies int) {
	o.Exposure = make([]ExposureRecord, numSpecies)
	for i := range o.Exposure {
		o.Exposure[i].SpeciesIndex = i
	}
}

// UpdateExposure accumulates dose, peak and exposure time from the
// concentrations in the occupant's current zone over one step of
// length dt ending at time t.
func (o *Occupant) UpdateExposure(zoneConcentrations []float64, t, dt float64) {
	for i := range o.Exposure {
		rec := &o.Exposure[i]
		if rec.SpeciesIndex >= len(zoneConcentrations) {
			continue
		}
		conc := zoneConcentrations[rec.SpeciesIndex]
		rec.CumulativeDose += o.BreathingRate * conc * dt
		if conc > rec.PeakConcentration {
			rec.PeakConcentration = conc
			rec.TimeAtPeak = t
		}
		if conc > 1e-15 {
			rec.TotalExposureTime += dt
		}
	}
}
