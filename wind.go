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

// CpPoint is one sample of a wind pressure coefficient profile.
type CpPoint struct {
	Angle float64 // degrees, wind direction relative to the wall normal
	Cp    float64
}

// WindExposure describes how wind loads an ambient node. The wind
// pressure P_w = ½·ρ·K_t·Cp(θ)·U² is added to the node's gauge pressure
// when computing link pressure differences.
type WindExposure struct {
	WallAzimuth   float64 // degrees from north, direction the wall faces
	TerrainFactor float64 // K_t, wind speed modifier for terrain and height

	// Cp is the fixed pressure coefficient used when Profile is empty.
	Cp float64

	// Profile, when non-empty, gives Cp as a function of the wind angle
	// relative to the wall normal. Angles are in [0, 360); evaluation
	// interpolates linearly with wraparound.
	Profile []CpPoint
}

// CpAt returns the pressure coefficient for wind blowing from the given
// compass direction (degrees from north).
func (w *WindExposure) CpAt(windDirection float64) float64 {
	if len(w.Profile) == 0 {
		return w.Cp
	}
	theta := math.Mod(windDirection-w.WallAzimuth, 360)
	if theta < 0 {
		theta += 360
	}
	// Walk the profile; wrap the last segment back to the first point.
	for i := 0; i < len(w.Profile); i++ {
		p0 := w.Profile[i]
		var p1 CpPoint
		var span float64
		if i+1 < len(w.Profile) {
			p1 = w.Profile[i+1]
			span = p1.Angle - p0.Angle
		} else {
			p1 = w.Profile[0]
			span = 360 - p0.Angle + p1.Angle
		}
		if theta >= p0.Angle && (theta < p0.Angle+span || span <= 0) {
			if span <= 0 {
				return p0.Cp
			}
			frac := (theta - p0.Angle) / span
			return p0.Cp + frac*(p1.Cp-p0.Cp)
		}
	}
	return w.Profile[0].Cp
}

// Pressure returns the wind-induced gauge pressure on the node's wall
// for the given air density, wind speed and compass direction.
func (w *WindExposure) Pressure(density, windSpeed, windDirection float64) float64 {
	kt := w.TerrainFactor
	if kt <= 0 {
		kt = 1
	}
	return 0.5 * density * kt * w.CpAt(windDirection) * windSpeed * windSpeed
}
