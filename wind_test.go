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

import (
	"math"
	"testing"
)

func TestCpProfileInterpolation(t *testing.T) {
	w := &WindExposure{
		WallAzimuth:   0,
		TerrainFactor: 1,
		Profile: []CpPoint{
			{0, 0.6}, {90, -0.3}, {180, -0.5}, {270, -0.3}, {360, 0.6},
		},
	}
	cases := []struct {
		dir  float64
		want float64
		tol  float64
	}{
		{0, 0.6, 0.01},     // windward
		{90, -0.3, 0.01},   // side
		{180, -0.5, 0.01},  // leeward
		{45, 0.15, 0.05},   // interpolated between windward and side
		{360, 0.6, 0.01},   // wraps around
	}
	for _, c := range cases {
		if got := w.CpAt(c.dir); math.Abs(got-c.want) > c.tol {
			t.Errorf("Cp at %g°: got %g, want %g", c.dir, got, c.want)
		}
	}
}

func TestCpProfileWallAzimuth(t *testing.T) {
	w := &WindExposure{
		WallAzimuth: 90, // east-facing wall
		Profile:     []CpPoint{{0, 0.6}, {90, -0.3}, {180, -0.5}, {270, -0.3}, {360, 0.6}},
	}
	// Wind from the east hits the wall head on.
	if got := w.CpAt(90); math.Abs(got-0.6) > 0.01 {
		t.Errorf("head-on Cp: got %g, want 0.6", got)
	}
}

func TestWindPressureTerrainFactor(t *testing.T) {
	w := &WindExposure{TerrainFactor: 0.8, Cp: 0.6}
	const rho, speed = 1.2, 5.0
	want := 0.5 * rho * 0.8 * 0.6 * speed * speed
	if got := w.Pressure(rho, speed, 0); math.Abs(got-want) > 0.01 {
		t.Errorf("wind pressure: got %g, want %g", got, want)
	}
}
