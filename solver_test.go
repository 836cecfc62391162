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

// threeStoreyStack builds a column of three heated rooms connected to a
// cold ambient through exterior cracks and to each other through floor
// leaks.
func threeStoreyStack(t *testing.T) *Network {
	t.Helper()
	net := NewNetwork()
	net.AmbientTemperature = 273.15

	amb := NewNode(0, "Ambient", Ambient)
	amb.Temperature = 273.15
	amb.UpdateDensity()
	net.AddNode(amb)

	for i, z := range []float64{0, 3, 6} {
		room := NewNode(i+1, "Room", Normal)
		room.Temperature = 293.15
		room.Elevation = z
		room.Volume = 75
		room.UpdateDensity()
		net.AddNode(room)
	}

	ext := func() FlowElement {
		e, err := NewPowerLawOrifice(0.001, 0.65)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}
	floor := func() FlowElement {
		e, err := NewPowerLawOrifice(0.0005, 0.65)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	links := []*Link{
		NewLink(0, 0, 1, 1.5, ext()),   // bottom exterior crack, in
		NewLink(1, 1, 0, 1.5, ext()),   // bottom exterior crack, out side
		NewLink(2, 1, 2, 3.0, floor()), // floor leak ground → first
		NewLink(3, 2, 3, 6.0, floor()), // floor leak first → second
		NewLink(4, 2, 0, 4.5, ext()),   // middle exterior crack
		NewLink(5, 3, 0, 7.5, ext()),   // top exterior crack
	}
	for _, l := range links {
		if err := net.AddLink(l); err != nil {
			t.Fatal(err)
		}
	}
	return net
}

func TestStackEffectConverges(t *testing.T) {
	net := threeStoreyStack(t)
	result := NewSolver(TrustRegion).Solve(net)
	if !result.Converged {
		t.Fatalf("did not converge: residual %g after %d iterations", result.MaxResidual, result.Iterations)
	}
	if result.MaxResidual >= ConvergenceTol {
		t.Errorf("residual %g not below tolerance", result.MaxResidual)
	}
	if result.Iterations >= 50 {
		t.Errorf("took %d iterations, expected < 50", result.Iterations)
	}
}

func TestStackEffectMassConservation(t *testing.T) {
	net := threeStoreyStack(t)
	result := NewSolver(TrustRegion).Solve(net)
	if !result.Converged {
		t.Fatal("did not converge")
	}
	netFlow := make([]float64, len(net.Nodes))
	for i, l := range net.Links {
		netFlow[l.From] -= result.MassFlows[i]
		netFlow[l.To] += result.MassFlows[i]
	}
	for i, n := range net.Nodes {
		if n.KnownPressure() {
			continue
		}
		if math.Abs(netFlow[i]) > 1e-6 {
			t.Errorf("node %d (%s): net flow %g kg/s", i, n.Name, netFlow[i])
		}
	}
}

func TestStackEffectFlowDirections(t *testing.T) {
	net := threeStoreyStack(t)
	result := NewSolver(TrustRegion).Solve(net)
	if !result.Converged {
		t.Fatal("did not converge")
	}
	// Warm building in cold surroundings: air enters low, rises through
	// the floors, and leaves high.
	if result.MassFlows[0] <= 0 {
		t.Errorf("bottom crack should flow inward, got %g", result.MassFlows[0])
	}
	if result.MassFlows[5] <= 0 {
		t.Errorf("top crack should flow outward, got %g", result.MassFlows[5])
	}
	if result.MassFlows[2] <= 0 || result.MassFlows[3] <= 0 {
		t.Errorf("floor leaks should flow upward, got %g and %g", result.MassFlows[2], result.MassFlows[3])
	}
}

func TestSubRelaxationConverges(t *testing.T) {
	net := threeStoreyStack(t)
	result := NewSolver(SubRelaxation).Solve(net)
	if !result.Converged {
		t.Fatalf("SUR did not converge: residual %g after %d iterations", result.MaxResidual, result.Iterations)
	}
}

func TestAmbientPressureUnchanged(t *testing.T) {
	net := threeStoreyStack(t)
	net.Nodes[0].Pressure = 2.5
	result := NewSolver(TrustRegion).Solve(net)
	if result.Pressures[0] != 2.5 {
		t.Errorf("ambient pressure changed to %g", result.Pressures[0])
	}
}

func TestSolveAllAmbient(t *testing.T) {
	net := NewNetwork()
	net.AddNode(NewNode(0, "Out", Ambient))
	net.AddNode(NewNode(1, "Out2", Ambient))
	result := NewSolver(TrustRegion).Solve(net)
	if !result.Converged {
		t.Error("network with no unknowns should converge trivially")
	}
}

// With wind loading the windward crack sees a higher boundary pressure
// and pushes more air into the building.
func TestWindPressureBoundary(t *testing.T) {
	build := func(windSpeed float64) *Network {
		net := NewNetwork()
		net.WindSpeed = windSpeed
		net.WindDirection = 0

		windward := NewNode(0, "Windward", Ambient)
		windward.Wind = &WindExposure{WallAzimuth: 0, TerrainFactor: 1, Cp: 0.6}
		net.AddNode(windward)
		leeward := NewNode(1, "Leeward", Ambient)
		leeward.Wind = &WindExposure{WallAzimuth: 180, TerrainFactor: 1, Cp: -0.5}
		net.AddNode(leeward)
		room := NewNode(2, "Room", Normal)
		room.Volume = 50
		net.AddNode(room)

		in, _ := NewPowerLawOrifice(0.001, 0.65)
		out, _ := NewPowerLawOrifice(0.001, 0.65)
		net.AddLink(NewLink(0, 0, 2, 1.5, in))
		net.AddLink(NewLink(1, 2, 1, 1.5, out))
		return net
	}

	calm := build(0)
	if r := NewSolver(TrustRegion).Solve(calm); !r.Converged || math.Abs(r.MassFlows[0]) > 1e-7 {
		t.Fatalf("no wind: expected no flow, got %v", r.MassFlows)
	}
	windy := build(5)
	r := NewSolver(TrustRegion).Solve(windy)
	if !r.Converged {
		t.Fatal("windy case did not converge")
	}
	if r.MassFlows[0] <= 0 || r.MassFlows[1] <= 0 {
		t.Errorf("wind should drive cross-ventilation, got %v", r.MassFlows)
	}
}
