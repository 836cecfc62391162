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
	"fmt"
	"math"
)

// Duct is a cylindrical duct with Darcy friction and lumped minor
// losses: ΔP = (f·L/D + ΣK)·ρ·V²/2, with the friction factor f from the
// Colebrook–White correlation. Calculate inverts this relation for the
// velocity at a given pressure difference.
type Duct struct {
	Length    float64 // m
	Diameter  float64 // m
	Roughness float64 // m, absolute roughness ε
	SumK      float64 // sum of minor-loss coefficients

	area        float64
	linearSlope float64
}

// NewDuct validates the geometry and returns the element. Roughness
// defaults are the caller's concern; zero roughness (hydraulically
// smooth) is allowed.
func NewDuct(length, diameter, roughness, sumK float64) (*Duct, error) {
	if length <= 0 {
		return nil, fmt.Errorf("duct length = %g must be positive: %w", length, ErrInvalidParameter)
	}
	if diameter <= 0 {
		return nil, fmt.Errorf("duct diameter = %g must be positive: %w", diameter, ErrInvalidParameter)
	}
	if roughness < 0 {
		return nil, fmt.Errorf("duct roughness = %g must be non-negative: %w", roughness, ErrInvalidParameter)
	}
	if sumK < 0 {
		return nil, fmt.Errorf("duct minor loss sum = %g must be non-negative: %w", sumK, ErrInvalidParameter)
	}
	d := &Duct{Length: length, Diameter: diameter, Roughness: roughness, SumK: sumK}
	d.area = math.Pi * diameter * diameter / 4
	mdotAtMin := d.massFlowAt(DPMin, densityRef)
	d.linearSlope = mdotAtMin / DPMin
	return d, nil
}

// frictionFactor returns the Darcy friction factor at the given
// Reynolds number: 64/Re in the laminar range, Colebrook–White above,
// iterated from the Haaland explicit estimate.
func (d *Duct) frictionFactor(re float64) float64 {
	if re < 1 {
		re = 1
	}
	if re < 2300 {
		return 64 / re
	}
	relRough := d.Roughness / d.Diameter
	// Haaland starting guess.
	inv := -1.8 * math.Log10(math.Pow(relRough/3.7, 1.11)+6.9/re)
	f := 1 / (inv * inv)
	for i := 0; i < 20; i++ {
		inv = -2 * math.Log10(relRough/3.7+2.51/(re*math.Sqrt(f)))
		fNew := 1 / (inv * inv)
		if math.Abs(fNew-f) < 1e-12 {
			return fNew
		}
		f = fNew
	}
	return f
}

// massFlowAt inverts ΔP = (f·L/D + ΣK)·ρ·V²/2 for the unsigned mass
// flow at a positive pressure difference by fixed-point iteration on
// the friction factor.
func (d *Duct) massFlowAt(absDP, density float64) float64 {
	f := 0.02 // fully-rough starting point
	var v float64
	for i := 0; i < 50; i++ {
		coef := f*d.Length/d.Diameter + d.SumK
		vNew := math.Sqrt(2 * absDP / (density * coef))
		re := density * vNew * d.Diameter / MuAir
		fNew := d.frictionFactor(re)
		if math.Abs(vNew-v) <= 1e-12*math.Max(vNew, 1e-30) {
			v = vNew
			break
		}
		v, f = vNew, fNew
	}
	return density * v * d.area
}

// Calculate implements FlowElement. The law is symmetric about ΔP = 0.
// The derivative is obtained by central differencing the inverted law,
// which keeps it consistent with the friction factor's dependence on
// the Reynolds number.
func (d *Duct) Calculate(deltaP, density float64) FlowResult {
	absDP := math.Abs(deltaP)
	sign := 1.0
	if deltaP < 0 {
		sign = -1
	}
	if absDP < DPMin {
		return FlowResult{MassFlow: d.linearSlope * deltaP, Derivative: d.linearSlope}
	}
	mdot := d.massFlowAt(absDP, density)
	eps := 1e-6 * absDP
	deriv := (d.massFlowAt(absDP+eps, density) - d.massFlowAt(absDP-eps, density)) / (2 * eps)
	if deriv <= 0 || math.IsNaN(deriv) {
		deriv = mdot / (2 * absDP)
	}
	return FlowResult{
		MassFlow:   mdot * sign,
		Derivative: deriv,
	}
}

// TypeName implements FlowElement.
func (d *Duct) TypeName() string { return "Duct" }

// Clone implements FlowElement.
func (d *Duct) Clone() FlowElement {
	c := *d
	return &c
}
