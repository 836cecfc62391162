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

// TwoWayFlow is a large opening such as a doorway or window. In its
// simplified mode it behaves as an orifice, Q = C_d·A·√(2|ΔP|/ρ). When
// the opening geometry (height and width) is given and the two adjacent
// zones have different densities, the element can also resolve
// simultaneous counterflow above and below the neutral plane.
type TwoWayFlow struct {
	Cd   float64 // discharge coefficient
	Area float64 // m²

	// Height and Width describe the opening for bidirectional flow.
	// When either is zero the element always uses the simplified mode.
	Height float64 // m
	Width  float64 // m

	linearSlope float64
}

// NewTwoWayFlow returns a large-opening element in simplified mode.
func NewTwoWayFlow(cd, area float64) (*TwoWayFlow, error) {
	if cd <= 0 || area <= 0 {
		return nil, fmt.Errorf("two-way flow Cd = %g and area = %g must be positive: %w", cd, area, ErrInvalidParameter)
	}
	t := &TwoWayFlow{Cd: cd, Area: area}
	qAtMin := cd * area * math.Sqrt(2*DPMin/densityRef)
	t.linearSlope = densityRef * qAtMin / DPMin
	return t, nil
}

// NewDoorway returns a large-opening element with the geometry needed
// for bidirectional (counterflow) resolution.
func NewDoorway(cd, height, width float64) (*TwoWayFlow, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("doorway height = %g and width = %g must be positive: %w", height, width, ErrInvalidParameter)
	}
	t, err := NewTwoWayFlow(cd, height*width)
	if err != nil {
		return nil, err
	}
	t.Height = height
	t.Width = width
	return t, nil
}

// Bidirectional reports whether the opening geometry supports
// counterflow resolution.
func (t *TwoWayFlow) Bidirectional() bool { return t.Height > 0 && t.Width > 0 }

// Calculate implements FlowElement using the simplified orifice mode.
func (t *TwoWayFlow) Calculate(deltaP, density float64) FlowResult {
	absDP := math.Abs(deltaP)
	sign := 1.0
	if deltaP < 0 {
		sign = -1
	}
	if absDP < DPMin {
		return FlowResult{MassFlow: t.linearSlope * deltaP, Derivative: t.linearSlope}
	}
	q := t.Cd * t.Area * math.Sqrt(2*absDP/density)
	return FlowResult{
		MassFlow:   density * q * sign,
		Derivative: 0.5 * t.Cd * t.Area * math.Sqrt(2*density/absDP),
	}
}

// CalculateBidirectional resolves the opening with the densities of the
// two adjacent zones. deltaP is the elevation-corrected pressure
// difference at the link centerline elevation linkZ; rhoFrom and rhoTo
// are the densities on the from- and to-side. When the neutral plane
// falls inside the opening the two unidirectional fluxes are integrated
// separately and the net flow returned; otherwise the simplified mode
// applies with the average density. The derivative is obtained by
// central perturbation of ΔP.
func (t *TwoWayFlow) CalculateBidirectional(deltaP, rhoFrom, rhoTo, linkZ float64) FlowResult {
	avg := 0.5 * (rhoFrom + rhoTo)
	if !t.Bidirectional() || math.Abs(rhoFrom-rhoTo) < 1e-12 {
		return t.Calculate(deltaP, avg)
	}
	a := (rhoFrom - rhoTo) * Gravity
	zNP := linkZ - deltaP/a
	zBot := linkZ - t.Height/2
	zTop := linkZ + t.Height/2
	if zNP < zBot || zNP > zTop {
		// Neutral plane outside the opening: one-way flow.
		return t.Calculate(deltaP, avg)
	}

	net := t.bidirectionalNet(deltaP, rhoFrom, rhoTo, linkZ)
	eps := math.Max(1e-6, 1e-6*math.Abs(deltaP))
	dPlus := t.bidirectionalNet(deltaP+eps, rhoFrom, rhoTo, linkZ)
	dMinus := t.bidirectionalNet(deltaP-eps, rhoFrom, rhoTo, linkZ)
	deriv := (dPlus - dMinus) / (2 * eps)
	if deriv <= 0 || math.IsNaN(deriv) {
		deriv = t.linearSlope
	}
	return FlowResult{MassFlow: net, Derivative: deriv}
}

// bidirectionalNet integrates the two unidirectional fluxes through the
// opening. The local pressure difference varies linearly with height,
// ΔP(z) = ΔP + (ρ_from − ρ_to)·g·(z − Z_k), and changes sign at the
// neutral plane Z_np = Z_k − ΔP/((ρ_from − ρ_to)·g); each side is
// integrated in closed form, ∫√|ΔP(z)| dz = (2/(3|a|))·|ΔP(end)|^{3/2}.
func (t *TwoWayFlow) bidirectionalNet(deltaP, rhoFrom, rhoTo, linkZ float64) float64 {
	a := (rhoFrom - rhoTo) * Gravity
	zBot := linkZ - t.Height/2
	zTop := linkZ + t.Height/2

	dpAt := func(z float64) float64 { return deltaP + a*(z-linkZ) }
	segment := func(zEnd float64) float64 {
		return 2 / (3 * math.Abs(a)) * math.Pow(math.Abs(dpAt(zEnd)), 1.5)
	}

	var mdotFwd, mdotRev float64 // from→to and to→from, both ≥ 0
	for _, z := range [2]float64{zBot, zTop} {
		flux := t.Cd * t.Width * segment(z)
		if dpAt(z) > 0 {
			mdotFwd += flux * math.Sqrt(2*rhoFrom)
		} else {
			mdotRev += flux * math.Sqrt(2*rhoTo)
		}
	}
	return mdotFwd - mdotRev
}

// TypeName implements FlowElement.
func (t *TwoWayFlow) TypeName() string { return "TwoWayFlow" }

// Clone implements FlowElement.
func (t *TwoWayFlow) Clone() FlowElement {
	c := *t
	return &c
}
