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
	"errors"
	"math"
	"testing"
)

// reversible elements must give equal-magnitude, opposite-sign flows
// for opposite pressure differences.
func TestElementAntisymmetry(t *testing.T) {
	const tol = 1e-6
	elements := map[string]FlowElement{}
	if e, err := NewPowerLawOrifice(0.001, 0.65); err == nil {
		elements["PowerLawOrifice"] = e
	}
	if e, err := NewTwoWayFlow(0.65, 1.0); err == nil {
		elements["TwoWayFlow"] = e
	}
	if e, err := NewDamper(0.005, 0.65, 0.7); err == nil {
		elements["Damper"] = e
	}
	if e, err := NewDuct(5.0, 0.2, 0.0001, 0); err == nil {
		elements["Duct"] = e
	}
	if e, err := NewFilter(0.002, 0.6, 0.9); err == nil {
		elements["Filter"] = e
	}
	if len(elements) != 5 {
		t.Fatalf("element construction failed; got %d of 5", len(elements))
	}
	for name, e := range elements {
		for _, dp := range []float64{0.5, 10, 50} {
			pos := e.Calculate(dp, 1.2)
			neg := e.Calculate(-dp, 1.2)
			if math.Abs(pos.MassFlow+neg.MassFlow) > tol {
				t.Errorf("%s: asymmetric at ΔP=%g: %g vs %g", name, dp, pos.MassFlow, neg.MassFlow)
			}
		}
	}
}

// the returned derivative must agree with a central difference of the
// mass flow away from the linearization region.
func TestElementDerivativeConsistency(t *testing.T) {
	const relTol = 1e-4
	plo, _ := NewPowerLawOrifice(0.001, 0.65)
	twf, _ := NewTwoWayFlow(0.65, 1.0)
	dmp, _ := NewDamper(0.005, 0.65, 0.8)
	flt, _ := NewFilter(0.002, 0.6, 0.9)
	dct, _ := NewDuct(5.0, 0.2, 0.0001, 2.0)
	for name, e := range map[string]FlowElement{
		"PowerLawOrifice": plo, "TwoWayFlow": twf, "Damper": dmp, "Filter": flt, "Duct": dct,
	} {
		for _, dp := range []float64{5.0, 25.0, 80.0} {
			const eps = 1e-4
			fwd := e.Calculate(dp+eps, 1.2).MassFlow
			bwd := e.Calculate(dp-eps, 1.2).MassFlow
			numeric := (fwd - bwd) / (2 * eps)
			got := e.Calculate(dp, 1.2).Derivative
			if math.Abs(numeric-got)/math.Abs(numeric) > relTol {
				t.Errorf("%s at ΔP=%g: derivative %g, central difference %g", name, dp, got, numeric)
			}
		}
	}
}

// crossing the linearization threshold must not jump the flow.
func TestLinearizationContinuity(t *testing.T) {
	const tol = 1e-6
	plo, _ := NewPowerLawOrifice(0.001, 0.65)
	twf, _ := NewTwoWayFlow(0.65, 1.0)
	dmp, _ := NewDamper(0.005, 0.65, 1.0)
	flt, _ := NewFilter(0.002, 0.6, 0.9)
	dct, _ := NewDuct(5.0, 0.2, 0.0001, 2.0)
	for name, e := range map[string]FlowElement{
		"PowerLawOrifice": plo, "TwoWayFlow": twf, "Damper": dmp, "Filter": flt, "Duct": dct,
	} {
		for _, sign := range []float64{1, -1} {
			below := e.Calculate(sign*0.999*DPMin, 1.2).MassFlow
			above := e.Calculate(sign*1.001*DPMin, 1.2).MassFlow
			if math.Abs(above-below) > tol {
				t.Errorf("%s: discontinuous at %g·DPMin: %g vs %g", name, sign, below, above)
			}
		}
	}
}

func TestParameterValidation(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"orifice C=0", func() error { _, err := NewPowerLawOrifice(0, 0.65); return err }()},
		{"orifice C<0", func() error { _, err := NewPowerLawOrifice(-1, 0.65); return err }()},
		{"orifice n<0.5", func() error { _, err := NewPowerLawOrifice(0.001, 0.4); return err }()},
		{"orifice n>1", func() error { _, err := NewPowerLawOrifice(0.001, 1.1); return err }()},
		{"duct L=0", func() error { _, err := NewDuct(0, 0.2, 0.0001, 0); return err }()},
		{"duct D=0", func() error { _, err := NewDuct(5, 0, 0.0001, 0); return err }()},
		{"duct eps<0", func() error { _, err := NewDuct(5, 0.2, -0.001, 0); return err }()},
		{"fan Qmax=0", func() error { _, err := NewFan(0, 100); return err }()},
		{"fan Qmax<0", func() error { _, err := NewFan(-0.1, 100); return err }()},
		{"fan Pso=0", func() error { _, err := NewFan(0.1, 0); return err }()},
		{"twoway Cd=0", func() error { _, err := NewTwoWayFlow(0, 1); return err }()},
		{"twoway A=0", func() error { _, err := NewTwoWayFlow(0.65, 0); return err }()},
		{"damper Cmax=0", func() error { _, err := NewDamper(0, 0.65, 1); return err }()},
		{"filter C=0", func() error { _, err := NewFilter(0, 0.65, 0.9); return err }()},
	}
	for _, c := range cases {
		if c.err == nil {
			t.Errorf("%s: expected error, got nil", c.name)
		} else if !errors.Is(c.err, ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", c.name, c.err)
		}
	}
}

func TestFanCurve(t *testing.T) {
	fan, err := NewFan(0.1, 100)
	if err != nil {
		t.Fatal(err)
	}
	const density = 1.2
	if got := fan.Calculate(0, density).MassFlow; math.Abs(got-density*0.1) > 1e-10 {
		t.Errorf("free delivery: got %g", got)
	}
	// At shutoff and beyond the fan delivers nothing.
	if got := fan.Calculate(100, density).MassFlow; math.Abs(got) > 1e-10 {
		t.Errorf("at shutoff: got %g", got)
	}
	if got := fan.Calculate(150, density).MassFlow; got != 0 {
		t.Errorf("beyond shutoff: got %g", got)
	}
	// Half shutoff pressure, half delivery.
	if got := fan.Calculate(50, density).MassFlow; math.Abs(got-0.06) > 1e-10 {
		t.Errorf("half shutoff: got %g, want 0.06", got)
	}
	// Assisting pressure increases delivery.
	if fan.Calculate(-50, density).MassFlow <= fan.Calculate(0, density).MassFlow {
		t.Error("assisting ΔP should increase delivery")
	}
	if d := fan.Calculate(50, density).Derivative; d >= 0 {
		t.Errorf("fan derivative should be negative, got %g", d)
	}
	// Saturated derivative is tiny but nonzero for Jacobian rank.
	if d := fan.Calculate(150, density).Derivative; d == 0 || math.Abs(d) > 1e-9 {
		t.Errorf("saturated derivative %g should be tiny and nonzero", d)
	}
}

func TestTwoWayOrificeEquation(t *testing.T) {
	twf, err := NewTwoWayFlow(0.65, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	const dp, rho = 50.0, 1.2
	want := rho * 0.65 * 1.0 * math.Sqrt(2*dp/rho)
	if got := twf.Calculate(dp, rho).MassFlow; math.Abs(got-want) > 1e-6 {
		t.Errorf("got %g, want %g", got, want)
	}
}

func TestDoorwayCounterflow(t *testing.T) {
	door, err := NewDoorway(0.65, 2.0, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if !door.Bidirectional() {
		t.Fatal("doorway should support bidirectional mode")
	}
	// Warm light air on the from side, cold dense air on the to side,
	// no static pressure difference: the neutral plane sits at the
	// centerline and air flows both ways.
	rhoFrom, rhoTo := 1.16, 1.29
	res := door.CalculateBidirectional(0, rhoFrom, rhoTo, 1.0)
	if res.Derivative <= 0 {
		t.Errorf("counterflow derivative should be positive, got %g", res.Derivative)
	}
	// The net flow is small compared to either unidirectional component
	// at an equivalent one-way pressure difference.
	oneWay := door.Calculate(5, 1.2).MassFlow
	if math.Abs(res.MassFlow) > oneWay {
		t.Errorf("net counterflow %g should be below one-way flow %g", res.MassFlow, oneWay)
	}
	// Far from the neutral plane the element falls back to the
	// simplified mode.
	far := door.CalculateBidirectional(500, rhoFrom, rhoTo, 1.0)
	simple := door.Calculate(500, 0.5*(rhoFrom+rhoTo))
	if math.Abs(far.MassFlow-simple.MassFlow) > 1e-9 {
		t.Errorf("outside the opening: got %g, want simplified %g", far.MassFlow, simple.MassFlow)
	}
}

func TestDamperFraction(t *testing.T) {
	d, err := NewDamper(0.01, 0.65, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	half := d.Calculate(10, 1.2).MassFlow
	d.SetFraction(1.0)
	full := d.Calculate(10, 1.2).MassFlow
	if math.Abs(full-2*half) > 1e-12 {
		t.Errorf("C_eff should scale linearly with fraction: half %g, full %g", half, full)
	}
	d.SetFraction(-0.3) // clamps to 0
	if got := d.Calculate(10, 1.2).MassFlow; got != 0 {
		t.Errorf("closed damper should not flow, got %g", got)
	}
	if got := d.Calculate(10, 1.2).Derivative; got <= 0 {
		t.Errorf("closed damper still needs a positive conditioning derivative, got %g", got)
	}
	d.SetFraction(1.7) // clamps to 1
	if d.Fraction != 1 {
		t.Errorf("fraction should clamp to 1, got %g", d.Fraction)
	}
}

func TestFilterEfficiencyClamp(t *testing.T) {
	f, err := NewFilter(0.002, 0.65, 1.4)
	if err != nil {
		t.Fatal(err)
	}
	if f.Efficiency != 1 {
		t.Errorf("efficiency should clamp to 1, got %g", f.Efficiency)
	}
	f.SetBypassFraction(0.5)
	if math.Abs(f.Efficiency-0.5) > 1e-12 {
		t.Errorf("half bypass of a rated-1.0 filter should give 0.5, got %g", f.Efficiency)
	}
	f.SetBypassFraction(0)
	if math.Abs(f.Efficiency-1.0) > 1e-12 {
		t.Errorf("no bypass should restore the rated efficiency, got %g", f.Efficiency)
	}
}

func TestDuctBehavior(t *testing.T) {
	short, _ := NewDuct(2.0, 0.2, 0.0001, 0)
	long, _ := NewDuct(10.0, 0.2, 0.0001, 0)
	if short.Calculate(50, 1.2).MassFlow <= long.Calculate(50, 1.2).MassFlow {
		t.Error("longer duct should pass less flow")
	}
	small, _ := NewDuct(5.0, 0.1, 0.0001, 0)
	large, _ := NewDuct(5.0, 0.3, 0.0001, 0)
	if large.Calculate(50, 1.2).MassFlow <= small.Calculate(50, 1.2).MassFlow {
		t.Error("larger diameter should pass more flow")
	}
	noMinor, _ := NewDuct(5.0, 0.2, 0.0001, 0)
	withMinor, _ := NewDuct(5.0, 0.2, 0.0001, 10)
	if noMinor.Calculate(50, 1.2).MassFlow <= withMinor.Calculate(50, 1.2).MassFlow {
		t.Error("minor losses should reduce flow")
	}
	d, _ := NewDuct(5.0, 0.2, 0.0001, 0)
	res := d.Calculate(0, 1.2)
	if res.MassFlow != 0 || res.Derivative <= 0 {
		t.Errorf("zero ΔP: flow %g, derivative %g", res.MassFlow, res.Derivative)
	}
}

func TestPowerLawFactories(t *testing.T) {
	// An ELA element must reproduce the reference flow at dPref.
	plo, err := PowerLawFromLeakageArea(0.01, 0.65, 4.0)
	if err != nil {
		t.Fatal(err)
	}
	wantQ := 0.01 * math.Sqrt(2*4.0/1.2)
	gotQ := plo.Calculate(4.0, 1.2).MassFlow / 1.2
	if math.Abs(gotQ-wantQ) > wantQ*0.01 {
		t.Errorf("leakage area flow: got %g, want %g", gotQ, wantQ)
	}

	orif, err := PowerLawFromOrificeArea(0.05, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if orif.N != 0.5 {
		t.Errorf("orifice factory exponent: got %g, want 0.5", orif.N)
	}
	wantQ = 0.6 * 0.05 * math.Sqrt(2*10.0/1.2)
	gotQ = orif.Calculate(10.0, 1.2).MassFlow / 1.2
	if math.Abs(gotQ-wantQ) > wantQ*0.01 {
		t.Errorf("orifice area flow: got %g, want %g", gotQ, wantQ)
	}
}

func TestElementClone(t *testing.T) {
	fan, _ := NewFan(0.1, 100)
	duct, _ := NewDuct(5, 0.2, 0.0001, 2)
	damper, _ := NewDamper(0.01, 0.65, 0.5)
	for name, e := range map[string]FlowElement{"Fan": fan, "Duct": duct, "Damper": damper} {
		c := e.Clone()
		a := e.Calculate(50, 1.2)
		b := c.Calculate(50, 1.2)
		if a.MassFlow != b.MassFlow || a.Derivative != b.Derivative {
			t.Errorf("%s clone disagrees with original", name)
		}
	}
	// Mutating the clone must not touch the original.
	c := damper.Clone().(*Damper)
	c.SetFraction(1.0)
	if damper.Fraction != 0.5 {
		t.Error("clone mutation leaked into the original damper")
	}
}
