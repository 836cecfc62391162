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

func TestAdaptiveExponentialDecay(t *testing.T) {
	cfg := DefaultIntegratorConfig()
	ai, err := NewAdaptiveIntegrator(1, cfg)
	if err != nil {
		t.Fatal(err)
	}
	y := []float64{1}
	rhs := func(_ float64, y, dydt []float64) { dydt[0] = -y[0] }
	reached := ai.Step(0, 1, y, rhs)
	if math.Abs(reached-1) > 1e-9 {
		t.Fatalf("reached t=%g, want 1", reached)
	}
	want := math.Exp(-1)
	if math.Abs(y[0]-want) > cfg.RTol*want+cfg.ATol {
		t.Errorf("y(1) = %g, want %g within rtol %g", y[0], want, cfg.RTol)
	}
	if ai.TotalSteps() == 0 {
		t.Error("expected at least one accepted internal step")
	}
}

func TestAdaptiveStiffDecay(t *testing.T) {
	cfg := DefaultIntegratorConfig()
	ai, err := NewAdaptiveIntegrator(2, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// One fast and one slow mode.
	y := []float64{1, 1}
	rhs := func(_ float64, y, dydt []float64) {
		dydt[0] = -50 * y[0]
		dydt[1] = -0.1 * y[1]
	}
	ai.Step(0, 10, y, rhs)
	if math.Abs(y[0]) > 1e-3 {
		t.Errorf("fast mode should be gone, got %g", y[0])
	}
	want := math.Exp(-1)
	if math.Abs(y[1]-want) > 0.01*want {
		t.Errorf("slow mode y=%g, want %g", y[1], want)
	}
}

func TestStepSizeControllerBounds(t *testing.T) {
	cfg := DefaultIntegratorConfig()
	ai, err := NewAdaptiveIntegrator(1, cfg)
	if err != nil {
		t.Fatal(err)
	}
	y := []float64{1}
	ai.Step(0, 100, y, func(_ float64, y, dydt []float64) { dydt[0] = -y[0] })
	if dt := ai.SuggestedDt(); dt < cfg.DtMin || dt > cfg.DtMax {
		t.Errorf("suggested dt %g outside [%g, %g]", dt, cfg.DtMin, cfg.DtMax)
	}
}

func TestBDF2SingleStep(t *testing.T) {
	ai, err := NewAdaptiveIntegrator(1, DefaultIntegratorConfig())
	if err != nil {
		t.Fatal(err)
	}
	// BDF-2 is exact for linear-in-time solutions: dy/dt = 2.
	rhs := func(_ float64, _, dydt []float64) { dydt[0] = 2 }
	ynm1 := []float64{0} // y(0)
	yn := []float64{2}   // y(1)
	ynp1 := make([]float64, 1)
	ai.StepBDF2(1, 1, 1, yn, ynm1, ynp1, rhs)
	if math.Abs(ynp1[0]-4) > 1e-8 {
		t.Errorf("BDF-2 on a linear solution: got %g, want 4", ynp1[0])
	}
}

func TestIntegratorConfigValidation(t *testing.T) {
	if _, err := NewAdaptiveIntegrator(0, DefaultIntegratorConfig()); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero states should fail, got %v", err)
	}
	bad := DefaultIntegratorConfig()
	bad.RTol = 0
	if _, err := NewAdaptiveIntegrator(1, bad); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero rtol should fail, got %v", err)
	}
}
