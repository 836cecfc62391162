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

// RHSFunc evaluates dy/dt = f(t, y), writing the result into dydt.
type RHSFunc func(t float64, y, dydt []float64)

// IntegratorConfig holds the tolerances and step bounds of the
// adaptive integrator.
type IntegratorConfig struct {
	RTol         float64 // relative tolerance
	ATol         float64 // absolute tolerance
	DtMin        float64 // s, minimum internal step
	DtMax        float64 // s, maximum internal step
	SafetyFactor float64
	MaxOrder     int // BDF order bound (1 or 2)
}

// DefaultIntegratorConfig returns the standard tolerances for stiff
// contaminant transport.
func DefaultIntegratorConfig() IntegratorConfig {
	return IntegratorConfig{
		RTol:         1e-4,
		ATol:         1e-8,
		DtMin:        0.01,
		DtMax:        3600,
		SafetyFactor: 0.9,
		MaxOrder:     2,
	}
}

// AdaptiveIntegrator advances a stiff ODE system with BDF steps under
// Richardson-extrapolation error control. The adaptive loop uses BDF-1
// (backward Euler) pairs; a variable-step BDF-2 single step is exposed
// through StepBDF2 for callers that manage their own history.
type AdaptiveIntegrator struct {
	numStates int
	config    IntegratorConfig

	suggestedDt   float64
	totalSteps    int
	rejectedSteps int

	yPrev       []float64
	dtPrev      float64
	hasPrevious bool
}

// NewAdaptiveIntegrator returns an integrator for a state vector of the
// given length.
func NewAdaptiveIntegrator(numStates int, config IntegratorConfig) (*AdaptiveIntegrator, error) {
	if numStates <= 0 {
		return nil, fmt.Errorf("integrator state count %d must be positive: %w", numStates, ErrInvalidParameter)
	}
	if config.RTol <= 0 || config.ATol <= 0 || config.DtMin <= 0 || config.DtMax < config.DtMin {
		return nil, fmt.Errorf("integrator tolerances/steps out of range: %w", ErrInvalidParameter)
	}
	ai := &AdaptiveIntegrator{
		numStates: numStates,
		config:    config,
		yPrev:     make([]float64, numStates),
	}
	ai.suggestedDt = math.Min(config.DtMax, math.Max(config.DtMin, (config.DtMax-config.DtMin)*0.01))
	return ai, nil
}

// SuggestedDt returns the step size the controller would try next.
func (ai *AdaptiveIntegrator) SuggestedDt() float64 { return ai.suggestedDt }

// TotalSteps returns the number of accepted internal steps taken.
func (ai *AdaptiveIntegrator) TotalSteps() int { return ai.totalSteps }

// RejectedSteps returns the number of rejected internal steps.
func (ai *AdaptiveIntegrator) RejectedSteps() int { return ai.rejectedSteps }

// History returns the state before the last accepted step and the step
// size that advanced past it, for callers driving StepBDF2 with their
// own multistep history. ok is false until a step has been accepted.
func (ai *AdaptiveIntegrator) History() (yPrev []float64, dtPrev float64, ok bool) {
	return ai.yPrev, ai.dtPrev, ai.hasPrevious
}

// estimateError forms the weighted RMS norm of the difference between
// the one-step and two-half-step solutions.
func (ai *AdaptiveIntegrator) estimateError(y, yEst, yRef []float64) float64 {
	sumSq := 0.0
	for i := 0; i < ai.numStates; i++ {
		scale := ai.config.ATol + ai.config.RTol*math.Abs(y[i])
		if scale < 1e-30 {
			scale = 1e-30
		}
		diff := (yEst[i] - yRef[i]) / scale
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(ai.numStates))
}

// computeNewDt applies the standard step-size controller
// dt_new = safety·dt·(1/err)^(1/(order+1)) with the growth factor
// clamped to [0.2, 5] and the result to [DtMin, DtMax].
func (ai *AdaptiveIntegrator) computeNewDt(dt, errEst float64, order int) float64 {
	if errEst < 1e-30 {
		return math.Min(dt*5, ai.config.DtMax)
	}
	factor := ai.config.SafetyFactor * math.Pow(1/errEst, 1/float64(order+1))
	factor = math.Max(0.2, math.Min(factor, 5))
	return math.Max(ai.config.DtMin, math.Min(dt*factor, ai.config.DtMax))
}

// newtonSolve runs the undamped diagonal Newton iteration shared by the
// BDF steps. It finds ynp1 satisfying ynp1 = rhsConst + beta·f(t, ynp1)
// elementwise, where rhsConst collects the history terms.
func (ai *AdaptiveIntegrator) newtonSolve(t, beta float64, rhsConst, ynp1 []float64, rhs RHSFunc) {
	const maxNewton = 10
	const newtonTol = 1e-10

	n := ai.numStates
	fNew := make([]float64, n)
	residual := make([]float64, n)
	yPert := make([]float64, n)
	fPert := make([]float64, n)
	eps := math.Sqrt(machineEps)

	for iter := 0; iter < maxNewton; iter++ {
		rhs(t, ynp1, fNew)
		maxRes := 0.0
		for i := 0; i < n; i++ {
			residual[i] = ynp1[i] - rhsConst[i] - beta*fNew[i]
			maxRes = math.Max(maxRes, math.Abs(residual[i]))
		}
		if maxRes < newtonTol {
			return
		}
		// Diagonal Jacobian approximation by forward differences.
		copy(yPert, ynp1)
		for i := 0; i < n; i++ {
			h := eps * math.Max(math.Abs(ynp1[i]), 1)
			yPert[i] = ynp1[i] + h
			rhs(t, yPert, fPert)
			yPert[i] = ynp1[i]

			dfdy := (fPert[i] - fNew[i]) / h
			jac := 1 - beta*dfdy
			if math.Abs(jac) < 1e-30 {
				jac = 1
			}
			ynp1[i] -= residual[i] / jac
		}
	}
	// Accept the last iterate even without full convergence.
}

const machineEps = 2.220446049250313e-16

// stepBDF1 takes one backward-Euler step from yn to ynp1.
func (ai *AdaptiveIntegrator) stepBDF1(t, dt float64, yn, ynp1 []float64, rhs RHSFunc) {
	n := ai.numStates
	f := make([]float64, n)
	rhs(t, yn, f)
	for i := 0; i < n; i++ {
		ynp1[i] = yn[i] + dt*f[i] // explicit Euler predictor
	}
	ai.newtonSolve(t+dt, dt, yn, ynp1, rhs)
}

// StepBDF2 takes one variable-step BDF-2 step given the two previous
// states yn (at t) and ynm1 (at t-dtPrev), writing the solution at t+dt
// into ynp1.
func (ai *AdaptiveIntegrator) StepBDF2(t, dt, dtPrev float64, yn, ynm1, ynp1 []float64, rhs RHSFunc) {
	// Variable-step BDF-2 coefficients; for equal steps they reduce to
	// y^{n+1} = (4/3)y^n - (1/3)y^{n-1} + (2/3)·dt·f(t+dt, y^{n+1}).
	r := dt / dtPrev
	a1 := (1 + r) * (1 + r) / (1 + 2*r)
	a2 := -(r * r) / (1 + 2*r)
	beta := dt * (1 + r) / (1 + 2*r)

	n := ai.numStates
	f := make([]float64, n)
	rhs(t, yn, f)
	rhsConst := make([]float64, n)
	for i := 0; i < n; i++ {
		rhsConst[i] = a1*yn[i] + a2*ynm1[i]
		ynp1[i] = rhsConst[i] + beta*f[i] // extrapolation predictor
	}
	ai.newtonSolve(t+dt, beta, rhsConst, ynp1, rhs)
}

// Step advances y from t to t+dtTarget, taking as many internal
// error-controlled sub-steps as needed, and returns the time actually
// reached.
func (ai *AdaptiveIntegrator) Step(t, dtTarget float64, y []float64, rhs RHSFunc) float64 {
	tCurrent := t
	tEnd := t + dtTarget
	dt := math.Min(ai.suggestedDt, dtTarget)
	dt = math.Max(dt, ai.config.DtMin)
	dt = math.Min(dt, ai.config.DtMax)

	const maxInternalSteps = 100000
	internal := 0

	n := ai.numStates
	yFull := make([]float64, n)
	yHalf := make([]float64, n)
	yDouble := make([]float64, n)

	for tCurrent < tEnd-1e-14 {
		if tCurrent+dt > tEnd {
			dt = tEnd - tCurrent
		}
		if dt < ai.config.DtMin*0.5 {
			break
		}
		internal++
		if internal > maxInternalSteps {
			break
		}

		// Richardson pair: one full BDF-1 step against two half steps.
		// The difference estimates the local error; the extrapolated
		// combination 2·y_double − y_full gains an order of accuracy.
		ai.stepBDF1(tCurrent, dt, y, yFull, rhs)
		halfDt := dt * 0.5
		ai.stepBDF1(tCurrent, halfDt, y, yHalf, rhs)
		ai.stepBDF1(tCurrent+halfDt, halfDt, yHalf, yDouble, rhs)

		errEst := ai.estimateError(y, yFull, yDouble)

		if errEst > 1 && dt > ai.config.DtMin*1.01 {
			ai.rejectedSteps++
			dt = math.Max(ai.computeNewDt(dt, errEst, 1), ai.config.DtMin)
			continue
		}

		ai.suggestedDt = ai.computeNewDt(dt, errEst, 1)

		copy(ai.yPrev, y)
		ai.dtPrev = dt
		ai.hasPrevious = true

		for i := 0; i < n; i++ {
			y[i] = 2*yDouble[i] - yFull[i]
		}
		tCurrent += dt
		ai.totalSteps++

		dt = math.Min(ai.suggestedDt, tEnd-tCurrent)
		dt = math.Max(dt, ai.config.DtMin)
	}
	return tCurrent
}
