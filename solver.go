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

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SolverMethod selects the globalization strategy for the airflow
// Newton iteration.
type SolverMethod int

const (
	// TrustRegion clips each Newton step to an adaptive radius.
	TrustRegion SolverMethod = iota
	// SubRelaxation applies each Newton step scaled by a fixed factor.
	SubRelaxation
)

func (m SolverMethod) String() string {
	if m == SubRelaxation {
		return "subRelaxation"
	}
	return "trustRegion"
}

// SolverResult reports the outcome of a steady-state airflow solve.
// When Converged is false, Pressures and MassFlows hold the last
// iterate rather than a converged solution.
type SolverResult struct {
	Converged   bool
	Iterations  int
	MaxResidual float64 // kg/s, infinity norm of the nodal imbalance

	// LinearSolveFailed is set when the Jacobian factorization or the
	// linear solve failed, halting the iteration.
	LinearSolveFailed bool

	Pressures []float64 // Pa, one per node (ambient entries unchanged)
	MassFlows []float64 // kg/s, one per link
}

// Solver finds the pressures of all non-ambient nodes such that the
// mass flows into each node sum to zero.
type Solver struct {
	Method         SolverMethod
	MaxIter        int
	ConvergenceTol float64
	RelaxFactor    float64
}

// NewSolver returns a solver with the default iteration limits for the
// given globalization method.
func NewSolver(method SolverMethod) *Solver {
	return &Solver{
		Method:         method,
		MaxIter:        MaxIterations,
		ConvergenceTol: ConvergenceTol,
		RelaxFactor:    RelaxFactorSUR,
	}
}

// effectivePressure returns the node's gauge pressure including any
// wind loading on an ambient boundary.
func (s *Solver) effectivePressure(net *Network, n *Node) float64 {
	p := n.Pressure
	if n.Kind == Ambient && n.Wind != nil && net.WindSpeed > 0 {
		p += n.Wind.Pressure(n.Density, net.WindSpeed, net.WindDirection)
	}
	return p
}

// deltaP computes the elevation-corrected pressure difference across a
// link: each endpoint pressure is corrected from the zone base
// elevation to the link centerline with the local air column.
func (s *Solver) deltaP(net *Network, l *Link) float64 {
	ni := net.Nodes[l.From]
	nj := net.Nodes[l.To]
	zk := l.Elevation
	pEffI := s.effectivePressure(net, ni) - ni.Density*Gravity*(zk-ni.Elevation)
	pEffJ := s.effectivePressure(net, nj) - nj.Density*Gravity*(zk-nj.Elevation)
	return pEffI - pEffJ
}

// computeFlows evaluates every link element at the current pressures,
// storing mass flow and derivative on the link.
func (s *Solver) computeFlows(net *Network) {
	for _, l := range net.Links {
		if l.Element == nil {
			continue
		}
		dp := s.deltaP(net, l)
		ni := net.Nodes[l.From]
		nj := net.Nodes[l.To]

		var res FlowResult
		if twf, ok := l.Element.(*TwoWayFlow); ok && twf.Bidirectional() {
			res = twf.CalculateBidirectional(dp, ni.Density, nj.Density, l.Elevation)
		} else {
			res = l.Element.Calculate(dp, 0.5*(ni.Density+nj.Density))
		}
		l.MassFlow = res.MassFlow
		l.Derivative = res.Derivative
	}
}

// assemble fills the Jacobian and residual over the unknown equations.
// For a link from i to j carrying ṁ with derivative d:
//
//	R[i] -= ṁ, R[j] += ṁ
//	J[i,i] -= d, J[j,j] -= d, J[i,j] += d, J[j,i] += d
//
// skipping rows and columns that belong to ambient endpoints.
func (s *Solver) assemble(net *Network, jac *sparse.SparseArray, r []float64, unknownMap []int) {
	for i := range r {
		r[i] = 0
	}
	for k := range jac.Elements {
		delete(jac.Elements, k)
	}
	for _, l := range net.Links {
		eqI := unknownMap[l.From]
		eqJ := unknownMap[l.To]
		if eqI >= 0 {
			r[eqI] -= l.MassFlow
			jac.AddVal(-l.Derivative, eqI, eqI)
			if eqJ >= 0 {
				jac.AddVal(l.Derivative, eqI, eqJ)
			}
		}
		if eqJ >= 0 {
			r[eqJ] += l.MassFlow
			jac.AddVal(-l.Derivative, eqJ, eqJ)
			if eqI >= 0 {
				jac.AddVal(l.Derivative, eqJ, eqI)
			}
		}
	}
}

// Solve runs the Newton iteration on the network, mutating node
// pressures, densities and link flows in place.
func (s *Solver) Solve(net *Network) SolverResult {
	var result SolverResult

	unknownMap := make([]int, len(net.Nodes))
	n := 0
	for i, node := range net.Nodes {
		if node.KnownPressure() {
			unknownMap[i] = -1
		} else {
			unknownMap[i] = n
			n++
		}
	}
	if n == 0 {
		result.Converged = true
		result.Pressures = collectPressures(net)
		result.MassFlows = collectMassFlows(net)
		return result
	}

	net.UpdateAllDensities()

	jac := sparse.ZerosSparse(n, n)
	r := make([]float64, n)
	x := mat.NewVecDense(n, nil)
	rhs := mat.NewVecDense(n, nil)
	trustRadius := TRInitialRadius

	for iter := 0; iter < s.MaxIter; iter++ {
		net.UpdateAllDensities()
		s.computeFlows(net)
		s.assemble(net, jac, r, unknownMap)

		result.MaxResidual = floats.Norm(r, math.Inf(1))
		result.Iterations = iter + 1
		if result.MaxResidual < s.ConvergenceTol {
			result.Converged = true
			break
		}

		// Solve J·x = -R.
		a := mat.NewDense(n, n, jac.ToDense())
		for i := 0; i < n; i++ {
			rhs.SetVec(i, -r[i])
		}
		var lu mat.LU
		lu.Factorize(a)
		if err := lu.SolveVecTo(x, false, rhs); err != nil {
			// An ill-conditioned but solvable system still yields a
			// usable Newton step; only a singular factorization halts
			// the iteration.
			if _, ill := err.(mat.Condition); !ill {
				logrus.WithError(err).Warnf("airflow: Jacobian solve failed at iteration %d", iter)
				result.LinearSolveFailed = true
				break
			}
			logrus.Debugf("airflow: ill-conditioned Jacobian at iteration %d: %v", iter, err)
		}

		switch s.Method {
		case SubRelaxation:
			s.applySUR(net, x, unknownMap)
		default:
			s.applyTR(net, x, unknownMap, &trustRadius)
		}
	}

	result.Pressures = collectPressures(net)
	result.MassFlows = collectMassFlows(net)
	return result
}

// applySUR applies the Newton step scaled by the fixed relaxation
// factor.
func (s *Solver) applySUR(net *Network, x *mat.VecDense, unknownMap []int) {
	for i, node := range net.Nodes {
		if eq := unknownMap[i]; eq >= 0 {
			node.Pressure += s.RelaxFactor * x.AtVec(eq)
		}
	}
}

// applyTR clips the Newton step to the trust radius, then adapts the
// radius: halve after a clipped step, double after a full one. No
// actual-versus-predicted reduction test is applied.
func (s *Solver) applyTR(net *Network, x *mat.VecDense, unknownMap []int, trustRadius *float64) {
	stepNorm := mat.Norm(x, 2)
	scale := 1.0
	if stepNorm > *trustRadius {
		scale = *trustRadius / stepNorm
	}
	for i, node := range net.Nodes {
		if eq := unknownMap[i]; eq >= 0 {
			node.Pressure += scale * x.AtVec(eq)
		}
	}
	if scale < 1 {
		*trustRadius = math.Max(*trustRadius*0.5, TRMinRadius)
	} else {
		*trustRadius = math.Min(*trustRadius*2, TRMaxRadius)
	}
}

func collectPressures(net *Network) []float64 {
	p := make([]float64, len(net.Nodes))
	for i, n := range net.Nodes {
		p[i] = n.Pressure
	}
	return p
}

func collectMassFlows(net *Network) []float64 {
	m := make([]float64, len(net.Links))
	for i, l := range net.Links {
		m[i] = l.MassFlow
	}
	return m
}
