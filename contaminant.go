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

	"gonum.org/v1/gonum/mat"
)

// minZoneVolume floors the zone volume used in the transport assembly
// so near-zero volumes cannot ill-condition the system. This floor is a
// caller-visible contract.
const minZoneVolume = 1.0 // m³

// ContaminantResult is a snapshot of the concentration field after a
// transport step.
type ContaminantResult struct {
	Time           float64
	Concentrations [][]float64 // kg/m³, [zone][species]
}

// ContaminantSolver advances species concentrations with an
// implicit-Euler step over the mass flows computed by the airflow
// solver. It owns the concentration matrix C[zone][species].
type ContaminantSolver struct {
	Species   []Species
	Sources   []Source
	Schedules map[int]*Schedule

	// Reactions, when non-empty, switches Step to the coupled
	// multi-species block solve with chemical kinetics.
	Reactions *ReactionNetwork

	conc       [][]float64
	numZones   int
	numSpecies int
}

// NewContaminantSolver returns a solver for the given species set.
func NewContaminantSolver(species []Species, sources []Source, schedules map[int]*Schedule) *ContaminantSolver {
	return &ContaminantSolver{Species: species, Sources: sources, Schedules: schedules}
}

// Initialize sizes the concentration matrix for the network and sets
// ambient zones to each species' outdoor background. Interior zones
// start at zero unless overridden with SetInitialConcentration.
func (cs *ContaminantSolver) Initialize(net *Network) {
	cs.numZones = len(net.Nodes)
	cs.numSpecies = len(cs.Species)
	cs.conc = make([][]float64, cs.numZones)
	for i := range cs.conc {
		cs.conc[i] = make([]float64, cs.numSpecies)
		if net.Nodes[i].KnownPressure() {
			for k := range cs.Species {
				cs.conc[i][k] = cs.Species[k].OutdoorConc
			}
		}
	}
}

// SetInitialConcentration overrides the starting concentration of one
// species in one zone. Out-of-range indices are ignored.
func (cs *ContaminantSolver) SetInitialConcentration(zoneIdx, speciesIdx int, c float64) {
	if zoneIdx >= 0 && zoneIdx < cs.numZones && speciesIdx >= 0 && speciesIdx < cs.numSpecies {
		cs.conc[zoneIdx][speciesIdx] = c
	}
}

// Concentrations returns the live concentration matrix [zone][species].
func (cs *ContaminantSolver) Concentrations() [][]float64 { return cs.conc }

// Snapshot returns a deep copy of the concentration matrix.
func (cs *ContaminantSolver) Snapshot() [][]float64 {
	out := make([][]float64, len(cs.conc))
	for i, row := range cs.conc {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func (cs *ContaminantSolver) scheduleValue(id int, t float64) float64 {
	if id < 0 || cs.Schedules == nil {
		return 1
	}
	sched, ok := cs.Schedules[id]
	if !ok {
		return 1
	}
	return sched.Value(t)
}

// Step advances all species from t to t+dt using the link mass flows
// already stored on the network, then resnaps ambient zones to their
// outdoor backgrounds.
func (cs *ContaminantSolver) Step(net *Network, t, dt float64) (ContaminantResult, error) {
	if cs.numSpecies == 0 {
		return ContaminantResult{Time: t + dt}, nil
	}

	if !cs.Reactions.Empty() {
		if err := cs.solveCoupled(net, t, dt); err != nil {
			return ContaminantResult{Time: t + dt, Concentrations: cs.Snapshot()}, err
		}
	} else {
		for k := 0; k < cs.numSpecies; k++ {
			if err := cs.solveSpecies(net, k, t, dt); err != nil {
				return ContaminantResult{Time: t + dt, Concentrations: cs.Snapshot()}, err
			}
		}
	}

	for i, node := range net.Nodes {
		if node.KnownPressure() {
			for k := range cs.Species {
				cs.conc[i][k] = cs.Species[k].OutdoorConc
			}
		}
	}
	return ContaminantResult{Time: t + dt, Concentrations: cs.Snapshot()}, nil
}

// unknownZones maps node index to transport equation index, -1 for
// ambient zones.
func (cs *ContaminantSolver) unknownZones(net *Network) ([]int, int) {
	m := make([]int, cs.numZones)
	n := 0
	for i, node := range net.Nodes {
		if node.KnownPressure() {
			m[i] = -1
		} else {
			m[i] = n
			n++
		}
	}
	return m, n
}

// penetration returns the fraction of species flux that survives
// passage through a link's element: (1 - η) for filters, 1 otherwise.
func penetration(l *Link) float64 {
	if f, ok := l.Element.(*Filter); ok {
		return 1 - f.Efficiency
	}
	return 1
}

// sourceRHS returns the generation rate of a source at t+dt, given the
// zone's pressure and current concentration, with its schedule applied.
func (cs *ContaminantSolver) sourceRHS(src *Source, tNew, zonePressure, zoneConc float64) float64 {
	mult := cs.scheduleValue(src.ScheduleID, tNew)
	switch src.Kind {
	case ExponentialDecay:
		elapsed := tNew - src.StartTime
		if elapsed >= 0 && src.TimeConstant > 0 {
			return src.Multiplier * src.Generation * math.Exp(-elapsed/src.TimeConstant) * mult
		}
		return 0
	case PressureDriven:
		return src.PressureCoeff * math.Abs(zonePressure) * mult
	case CutoffConcentration:
		if zoneConc < src.CutoffConc {
			return src.Generation * mult
		}
		return 0
	default:
		return src.Generation * mult
	}
}

// solveSpecies assembles and solves the implicit-Euler system for one
// species over the non-ambient zones.
func (cs *ContaminantSolver) solveSpecies(net *Network, specIdx int, t, dt float64) error {
	unknownMap, n := cs.unknownZones(net)
	if n == 0 {
		return nil
	}

	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)

	// Time derivative and first-order decay.
	lambda := cs.Species[specIdx].DecayRate
	for i, node := range net.Nodes {
		eq := unknownMap[i]
		if eq < 0 {
			continue
		}
		vi := math.Max(node.Volume, minZoneVolume)
		a.Set(eq, eq, a.At(eq, eq)+vi/dt)
		b.SetVec(eq, b.AtVec(eq)+vi/dt*cs.conc[i][specIdx])
		if lambda > 0 {
			a.Set(eq, eq, a.At(eq, eq)+lambda*vi)
		}
	}

	// Upwind donor-cell advection over the links. The donor zone loses
	// q·C_donor; the acceptor gains it, attenuated by any filter.
	for _, l := range net.Links {
		donor, acceptor := l.From, l.To
		mdot := l.MassFlow
		if mdot < 0 {
			donor, acceptor = acceptor, donor
			mdot = -mdot
		} else if mdot == 0 {
			continue
		}
		q := mdot / net.Nodes[donor].Density
		pen := penetration(l)

		eqD := unknownMap[donor]
		eqA := unknownMap[acceptor]
		if eqD >= 0 {
			a.Set(eqD, eqD, a.At(eqD, eqD)+q)
		}
		if eqA >= 0 {
			if eqD >= 0 {
				a.Set(eqA, eqD, a.At(eqA, eqD)-pen*q)
			} else {
				b.SetVec(eqA, b.AtVec(eqA)+pen*q*cs.conc[donor][specIdx])
			}
		}
	}

	// Source and sink terms.
	for si := range cs.Sources {
		src := &cs.Sources[si]
		if src.SpeciesID != cs.Species[specIdx].ID {
			continue
		}
		zoneIdx, err := net.NodeIndexByID(src.ZoneID)
		if err != nil {
			return err
		}
		eq := unknownMap[zoneIdx]
		if eq < 0 {
			continue
		}
		node := net.Nodes[zoneIdx]
		b.SetVec(eq, b.AtVec(eq)+cs.sourceRHS(src, t+dt, node.Pressure, cs.conc[zoneIdx][specIdx]))
		if src.Removal > 0 {
			vi := math.Max(node.Volume, minZoneVolume)
			a.Set(eq, eq, a.At(eq, eq)+src.Removal*vi)
		}
	}

	x, err := solveQR(a, b)
	if err != nil {
		return fmt.Errorf("species %q transport: %w", cs.Species[specIdx].Name, err)
	}
	for i := range net.Nodes {
		if eq := unknownMap[i]; eq >= 0 {
			cs.conc[i][specIdx] = math.Max(0, x.AtVec(eq))
		}
	}
	return nil
}

// solveCoupled assembles the block system over (zone equation, species)
// with chemical kinetics coupling the species blocks within each zone.
func (cs *ContaminantSolver) solveCoupled(net *Network, t, dt float64) error {
	unknownMap, nz := cs.unknownZones(net)
	if nz == 0 {
		return nil
	}
	ns := cs.numSpecies
	dim := nz * ns
	idx := func(zoneEq, spec int) int { return zoneEq*ns + spec }

	a := mat.NewDense(dim, dim, nil)
	b := mat.NewVecDense(dim, nil)
	rate := cs.Reactions.RateMatrix(ns)

	// Time derivative, decay, and kinetic coupling per zone.
	for i, node := range net.Nodes {
		eq := unknownMap[i]
		if eq < 0 {
			continue
		}
		vi := math.Max(node.Volume, minZoneVolume)
		for k := 0; k < ns; k++ {
			row := idx(eq, k)
			a.Set(row, row, a.At(row, row)+vi/dt)
			b.SetVec(row, b.AtVec(row)+vi/dt*cs.conc[i][k])
			if lambda := cs.Species[k].DecayRate; lambda > 0 {
				a.Set(row, row, a.At(row, row)+lambda*vi)
			}
			// dC_k/dt = Σ_j K[k][j]·C_j, implicit: consumption on the
			// diagonal, production in the block column of species j.
			for j := 0; j < ns; j++ {
				kkj := rate[k][j]
				if math.Abs(kkj) < 1e-30 {
					continue
				}
				if k == j {
					if kkj < 0 {
						a.Set(row, row, a.At(row, row)+math.Abs(kkj)*vi)
					}
				} else {
					col := idx(eq, j)
					a.Set(row, col, a.At(row, col)-kkj*vi)
				}
			}
		}
	}

	// Advection: identical airflow rows across species blocks.
	for _, l := range net.Links {
		donor, acceptor := l.From, l.To
		mdot := l.MassFlow
		if mdot < 0 {
			donor, acceptor = acceptor, donor
			mdot = -mdot
		} else if mdot == 0 {
			continue
		}
		q := mdot / net.Nodes[donor].Density
		pen := penetration(l)
		eqD := unknownMap[donor]
		eqA := unknownMap[acceptor]
		for k := 0; k < ns; k++ {
			if eqD >= 0 {
				row := idx(eqD, k)
				a.Set(row, row, a.At(row, row)+q)
			}
			if eqA >= 0 {
				row := idx(eqA, k)
				if eqD >= 0 {
					col := idx(eqD, k)
					a.Set(row, col, a.At(row, col)-pen*q)
				} else {
					b.SetVec(row, b.AtVec(row)+pen*q*cs.conc[donor][k])
				}
			}
		}
	}

	// Sources.
	for si := range cs.Sources {
		src := &cs.Sources[si]
		spec := -1
		for k := range cs.Species {
			if cs.Species[k].ID == src.SpeciesID {
				spec = k
				break
			}
		}
		if spec < 0 {
			continue
		}
		zoneIdx, err := net.NodeIndexByID(src.ZoneID)
		if err != nil {
			return err
		}
		eq := unknownMap[zoneIdx]
		if eq < 0 {
			continue
		}
		node := net.Nodes[zoneIdx]
		row := idx(eq, spec)
		b.SetVec(row, b.AtVec(row)+cs.sourceRHS(src, t+dt, node.Pressure, cs.conc[zoneIdx][spec]))
		if src.Removal > 0 {
			vi := math.Max(node.Volume, minZoneVolume)
			a.Set(row, row, a.At(row, row)+src.Removal*vi)
		}
	}

	x, err := solveQR(a, b)
	if err != nil {
		return fmt.Errorf("coupled transport: %w", err)
	}
	for i := range net.Nodes {
		if eq := unknownMap[i]; eq >= 0 {
			for k := 0; k < ns; k++ {
				cs.conc[i][k] = math.Max(0, x.AtVec(idx(eq, k)))
			}
		}
	}
	return nil
}

// solveQR solves a·x = b by QR decomposition.
func solveQR(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	var qr mat.QR
	qr.Factorize(a)
	n, _ := a.Dims()
	x := mat.NewVecDense(n, nil)
	if err := qr.SolveVecTo(x, false, b); err != nil {
		if _, ill := err.(mat.Condition); !ill {
			return nil, fmt.Errorf("%w: %v", ErrLinearSolve, err)
		}
	}
	return x, nil
}
