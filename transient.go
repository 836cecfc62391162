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

	"github.com/sirupsen/logrus"
)

// TransientConfig drives the time-stepping loop.
type TransientConfig struct {
	StartTime      float64 // s
	EndTime        float64 // s
	TimeStep       float64 // s
	OutputInterval float64 // s
	AirflowMethod  SolverMethod

	// AdaptiveTransport routes the contaminant advance through the
	// adaptive integrator instead of a single implicit-Euler step over
	// the outer time step. It applies only when no reaction network is
	// registered.
	AdaptiveTransport bool
}

// TimeStepRecord is one output snapshot of a transient run.
type TimeStepRecord struct {
	Time           float64
	Airflow        SolverResult
	Concentrations [][]float64 // [zone][species]; nil when no species
}

// TransientResult is the outcome of a transient simulation. Completed
// is false when the run was cancelled through the progress callback.
type TransientResult struct {
	Completed  bool
	History    []TimeStepRecord
	ControlLog []ControlSnapshot
}

// ProgressFunc is called once per time step with the current and final
// simulation times; returning false cancels the run.
type ProgressFunc func(t, end float64) bool

// TransientSimulation sequences the coupled solution through time:
// controls, then airflow, then contaminant transport, then density
// feedback, then occupant exposure and output recording. It borrows
// the network and owns the control entities, species list, schedules,
// and occupants.
type TransientSimulation struct {
	Config    TransientConfig
	Species   []Species
	Sources   []Source
	Schedules map[int]*Schedule
	Reactions *ReactionNetwork

	Sensors     []*Sensor
	Controllers []*Controller
	Actuators   []*Actuator
	Occupants   []*Occupant

	Progress ProgressFunc
}

// Run executes the transient simulation on the network.
func (sim *TransientSimulation) Run(net *Network) (TransientResult, error) {
	var result TransientResult

	airflow := NewSolver(sim.Config.AirflowMethod)
	hasSpecies := len(sim.Species) > 0

	cs := NewContaminantSolver(sim.Species, sim.Sources, sim.Schedules)
	cs.Reactions = sim.Reactions
	if hasSpecies {
		cs.Initialize(net)
	}

	var integ *AdaptiveIntegrator
	if sim.Config.AdaptiveTransport && hasSpecies && sim.Reactions.Empty() {
		n := net.UnknownCount() * len(sim.Species)
		if n > 0 {
			var err error
			integ, err = NewAdaptiveIntegrator(n, DefaultIntegratorConfig())
			if err != nil {
				return result, err
			}
		}
	}

	t := sim.Config.StartTime
	nextOutput := sim.Config.StartTime

	// Initial record at t = startTime.
	airResult := airflow.Solve(net)
	rec := TimeStepRecord{Time: t, Airflow: airResult}
	if hasSpecies {
		rec.Concentrations = cs.Snapshot()
	}
	result.History = append(result.History, rec)
	nextOutput += sim.Config.OutputInterval

	for t < sim.Config.EndTime-1e-10 {
		// Shorten the final step so the run ends exactly at EndTime.
		currentDt := math.Min(sim.Config.TimeStep, sim.Config.EndTime-t)

		// 1. Control loop: read sensors, advance controllers, write
		// actuators into the link flow elements.
		if len(sim.Controllers) > 0 {
			sim.updateControls(net, cs)
			result.ControlLog = append(result.ControlLog, sim.captureControls(t))
		}

		// 2. Quasi-steady airflow at this time step.
		airResult = airflow.Solve(net)
		if !airResult.Converged {
			logrus.Debugf("transient: airflow did not converge at t=%g (residual %g)", t, airResult.MaxResidual)
		}

		// 3. Contaminant transport over the just-solved flows.
		contConc := [][]float64(nil)
		if hasSpecies {
			sources := sim.withOccupantSources(net, cs)
			var err error
			if integ != nil {
				err = sim.stepAdaptiveTransport(cs, net, integ, t, currentDt)
				contConc = cs.Snapshot()
			} else {
				var cr ContaminantResult
				cr, err = cs.Step(net, t, currentDt)
				contConc = cr.Concentrations
			}
			cs.Sources = sources
			if err != nil {
				return result, err
			}

			// 3b. Non-trace species change the mixture density; recompute
			// zone gas constants and resolve the airflow.
			if sim.hasNonTraceSpecies() {
				sim.applyMixtureDensity(net, cs)
				if second := airflow.Solve(net); second.Converged {
					airResult = second
					contConc = cs.Snapshot()
				}
			}
		}

		t += currentDt

		// 4. Occupant exposure in each occupant's (possibly scheduled)
		// current zone.
		if hasSpecies && len(sim.Occupants) > 0 {
			sim.updateOccupants(cs, t, currentDt)
		}

		// 5. Output snapshot.
		if t >= nextOutput-1e-10 || t >= sim.Config.EndTime-1e-10 {
			result.History = append(result.History, TimeStepRecord{
				Time: t, Airflow: airResult, Concentrations: contConc,
			})
			nextOutput += sim.Config.OutputInterval
		}

		// 6. Cooperative cancellation.
		if sim.Progress != nil && !sim.Progress(t, sim.Config.EndTime) {
			return result, nil
		}
	}

	result.Completed = true
	return result, nil
}

// updateControls runs one read-compute-write cycle of the control
// system.
func (sim *TransientSimulation) updateControls(net *Network, cs *ContaminantSolver) {
	for _, s := range sim.Sensors {
		s.Read(net, cs.Concentrations())
	}
	for _, c := range sim.Controllers {
		for _, s := range sim.Sensors {
			if s.ID == c.SensorID {
				c.Update(s.LastReading)
				break
			}
		}
	}
	for _, a := range sim.Actuators {
		for _, c := range sim.Controllers {
			if c.ActuatorID == a.ID {
				a.Apply(net, c.Output)
				break
			}
		}
	}
}

func (sim *TransientSimulation) captureControls(t float64) ControlSnapshot {
	snap := ControlSnapshot{Time: t}
	for _, s := range sim.Sensors {
		snap.SensorValues = append(snap.SensorValues, s.LastReading)
	}
	for _, c := range sim.Controllers {
		snap.ControllerOutputs = append(snap.ControllerOutputs, c.Output)
		snap.ControllerErrors = append(snap.ControllerErrors, c.PrevError())
	}
	for _, a := range sim.Actuators {
		snap.ActuatorValues = append(snap.ActuatorValues, a.Value)
	}
	return snap
}

// withOccupantSources temporarily extends the solver's source list with
// the emissions of occupants that act as mobile sources, returning the
// original list for restoration after the step.
func (sim *TransientSimulation) withOccupantSources(net *Network, cs *ContaminantSolver) []Source {
	original := cs.Sources
	var extra []Source
	for _, o := range sim.Occupants {
		if o.EmissionRate <= 0 || o.EmissionSpecies < 0 || o.EmissionSpecies >= len(sim.Species) {
			continue
		}
		if o.ZoneIndex < 0 || o.ZoneIndex >= len(net.Nodes) {
			continue
		}
		extra = append(extra, NewConstantSource(
			net.Nodes[o.ZoneIndex].ID, sim.Species[o.EmissionSpecies].ID, o.EmissionRate))
	}
	if len(extra) > 0 {
		cs.Sources = append(append([]Source(nil), original...), extra...)
	}
	return original
}

func (sim *TransientSimulation) hasNonTraceSpecies() bool {
	for _, sp := range sim.Species {
		if !sp.Trace {
			return true
		}
	}
	return false
}

// applyMixtureDensity recomputes each interior zone's specific gas
// constant from the non-trace species it holds,
// R_mix = R_air·(1 + Σ_k w_k·(M_air/M_k − 1)) with w_k = C_k/ρ, and
// refreshes the zone density.
func (sim *TransientSimulation) applyMixtureDensity(net *Network, cs *ContaminantSolver) {
	conc := cs.Concentrations()
	for i, node := range net.Nodes {
		if node.KnownPressure() || i >= len(conc) {
			continue
		}
		rho := node.Density
		if rho <= 0 {
			rho = densityRef
		}
		sum := 0.0
		for k, sp := range sim.Species {
			if sp.Trace || k >= len(conc[i]) || sp.MolarMass <= 0 {
				continue
			}
			w := conc[i][k] / rho
			sum += w * (MAir/sp.MolarMass - 1)
		}
		node.GasConstant = RAir * (1 + sum)
		node.UpdateDensity()
	}
}

// updateOccupants moves schedule-driven occupants and accumulates
// exposure from their current zone.
func (sim *TransientSimulation) updateOccupants(cs *ContaminantSolver, t, dt float64) {
	conc := cs.Concentrations()
	for _, o := range sim.Occupants {
		if len(o.Exposure) != len(sim.Species) {
			o.InitExposure(len(sim.Species))
		}
		if o.ScheduleID >= 0 && sim.Schedules != nil {
			if sched, ok := sim.Schedules[o.ScheduleID]; ok {
				zone := int(math.Round(sched.Value(t)))
				// Schedule values outside the zone array leave the
				// occupant in place.
				if zone >= 0 && zone < len(conc) {
					o.ZoneIndex = zone
				}
			}
		}
		if o.ZoneIndex >= 0 && o.ZoneIndex < len(conc) {
			o.UpdateExposure(conc[o.ZoneIndex], t, dt)
		}
	}
}

// stepAdaptiveTransport advances the concentrations with the adaptive
// integrator, treating advection, decay and sources as the stiff RHS.
// Ambient donors hold their outdoor background during the step.
func (sim *TransientSimulation) stepAdaptiveTransport(cs *ContaminantSolver, net *Network, integ *AdaptiveIntegrator, t, dt float64) error {
	unknownMap, nz := cs.unknownZones(net)
	if nz == 0 {
		return nil
	}
	ns := len(sim.Species)
	idx := func(zoneEq, spec int) int { return zoneEq*ns + spec }

	y := make([]float64, nz*ns)
	for i := range net.Nodes {
		if eq := unknownMap[i]; eq >= 0 {
			for k := 0; k < ns; k++ {
				y[idx(eq, k)] = cs.conc[i][k]
			}
		}
	}

	rhs := func(tt float64, yy, dydt []float64) {
		for i := range dydt {
			dydt[i] = 0
		}
		// Advection and filter attenuation.
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
				var cDonor float64
				if eqD >= 0 {
					cDonor = yy[idx(eqD, k)]
				} else {
					cDonor = cs.Species[k].OutdoorConc
				}
				if eqD >= 0 {
					vd := math.Max(net.Nodes[donor].Volume, minZoneVolume)
					dydt[idx(eqD, k)] -= q * cDonor / vd
				}
				if eqA >= 0 {
					va := math.Max(net.Nodes[acceptor].Volume, minZoneVolume)
					dydt[idx(eqA, k)] += pen * q * cDonor / va
				}
			}
		}
		// Decay, sources and removal.
		for i, node := range net.Nodes {
			eq := unknownMap[i]
			if eq < 0 {
				continue
			}
			vi := math.Max(node.Volume, minZoneVolume)
			for k := 0; k < ns; k++ {
				row := idx(eq, k)
				if lambda := cs.Species[k].DecayRate; lambda > 0 {
					dydt[row] -= lambda * yy[row]
				}
			}
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
				if err != nil || zoneIdx != i {
					continue
				}
				row := idx(eq, spec)
				dydt[row] += cs.sourceRHS(src, tt, node.Pressure, yy[row]) / vi
				if src.Removal > 0 {
					dydt[row] -= src.Removal * yy[row]
				}
			}
		}
	}

	integ.Step(t, dt, y, rhs)

	for i, node := range net.Nodes {
		if eq := unknownMap[i]; eq >= 0 {
			for k := 0; k < ns; k++ {
				cs.conc[i][k] = math.Max(0, y[idx(eq, k)])
			}
		} else if node.KnownPressure() {
			for k := 0; k < ns; k++ {
				cs.conc[i][k] = cs.Species[k].OutdoorConc
			}
		}
	}
	return nil
}
