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

// Package airnet simulates multi-zone building airflow and contaminant
// transport. A building is modeled as a network of well-mixed zones
// connected by flow paths; at each instant the package solves for the
// pressure in every zone and the mass flow through every path, and then
// for the concentration of each chemical species given those flows,
// species sources, decay, and optional chemical kinetics. A transient
// driver advances the coupled solution in time while updating sensors,
// controllers, actuators, and occupant exposure.
package airnet

// Physical constants.
const (
	Gravity = 9.80665 // m/s², standard gravitational acceleration
	RAir    = 287.055 // J/(kg·K), specific gas constant for dry air
	PAtm    = 101325. // Pa, standard atmospheric pressure
	TRef    = 293.15  // K, reference temperature (20°C)
	MAir    = 0.029   // kg/mol, molar mass of dry air
	MuAir   = 1.81e-5 // Pa·s, dynamic viscosity of air near 20°C
)

// Airflow solver parameters.
const (
	ConvergenceTol = 1.0e-5 // kg/s, max residual for convergence
	MaxIterations  = 100    // max Newton iterations
	DPMin          = 0.001  // Pa, threshold below which elements linearize
	RelaxFactorSUR = 0.75   // sub-relaxation factor

	// densityRef is the reference density used when pre-computing the
	// linearization slope of a flow element at DPMin.
	densityRef = 1.2 // kg/m³
)

// Trust region parameters.
const (
	TRInitialRadius = 1000.0 // Pa
	TRMinRadius     = 0.01   // Pa
	TRMaxRadius     = 1.0e6  // Pa
)
