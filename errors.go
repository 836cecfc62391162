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

import "errors"

// Sentinel errors for the failure categories surfaced by this package.
// Callers classify failures with errors.Is; the concrete messages carry
// the offending parameter or identifier.
var (
	// ErrInvalidParameter indicates a flow element, schedule, or
	// integrator was constructed with an out-of-range parameter.
	ErrInvalidParameter = errors.New("airnet: invalid parameter")

	// ErrUnknownReference indicates an identifier (node id, link endpoint,
	// flow element template name or type, source kind) that does not
	// resolve.
	ErrUnknownReference = errors.New("airnet: unknown reference")

	// ErrLinearSolve indicates that a Jacobian factorization or linear
	// solve did not succeed.
	ErrLinearSolve = errors.New("airnet: linear solve failed")

	// ErrMathDomain indicates an argument outside a logic node's domain,
	// such as division by zero or the logarithm of a non-positive number.
	ErrMathDomain = errors.New("airnet: math domain error")
)
