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

// NodeKind identifies the role a node plays in the airflow network.
type NodeKind int

const (
	// Normal is a standard room zone with unknown pressure.
	Normal NodeKind = iota
	// Ambient is the outdoor environment; its pressure is a boundary
	// condition and is never solved for.
	Ambient
	// Phantom is a connection node without volume.
	Phantom
	// CFD marks a zone intended for coupling with an external field
	// solver. It is treated like Normal here.
	CFD
)

func (k NodeKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Ambient:
		return "ambient"
	case Phantom:
		return "phantom"
	case CFD:
		return "cfd"
	}
	return "unknown"
}

// Node is a control volume (zone) in the airflow network.
type Node struct {
	ID   int
	Name string
	Kind NodeKind

	Pressure    float64 // Pa, gauge relative to atmospheric
	Temperature float64 // K
	Elevation   float64 // m, base elevation of the zone
	Volume      float64 // m³
	Density     float64 // kg/m³, from the ideal gas law

	// GasConstant is the specific gas constant used when computing the
	// zone density. It is RAir for pure air; the transient driver
	// adjusts it when non-trace species accumulate in the zone.
	GasConstant float64

	// Wind exposure of an ambient node; nil for interior zones and
	// sheltered boundaries.
	Wind *WindExposure
}

// NewNode returns a node with the reference temperature and a density
// consistent with its (zero gauge) pressure.
func NewNode(id int, name string, kind NodeKind) *Node {
	n := &Node{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Temperature: TRef,
		GasConstant: RAir,
	}
	n.UpdateDensity()
	return n
}

// KnownPressure reports whether the node's pressure is a boundary
// condition rather than an unknown.
func (n *Node) KnownPressure() bool { return n.Kind == Ambient }

// UpdateDensity recomputes the zone density from the ideal gas law
// using the node's current gauge pressure and temperature.
func (n *Node) UpdateDensity() {
	n.UpdateDensityAt(PAtm + n.Pressure)
}

// UpdateDensityAt recomputes the zone density at the given absolute
// pressure.
func (n *Node) UpdateDensityAt(absolutePressure float64) {
	if n.Temperature <= 0 {
		return
	}
	r := n.GasConstant
	if r <= 0 {
		r = RAir
	}
	n.Density = absolutePressure / (r * n.Temperature)
}
