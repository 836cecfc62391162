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

// Link is a flow path between two nodes. From and To are indices into
// the network's node slice; positive mass flow runs from From to To.
// Each link exclusively owns its flow element.
type Link struct {
	ID        int
	From      int
	To        int
	Elevation float64 // m, Z_k, centerline elevation of the path

	Element FlowElement

	// Last computed state, written by the airflow solver.
	MassFlow   float64 // kg/s
	Derivative float64 // d(ṁ)/d(ΔP)
}

// NewLink returns a link between the two node indices with the given
// centerline elevation. The element is owned by the link from here on.
func NewLink(id, from, to int, elevation float64, element FlowElement) *Link {
	return &Link{ID: id, From: from, To: to, Elevation: elevation, Element: element}
}

// Copy returns a deep copy of the link, cloning the owned flow element.
func (l *Link) Copy() *Link {
	c := *l
	if l.Element != nil {
		c.Element = l.Element.Clone()
	}
	return &c
}

// ReplaceElement swaps the owned flow element. The actuator path uses
// this for its clone-mutate-swap discipline.
func (l *Link) ReplaceElement(e FlowElement) { l.Element = e }
