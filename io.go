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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ModelInput is a fully parsed input file: the network plus the
// optional contaminant and transient configuration.
type ModelInput struct {
	Network   *Network
	Species   []Species
	Sources   []Source
	Schedules map[int]*Schedule
	Handlers  []*SimpleAHS

	Transient    TransientConfig
	HasTransient bool
}

// jsonModel mirrors the input file layout.
type jsonModel struct {
	Ambient      *jsonAmbient               `json:"ambient"`
	FlowElements map[string]json.RawMessage `json:"flowElements"`
	Nodes        []jsonNode                 `json:"nodes"`
	Links        []jsonLink                 `json:"links"`
	Species      []jsonSpecies              `json:"species"`
	Sources      []jsonSource               `json:"sources"`
	Schedules    []jsonSchedule             `json:"schedules"`
	AirHandlers  []jsonAHS                  `json:"airHandlers"`
	Transient    *jsonTransient             `json:"transient"`
}

type jsonAmbient struct {
	Temperature   *float64 `json:"temperature"`
	Pressure      *float64 `json:"pressure"`
	WindSpeed     *float64 `json:"windSpeed"`
	WindDirection *float64 `json:"windDirection"`
}

type jsonWind struct {
	WallAzimuth   float64     `json:"wallAzimuth"`
	TerrainFactor float64     `json:"terrainFactor"`
	Cp            float64     `json:"cp"`
	CpProfile     [][]float64 `json:"cpProfile"`
}

type jsonNode struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Temperature *float64  `json:"temperature"`
	Elevation   float64   `json:"elevation"`
	Volume      float64   `json:"volume"`
	Pressure    float64   `json:"pressure"`
	Wind        *jsonWind `json:"wind"`
}

type jsonLink struct {
	ID        int             `json:"id"`
	From      int             `json:"from"`
	To        int             `json:"to"`
	Elevation float64         `json:"elevation"`
	Element   json.RawMessage `json:"element"`
}

type jsonElement struct {
	Type string `json:"type"`

	// PowerLawOrifice / Damper / Filter.
	C           *float64 `json:"C"`
	N           *float64 `json:"n"`
	LeakageArea *float64 `json:"leakageArea"`

	// Fan.
	MaxFlow         float64 `json:"maxFlow"`
	ShutoffPressure float64 `json:"shutoffPressure"`

	// TwoWayFlow.
	Cd     float64 `json:"Cd"`
	Area   float64 `json:"area"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`

	// Duct.
	Length    float64  `json:"length"`
	Diameter  float64  `json:"diameter"`
	Roughness *float64 `json:"roughness"`
	SumK      float64  `json:"sumK"`

	// Damper.
	CMax     float64  `json:"Cmax"`
	Fraction *float64 `json:"fraction"`

	// Filter.
	Efficiency *float64 `json:"efficiency"`
}

type jsonSpecies struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	MolarMass   *float64 `json:"molarMass"`
	DecayRate   float64 `json:"decayRate"`
	OutdoorConc float64 `json:"outdoorConcentration"`
	Trace       *bool   `json:"trace"`
}

type jsonSource struct {
	ZoneID     int     `json:"zoneId"`
	SpeciesID  int     `json:"speciesId"`
	Kind       string  `json:"kind"`
	Generation float64 `json:"generationRate"`
	Removal    float64 `json:"removalRate"`
	ScheduleID *int    `json:"scheduleId"`

	TimeConstant  *float64 `json:"timeConstant"`
	StartTime     float64  `json:"startTime"`
	Multiplier    *float64 `json:"multiplier"`
	PressureCoeff float64  `json:"pressureCoeff"`
	CutoffConc    float64  `json:"cutoffConcentration"`
}

type jsonSchedule struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Points []struct {
		Time  float64 `json:"time"`
		Value float64 `json:"value"`
	} `json:"points"`
}

type jsonAHS struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	SupplyFlow        float64 `json:"supplyFlow"`
	ReturnFlow        float64 `json:"returnFlow"`
	OutdoorAirFlow    float64 `json:"outdoorAirFlow"`
	ExhaustFlow       float64 `json:"exhaustFlow"`
	SupplyTemperature *float64 `json:"supplyTemperature"`
	SupplyZones       []struct {
		ZoneID   int     `json:"zoneId"`
		Fraction float64 `json:"fraction"`
	} `json:"supplyZones"`
	ReturnZones []struct {
		ZoneID   int     `json:"zoneId"`
		Fraction float64 `json:"fraction"`
	} `json:"returnZones"`
	OutdoorAirScheduleID *int `json:"outdoorAirScheduleId"`
	SupplyFlowScheduleID *int `json:"supplyFlowScheduleId"`
}

type jsonTransient struct {
	StartTime         float64  `json:"startTime"`
	EndTime           *float64 `json:"endTime"`
	TimeStep          *float64 `json:"timeStep"`
	OutputInterval    *float64 `json:"outputInterval"`
	AirflowMethod     string   `json:"airflowMethod"`
	AdaptiveTransport bool     `json:"adaptiveTransport"`
}

// ReadModelFile parses a full model from a JSON file.
func ReadModelFile(path string) (*ModelInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()
	return ReadModel(f)
}

// ReadModel parses a full model from a JSON stream.
func ReadModel(r io.Reader) (*ModelInput, error) {
	var jm jsonModel
	dec := json.NewDecoder(r)
	if err := dec.Decode(&jm); err != nil {
		return nil, fmt.Errorf("parsing input JSON: %w", err)
	}

	model := &ModelInput{
		Network:   NewNetwork(),
		Schedules: make(map[int]*Schedule),
	}
	net := model.Network

	if amb := jm.Ambient; amb != nil {
		if amb.Temperature != nil {
			net.AmbientTemperature = *amb.Temperature
		}
		if amb.Pressure != nil {
			net.AmbientPressure = *amb.Pressure
		}
		if amb.WindSpeed != nil {
			net.WindSpeed = *amb.WindSpeed
		}
		if amb.WindDirection != nil {
			net.WindDirection = *amb.WindDirection
		}
	}

	for _, jn := range jm.Nodes {
		kind := Normal
		switch jn.Type {
		case "ambient":
			kind = Ambient
		case "phantom":
			kind = Phantom
		case "cfd":
			kind = CFD
		}
		name := jn.Name
		if name == "" {
			name = fmt.Sprintf("Node_%d", jn.ID)
		}
		node := NewNode(jn.ID, name, kind)
		if jn.Temperature != nil {
			node.Temperature = *jn.Temperature
		} else if kind == Ambient {
			node.Temperature = net.AmbientTemperature
		}
		node.Elevation = jn.Elevation
		node.Volume = jn.Volume
		node.Pressure = jn.Pressure
		if jn.Wind != nil {
			w := &WindExposure{
				WallAzimuth:   jn.Wind.WallAzimuth,
				TerrainFactor: jn.Wind.TerrainFactor,
				Cp:            jn.Wind.Cp,
			}
			for _, p := range jn.Wind.CpProfile {
				if len(p) == 2 {
					w.Profile = append(w.Profile, CpPoint{Angle: p[0], Cp: p[1]})
				}
			}
			node.Wind = w
		}
		node.UpdateDensity()
		net.AddNode(node)
	}

	for _, jl := range jm.Links {
		fromIdx, err := net.NodeIndexByID(jl.From)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", jl.ID, err)
		}
		toIdx, err := net.NodeIndexByID(jl.To)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", jl.ID, err)
		}
		elem, err := parseElement(jl.Element, jm.FlowElements)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", jl.ID, err)
		}
		if err := net.AddLink(NewLink(jl.ID, fromIdx, toIdx, jl.Elevation, elem)); err != nil {
			return nil, err
		}
	}

	for _, js := range jm.Species {
		sp := NewSpecies(js.ID, js.Name)
		if sp.Name == "" {
			sp.Name = fmt.Sprintf("Species_%d", js.ID)
		}
		if js.MolarMass != nil {
			sp.MolarMass = *js.MolarMass
		}
		sp.DecayRate = js.DecayRate
		sp.OutdoorConc = js.OutdoorConc
		if js.Trace != nil {
			sp.Trace = *js.Trace
		}
		model.Species = append(model.Species, sp)
	}

	for _, jsrc := range jm.Sources {
		src := NewConstantSource(jsrc.ZoneID, jsrc.SpeciesID, jsrc.Generation)
		switch jsrc.Kind {
		case "", "constant":
		case "exponentialDecay":
			src.Kind = ExponentialDecay
		case "pressureDriven":
			src.Kind = PressureDriven
		case "cutoffConcentration":
			src.Kind = CutoffConcentration
		default:
			return nil, fmt.Errorf("source kind %q: %w", jsrc.Kind, ErrUnknownReference)
		}
		src.Removal = jsrc.Removal
		if jsrc.ScheduleID != nil {
			src.ScheduleID = *jsrc.ScheduleID
		}
		if jsrc.TimeConstant != nil {
			src.TimeConstant = *jsrc.TimeConstant
		}
		src.StartTime = jsrc.StartTime
		if jsrc.Multiplier != nil {
			src.Multiplier = *jsrc.Multiplier
		}
		src.PressureCoeff = jsrc.PressureCoeff
		src.CutoffConc = jsrc.CutoffConc
		model.Sources = append(model.Sources, src)
	}

	for _, jsch := range jm.Schedules {
		name := jsch.Name
		if name == "" {
			name = fmt.Sprintf("Schedule_%d", jsch.ID)
		}
		sched := NewSchedule(jsch.ID, name)
		for _, p := range jsch.Points {
			if err := sched.AddPoint(p.Time, p.Value); err != nil {
				return nil, err
			}
		}
		model.Schedules[jsch.ID] = sched
	}

	for _, ja := range jm.AirHandlers {
		ahs := NewSimpleAHS(ja.ID, ja.Name, ja.SupplyFlow, ja.ReturnFlow, ja.OutdoorAirFlow, ja.ExhaustFlow)
		if ja.SupplyTemperature != nil {
			ahs.SupplyTemperature = *ja.SupplyTemperature
		}
		for _, z := range ja.SupplyZones {
			ahs.SupplyZones = append(ahs.SupplyZones, ZoneConnection{ZoneID: z.ZoneID, Fraction: z.Fraction})
		}
		for _, z := range ja.ReturnZones {
			ahs.ReturnZones = append(ahs.ReturnZones, ZoneConnection{ZoneID: z.ZoneID, Fraction: z.Fraction})
		}
		if ja.OutdoorAirScheduleID != nil {
			ahs.OutdoorAirScheduleID = *ja.OutdoorAirScheduleID
		}
		if ja.SupplyFlowScheduleID != nil {
			ahs.SupplyFlowScheduleID = *ja.SupplyFlowScheduleID
		}
		if !ahs.Balanced(0.001) {
			logrus.Warnf("air handler %q is unbalanced: supply+exhaust=%g, return+outdoor=%g",
				ahs.Name, ahs.SupplyFlow+ahs.ExhaustFlow, ahs.ReturnFlow+ahs.OutdoorAirFlow)
		}
		model.Handlers = append(model.Handlers, ahs)
	}

	model.Transient = TransientConfig{
		EndTime:        3600,
		TimeStep:       60,
		OutputInterval: 60,
	}
	if jt := jm.Transient; jt != nil {
		model.HasTransient = true
		model.Transient.StartTime = jt.StartTime
		if jt.EndTime != nil {
			model.Transient.EndTime = *jt.EndTime
		}
		if jt.TimeStep != nil {
			model.Transient.TimeStep = *jt.TimeStep
		}
		if jt.OutputInterval != nil {
			model.Transient.OutputInterval = *jt.OutputInterval
		}
		if jt.AirflowMethod == "subRelaxation" {
			model.Transient.AirflowMethod = SubRelaxation
		}
		model.Transient.AdaptiveTransport = jt.AdaptiveTransport
	}

	return model, nil
}

// parseElement builds a flow element from an inline definition or a
// named template reference.
func parseElement(raw json.RawMessage, templates map[string]json.RawMessage) (FlowElement, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("link has no element: %w", ErrUnknownReference)
	}
	// A string is a reference into the flowElements templates.
	var ref string
	if err := json.Unmarshal(raw, &ref); err == nil {
		tpl, ok := templates[ref]
		if !ok {
			return nil, fmt.Errorf("flow element template %q: %w", ref, ErrUnknownReference)
		}
		raw = tpl
	}

	var je jsonElement
	if err := json.Unmarshal(raw, &je); err != nil {
		return nil, fmt.Errorf("parsing flow element: %w", err)
	}

	floatOr := func(p *float64, def float64) float64 {
		if p != nil {
			return *p
		}
		return def
	}

	switch je.Type {
	case "PowerLawOrifice":
		n := floatOr(je.N, 0.65)
		if je.LeakageArea != nil {
			return PowerLawFromLeakageArea(*je.LeakageArea, n, 4.0)
		}
		return NewPowerLawOrifice(floatOr(je.C, 0), n)
	case "Fan":
		return NewFan(je.MaxFlow, je.ShutoffPressure)
	case "TwoWayFlow":
		if je.Height > 0 && je.Width > 0 {
			return NewDoorway(je.Cd, je.Height, je.Width)
		}
		return NewTwoWayFlow(je.Cd, je.Area)
	case "Duct":
		return NewDuct(je.Length, je.Diameter, floatOr(je.Roughness, 0.0001), je.SumK)
	case "Damper":
		return NewDamper(je.CMax, floatOr(je.N, 0.65), floatOr(je.Fraction, 1.0))
	case "Filter":
		return NewFilter(floatOr(je.C, 0), floatOr(je.N, 0.65), floatOr(je.Efficiency, 0.9))
	}
	return nil, fmt.Errorf("flow element type %q: %w", je.Type, ErrUnknownReference)
}

// ── Output ───────────────────────────────────────────────────────────

type jsonSteadyOutput struct {
	Solver jsonSolverInfo   `json:"solver"`
	Nodes  []jsonNodeResult `json:"nodes"`
	Links  []jsonLinkResult `json:"links"`
}

type jsonSolverInfo struct {
	Converged   bool    `json:"converged"`
	Iterations  int     `json:"iterations"`
	MaxResidual float64 `json:"maxResidual"`
}

type jsonNodeResult struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Pressure    float64 `json:"pressure"`
	Density     float64 `json:"density"`
	Temperature float64 `json:"temperature"`
	Elevation   float64 `json:"elevation"`
}

type jsonLinkResult struct {
	ID         int     `json:"id"`
	From       int     `json:"from"`
	To         int     `json:"to"`
	MassFlow   float64 `json:"massFlow"`
	VolumeFlow float64 `json:"volumeFlow_m3s"`
}

// WriteSteadyResult serializes a steady-state solution.
func WriteSteadyResult(w io.Writer, net *Network, result SolverResult) error {
	out := jsonSteadyOutput{
		Solver: jsonSolverInfo{
			Converged:   result.Converged,
			Iterations:  result.Iterations,
			MaxResidual: result.MaxResidual,
		},
	}
	for i, n := range net.Nodes {
		out.Nodes = append(out.Nodes, jsonNodeResult{
			ID: n.ID, Name: n.Name,
			Pressure: result.Pressures[i], Density: n.Density,
			Temperature: n.Temperature, Elevation: n.Elevation,
		})
	}
	for i, l := range net.Links {
		from := net.Nodes[l.From]
		vol := 0.0
		if from.Density > 0 {
			vol = result.MassFlows[i] / from.Density
		}
		out.Links = append(out.Links, jsonLinkResult{
			ID: l.ID, From: from.ID, To: net.Nodes[l.To].ID,
			MassFlow: result.MassFlows[i], VolumeFlow: vol,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteSteadyResultFile serializes a steady-state solution to a file.
func WriteSteadyResultFile(path string, net *Network, result SolverResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer f.Close()
	return WriteSteadyResult(f, net, result)
}

type jsonTransientOutput struct {
	Completed  bool               `json:"completed"`
	TotalSteps int                `json:"totalSteps"`
	Species    []jsonSpeciesInfo  `json:"species"`
	Nodes      []jsonNodeInfo     `json:"nodes"`
	TimeSeries []jsonStepRecord   `json:"timeSeries"`
}

type jsonSpeciesInfo struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	MolarMass float64 `json:"molarMass"`
}

type jsonNodeInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonStepRecord struct {
	Time    float64 `json:"time"`
	Airflow struct {
		Converged  bool      `json:"converged"`
		Iterations int       `json:"iterations"`
		Pressures  []float64 `json:"pressures"`
		MassFlows  []float64 `json:"massFlows"`
	} `json:"airflow"`
	Concentrations [][]float64 `json:"concentrations,omitempty"`
}

// WriteTransientResult serializes a transient run. Concentrations are
// written per node, per species.
func WriteTransientResult(w io.Writer, net *Network, result TransientResult, species []Species) error {
	out := jsonTransientOutput{
		Completed:  result.Completed,
		TotalSteps: len(result.History),
	}
	for _, sp := range species {
		out.Species = append(out.Species, jsonSpeciesInfo{ID: sp.ID, Name: sp.Name, MolarMass: sp.MolarMass})
	}
	for _, n := range net.Nodes {
		out.Nodes = append(out.Nodes, jsonNodeInfo{ID: n.ID, Name: n.Name, Type: n.Kind.String()})
	}
	for _, step := range result.History {
		var rec jsonStepRecord
		rec.Time = step.Time
		rec.Airflow.Converged = step.Airflow.Converged
		rec.Airflow.Iterations = step.Airflow.Iterations
		rec.Airflow.Pressures = step.Airflow.Pressures
		rec.Airflow.MassFlows = step.Airflow.MassFlows
		rec.Concentrations = step.Concentrations
		out.TimeSeries = append(out.TimeSeries, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteTransientResultFile serializes a transient run to a file.
func WriteTransientResultFile(path string, net *Network, result TransientResult, species []Species) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer f.Close()
	return WriteTransientResult(f, net, result, species)
}
