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

	"github.com/Knetic/govaluate"
)

// A LogicNode computes one scalar from a list of scalar inputs. Nodes
// treat a value as logically true when it is nonzero.
type LogicNode interface {
	Evaluate(inputs []float64) (float64, error)
	TypeName() string
}

func needAtLeast(name string, inputs []float64, n int) error {
	if len(inputs) < n {
		return fmt.Errorf("%s node needs at least %d input(s), got %d: %w", name, n, len(inputs), ErrInvalidParameter)
	}
	return nil
}

func needExactly(name string, inputs []float64, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("%s node needs exactly %d input(s), got %d: %w", name, n, len(inputs), ErrInvalidParameter)
	}
	return nil
}

// AndNode returns 1 when every input is nonzero.
type AndNode struct{}

func (AndNode) TypeName() string { return "And" }
func (AndNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("And", inputs, 1); err != nil {
		return 0, err
	}
	for _, v := range inputs {
		if v == 0 {
			return 0, nil
		}
	}
	return 1, nil
}

// OrNode returns 1 when any input is nonzero.
type OrNode struct{}

func (OrNode) TypeName() string { return "Or" }
func (OrNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("Or", inputs, 1); err != nil {
		return 0, err
	}
	for _, v := range inputs {
		if v != 0 {
			return 1, nil
		}
	}
	return 0, nil
}

// XorNode returns the parity of the nonzero inputs.
type XorNode struct{}

func (XorNode) TypeName() string { return "Xor" }
func (XorNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("Xor", inputs, 1); err != nil {
		return 0, err
	}
	count := 0
	for _, v := range inputs {
		if v != 0 {
			count++
		}
	}
	return float64(count % 2), nil
}

// NotNode returns 1 for a zero input and 0 otherwise.
type NotNode struct{}

func (NotNode) TypeName() string { return "Not" }
func (NotNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Not", inputs, 1); err != nil {
		return 0, err
	}
	if inputs[0] == 0 {
		return 1, nil
	}
	return 0, nil
}

// SumNode adds its inputs.
type SumNode struct{}

func (SumNode) TypeName() string { return "Sum" }
func (SumNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("Sum", inputs, 1); err != nil {
		return 0, err
	}
	s := 0.0
	for _, v := range inputs {
		s += v
	}
	return s, nil
}

// AverageNode returns the arithmetic mean of its inputs.
type AverageNode struct{}

func (AverageNode) TypeName() string { return "Average" }
func (AverageNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("Average", inputs, 1); err != nil {
		return 0, err
	}
	s := 0.0
	for _, v := range inputs {
		s += v
	}
	return s / float64(len(inputs)), nil
}

// MinNode returns the smallest input.
type MinNode struct{}

func (MinNode) TypeName() string { return "Min" }
func (MinNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("Min", inputs, 1); err != nil {
		return 0, err
	}
	m := inputs[0]
	for _, v := range inputs[1:] {
		m = math.Min(m, v)
	}
	return m, nil
}

// MaxNode returns the largest input.
type MaxNode struct{}

func (MaxNode) TypeName() string { return "Max" }
func (MaxNode) Evaluate(inputs []float64) (float64, error) {
	if err := needAtLeast("Max", inputs, 1); err != nil {
		return 0, err
	}
	m := inputs[0]
	for _, v := range inputs[1:] {
		m = math.Max(m, v)
	}
	return m, nil
}

// ExpNode returns e raised to its single input.
type ExpNode struct{}

func (ExpNode) TypeName() string { return "Exp" }
func (ExpNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Exp", inputs, 1); err != nil {
		return 0, err
	}
	return math.Exp(inputs[0]), nil
}

// LnNode returns the natural logarithm of its single input.
type LnNode struct{}

func (LnNode) TypeName() string { return "Ln" }
func (LnNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Ln", inputs, 1); err != nil {
		return 0, err
	}
	if inputs[0] <= 0 {
		return 0, fmt.Errorf("ln of non-positive value %g: %w", inputs[0], ErrMathDomain)
	}
	return math.Log(inputs[0]), nil
}

// AbsNode returns the absolute value of its single input.
type AbsNode struct{}

func (AbsNode) TypeName() string { return "Abs" }
func (AbsNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Abs", inputs, 1); err != nil {
		return 0, err
	}
	return math.Abs(inputs[0]), nil
}

// MultiplyNode multiplies its two inputs.
type MultiplyNode struct{}

func (MultiplyNode) TypeName() string { return "Multiply" }
func (MultiplyNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Multiply", inputs, 2); err != nil {
		return 0, err
	}
	return inputs[0] * inputs[1], nil
}

// DivideNode divides its first input by its second.
type DivideNode struct{}

func (DivideNode) TypeName() string { return "Divide" }
func (DivideNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Divide", inputs, 2); err != nil {
		return 0, err
	}
	if inputs[1] == 0 {
		return 0, fmt.Errorf("division by zero: %w", ErrMathDomain)
	}
	return inputs[0] / inputs[1], nil
}

// IntegratorNode accumulates its single input over a configurable time
// step.
type IntegratorNode struct {
	TimeStep float64
	sum      float64
}

// NewIntegratorNode returns an integrator with the given time step.
func NewIntegratorNode(timeStep float64) *IntegratorNode {
	return &IntegratorNode{TimeStep: timeStep}
}

func (n *IntegratorNode) TypeName() string { return "Integrator" }

// Evaluate adds input·Δt to the running sum and returns it.
func (n *IntegratorNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("Integrator", inputs, 1); err != nil {
		return 0, err
	}
	n.sum += inputs[0] * n.TimeStep
	return n.sum, nil
}

// Reset clears the accumulated value.
func (n *IntegratorNode) Reset() { n.sum = 0 }

// MovingAverageNode maintains a FIFO window over the last N samples of
// its single input.
type MovingAverageNode struct {
	window []float64
	size   int
}

// NewMovingAverageNode returns a moving average over windowSize
// samples.
func NewMovingAverageNode(windowSize int) (*MovingAverageNode, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("moving average window %d must be positive: %w", windowSize, ErrInvalidParameter)
	}
	return &MovingAverageNode{size: windowSize}, nil
}

func (n *MovingAverageNode) TypeName() string { return "MovingAverage" }

// Evaluate pushes the sample into the window and returns the current
// mean.
func (n *MovingAverageNode) Evaluate(inputs []float64) (float64, error) {
	if err := needExactly("MovingAverage", inputs, 1); err != nil {
		return 0, err
	}
	n.window = append(n.window, inputs[0])
	if len(n.window) > n.size {
		n.window = n.window[1:]
	}
	s := 0.0
	for _, v := range n.window {
		s += v
	}
	return s / float64(len(n.window)), nil
}

// ExpressionNode evaluates an arbitrary arithmetic expression over its
// inputs, bound to the variables x0, x1, … in order.
type ExpressionNode struct {
	expr *govaluate.EvaluableExpression
	text string
}

// NewExpressionNode compiles the expression text.
func NewExpressionNode(text string) (*ExpressionNode, error) {
	expr, err := govaluate.NewEvaluableExpression(text)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %v: %w", text, err, ErrInvalidParameter)
	}
	return &ExpressionNode{expr: expr, text: text}, nil
}

func (n *ExpressionNode) TypeName() string { return "Expression" }

// Evaluate binds the inputs to x0..xN and evaluates the expression.
func (n *ExpressionNode) Evaluate(inputs []float64) (float64, error) {
	params := make(map[string]interface{}, len(inputs))
	for i, v := range inputs {
		params[fmt.Sprintf("x%d", i)] = v
	}
	out, err := n.expr.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("expression %q: %v: %w", n.text, err, ErrMathDomain)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q did not evaluate to a number: %w", n.text, ErrMathDomain)
	}
	return v, nil
}
