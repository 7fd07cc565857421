// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cadence decides, once per output tick, whether the tick presents a
// freshly simulated frame, an extrapolated frame or neither.
//
// Two accumulators run against the simulated and extrapolated periods. A
// tick crossing the simulated period is Simulated, even when it crosses the
// extrapolated period too; a tick crossing only the extrapolated period is
// Extrapolated; every other tick is Regular.
//
// At most one period is subtracted from each accumulator per tick. When the
// host delivers ticks slower than a target period the excess carries over
// and later ticks catch up; frames are never skipped.
package cadence

import (
	"errors"
	"fmt"
)

// Classification is the per-tick verdict of the [Evaluator].
type Classification uint8

const (
	// Simulated ticks present a fully rendered frame and refresh the
	// reference frame.
	Simulated Classification = iota

	// Extrapolated ticks present a frame synthesized from the reference.
	Extrapolated

	// Regular ticks fall between both periods.
	Regular
)

// String returns the classification name.
func (c Classification) String() string {
	switch c {
	case Simulated:
		return "Simulated"
	case Extrapolated:
		return "Extrapolated"
	case Regular:
		return "Regular"
	default:
		return fmt.Sprintf("Classification(%d)", c)
	}
}

// ErrInvalidRate is returned for a non-positive target rate.
var ErrInvalidRate = errors.New("cadence: target rate must be positive")

// Config holds the two target rates in Hz.
type Config struct {
	SimulatedRateHz    int
	ExtrapolatedRateHz int
}

// Validate checks both rates.
func (c Config) Validate() error {
	if c.SimulatedRateHz <= 0 {
		return fmt.Errorf("%w: simulated rate %d", ErrInvalidRate, c.SimulatedRateHz)
	}
	if c.ExtrapolatedRateHz <= 0 {
		return fmt.Errorf("%w: extrapolated rate %d", ErrInvalidRate, c.ExtrapolatedRateHz)
	}
	return nil
}

// Evaluator is the cadence state machine. The zero value is ready to use:
// its last-seen rates are zero, so the first valid call always resynchronizes
// and classifies Simulated.
//
// An Evaluator is not safe for concurrent use; ticks must be serialized.
type Evaluator struct {
	simulatedPeriod    float64
	extrapolatedPeriod float64

	accSimulated    float64
	accExtrapolated float64

	lastSimulatedHz    int
	lastExtrapolatedHz int
}

// Classify classifies the current tick and then accumulates dt, the time
// elapsed during this tick, towards the next one.
//
// Invalid rates return an error wrapping [ErrInvalidRate] and Regular; dt is
// still accumulated so the clock keeps running while the host fixes its
// configuration.
func (e *Evaluator) Classify(dt float64, cfg Config) (Classification, error) {
	defer e.accumulate(dt)

	if err := cfg.Validate(); err != nil {
		return Regular, err
	}

	e.simulatedPeriod = 1 / float64(cfg.SimulatedRateHz)
	e.extrapolatedPeriod = 1 / float64(cfg.ExtrapolatedRateHz)

	passedSim := e.accSimulated >= e.simulatedPeriod
	passedExt := e.accExtrapolated >= e.extrapolatedPeriod

	if e.resync(cfg) {
		passedSim, passedExt = true, false
	}

	if !passedSim && !passedExt {
		return Regular, nil
	}

	result := Extrapolated
	if passedExt {
		e.accExtrapolated -= e.extrapolatedPeriod
	}
	if passedSim {
		e.accSimulated -= e.simulatedPeriod
		result = Simulated
	}
	return result, nil
}

// resync re-arms the accumulators when either rate differs from the last
// seen one. A rate changed to its current value is not a change.
func (e *Evaluator) resync(cfg Config) bool {
	if cfg.SimulatedRateHz == e.lastSimulatedHz && cfg.ExtrapolatedRateHz == e.lastExtrapolatedHz {
		return false
	}
	e.lastSimulatedHz = cfg.SimulatedRateHz
	e.lastExtrapolatedHz = cfg.ExtrapolatedRateHz
	e.accSimulated = e.simulatedPeriod
	e.accExtrapolated = 0
	return true
}

// Reset returns the evaluator to its zero state; the next valid call
// classifies Simulated.
func (e *Evaluator) Reset() {
	*e = Evaluator{}
}

func (e *Evaluator) accumulate(dt float64) {
	e.accSimulated += dt
	e.accExtrapolated += dt
}

// State is a snapshot of the evaluator, used for tracing.
type State struct {
	SimulatedPeriod         float64
	ExtrapolatedPeriod      float64
	AccumulatedSimulated    float64
	AccumulatedExtrapolated float64
}

// State returns the current accumulators and periods.
func (e *Evaluator) State() State {
	return State{
		SimulatedPeriod:         e.simulatedPeriod,
		ExtrapolatedPeriod:      e.extrapolatedPeriod,
		AccumulatedSimulated:    e.accSimulated,
		AccumulatedExtrapolated: e.accExtrapolated,
	}
}
