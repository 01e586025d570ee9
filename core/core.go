package core

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/trit"
)

// ErrWatchdog is the error a Core reports when its cycle limit stops a run.
// Unlike a Fault it leaves the machine running and inspectable.
var ErrWatchdog = errors.New("watchdog expired")

// Core runs a Machine as an akita ticking component, one machine cycle per
// component tick.
type Core struct {
	*sim.TickingComponent

	machine   *Machine
	maxCycles uint64
	err       error
}

// Machine exposes the underlying machine.
func (c *Core) Machine() *Machine {
	return c.machine
}

// MapProgram loads the program and schedules the first tick.
func (c *Core) MapProgram(p Program) error {
	if err := c.machine.LoadProgram(p); err != nil {
		return err
	}

	c.err = nil
	c.TickLater()

	return nil
}

// Err returns the error that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Halted reports whether the machine has stopped.
func (c *Core) Halted() bool {
	return c.machine.Halted()
}

// RaiseInterrupt forwards an external interrupt and wakes the core.
func (c *Core) RaiseInterrupt(vector int, payload trit.Word) error {
	if err := c.machine.RaiseInterrupt(vector, payload); err != nil {
		return err
	}

	if !c.machine.Halted() {
		c.TickLater()
	}

	return nil
}

// DrainOutput removes the words written by OUT.
func (c *Core) DrainOutput() []trit.Word {
	return c.machine.DrainOutput()
}

// Tick advances the machine by one cycle.
func (c *Core) Tick() (madeProgress bool) {
	if c.machine.Halted() || c.err != nil {
		return false
	}

	if c.maxCycles > 0 && c.machine.Cycle() >= c.maxCycles {
		c.err = fmt.Errorf("core.Tick: %w after %d cycles", ErrWatchdog, c.maxCycles)
		Trace("Watchdog expired", "Name", c.Name(), "Cycle", c.machine.Cycle())

		return false
	}

	if err := c.machine.Tick(); err != nil {
		c.err = err

		var f *Fault
		if !errors.As(err, &f) {
			Trace("Core stopped", "Name", c.Name(), "Error", err)
		}

		return false
	}

	return !c.machine.Halted()
}
