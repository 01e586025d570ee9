// Package api defines the driver API for the ternary core.
package api

import (
	"errors"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/bridge"
	"github.com/sarchlab/tritsim/core"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// DataVector is the interrupt vector on which the driver delivers input
// words. The word is the interrupt payload, readable through IDATA.
const DataVector = 1

// Device is a ternary core the driver can program and feed.
type Device interface {
	MapProgram(p core.Program) error
	RaiseInterrupt(vector int, payload trit.Word) error
	DrainOutput() []trit.Word
	Halted() bool
	Err() error
}

// Driver provides the interface to control a ternary device from a binary
// host.
type Driver interface {
	sim.Component

	// RegisterDevice registers the device the driver feeds.
	RegisterDevice(device Device)

	// FeedIn queues host words. The driver sends one word per cycle through
	// the bridge and delivers each to the device as a DataVector interrupt.
	FeedIn(data []int64)

	// Collect fills data, in order, with the words the device writes with
	// OUT.
	Collect(data []int64)

	// MapProgram loads a program onto the device.
	MapProgram(p core.Program) error

	// Run runs until the device halts and every queued word has moved.
	Run() error

	// Bridge returns the host bridge.
	Bridge() *bridge.Bridge
}

type feedInTask struct {
	data  []int64
	round int
}

func (t *feedInTask) isFinished() bool {
	return t.round >= len(t.data)
}

type collectTask struct {
	data  []int64
	round int
}

func (t *collectTask) isFinished() bool {
	return t.round >= len(t.data)
}

type driverImpl struct {
	*sim.TickingComponent

	device Device
	bridge *bridge.Bridge

	feedInTasks  []*feedInTask
	collectTasks []*collectTask

	// held is a converted word the device has not accepted yet.
	held *trit.Word
	// results are device outputs waiting for room on the return path.
	results []trit.Word
}

// Tick runs the driver for one cycle.
func (d *driverImpl) Tick() (madeProgress bool) {
	madeProgress = d.doFeedIn() || madeProgress

	if !d.bridge.Idle() {
		d.bridge.Step()
		madeProgress = true
	}

	madeProgress = d.doDeliver() || madeProgress
	madeProgress = d.doDrain() || madeProgress
	madeProgress = d.doCollect() || madeProgress

	return madeProgress || d.waitingForDevice()
}

func (d *driverImpl) doFeedIn() bool {
	if len(d.feedInTasks) == 0 {
		return false
	}

	task := d.feedInTasks[0]
	if err := d.bridge.Send(task.data[task.round]); err != nil {
		return false
	}

	task.round++
	if task.isFinished() {
		d.feedInTasks = d.feedInTasks[1:]
	}

	return true
}

func (d *driverImpl) doDeliver() bool {
	if d.held == nil {
		if d.bridge.Pending() == 0 {
			return false
		}

		w, err := d.bridge.Deliver()
		if err != nil {
			return false
		}

		d.held = &w
	}

	err := d.device.RaiseInterrupt(DataVector, *d.held)
	if err != nil {
		core.Trace("Driver stalled", "Name", d.Name(), "Reason", err)
		return false
	}

	d.held = nil

	return true
}

func (d *driverImpl) doDrain() bool {
	d.results = append(d.results, d.device.DrainOutput()...)

	madeProgress := false
	for len(d.results) > 0 {
		err := d.bridge.Accept(d.results[0])
		if errors.Is(err, simerr.ErrBackpressure) {
			break
		}

		if err != nil {
			core.Trace("Driver dropped result", "Name", d.Name(), "Error", err)
		}

		d.results = d.results[1:]
		madeProgress = true
	}

	return madeProgress
}

func (d *driverImpl) doCollect() bool {
	madeProgress := false

	for len(d.collectTasks) > 0 {
		task := d.collectTasks[0]

		v, err := d.bridge.Receive()
		if err != nil {
			break
		}

		task.data[task.round] = v
		task.round++
		madeProgress = true

		if task.isFinished() {
			d.collectTasks = d.collectTasks[1:]
		}
	}

	return madeProgress
}

// waitingForDevice keeps the driver ticking while a running device still
// owes it words.
func (d *driverImpl) waitingForDevice() bool {
	if d.device == nil || d.device.Halted() || d.device.Err() != nil {
		return false
	}

	return len(d.collectTasks) > 0 || len(d.feedInTasks) > 0 || d.held != nil
}

// RegisterDevice registers the device the driver feeds.
func (d *driverImpl) RegisterDevice(device Device) {
	d.device = device
}

// FeedIn queues host words for the device.
func (d *driverImpl) FeedIn(data []int64) {
	if len(data) == 0 {
		return
	}

	d.feedInTasks = append(d.feedInTasks, &feedInTask{data: data})
}

// Collect queues a buffer to fill with device output.
func (d *driverImpl) Collect(data []int64) {
	if len(data) == 0 {
		return
	}

	d.collectTasks = append(d.collectTasks, &collectTask{data: data})
}

// MapProgram loads a program onto the device.
func (d *driverImpl) MapProgram(p core.Program) error {
	if d.device == nil {
		return simerr.New(simerr.KindState, "api.MapProgram", "no device registered")
	}

	return d.device.MapProgram(p)
}

// Bridge returns the host bridge.
func (d *driverImpl) Bridge() *bridge.Bridge {
	return d.bridge
}

// Run runs all the tasks in the driver.
func (d *driverImpl) Run() error {
	if d.device == nil {
		return simerr.New(simerr.KindState, "api.Run", "no device registered")
	}

	d.TickNow()

	if err := d.Engine.Run(); err != nil {
		return err
	}

	if err := d.device.Err(); err != nil {
		return err
	}

	missing := 0
	for _, task := range d.collectTasks {
		missing += len(task.data) - task.round
	}

	if missing > 0 {
		return simerr.New(simerr.KindState, "api.Run",
			"device stopped with %d words uncollected", missing)
	}

	return nil
}
