// Package device implements the receiving side of the upload protocol.
//
// A Device owns the artifact and scratch regions, the region selection and
// the upload session. Inbound buffers are parsed, checksummed and
// dispatched one at a time under the device lock; responses are sent to the
// Sender the buffer arrived from.
package device

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/modelpush/executor"
	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/metrics"
	"github.com/pithecene-io/modelpush/region"
	"github.com/pithecene-io/modelpush/session"
	"github.com/pithecene-io/modelpush/transport"
	"github.com/pithecene-io/modelpush/types"
)

// Options configures a Device.
type Options struct {
	// ID names the device in logs, reports and manifests.
	ID string
	// Layout sets region capacities. Zero fields use region defaults.
	Layout region.Layout
	// Selection is the initial region selection.
	Selection region.Selection
	// Executor runs completed artifacts. Required.
	Executor executor.Executor
	// Sender receives responses for buffers passed to Receive.
	// Defaults to transport.Discard.
	Sender transport.Sender
	// RunTimeout bounds one prepare+run. Zero means none.
	RunTimeout time.Duration

	Logger  *log.Logger
	Metrics *metrics.Collector

	// OnRun is called after every RUN_STATS request, under the device lock.
	// It must not call back into the Device.
	OnRun func(types.RunReport)
	// OnUpload is called when an upload completes, under the device lock.
	// It must not call back into the Device.
	OnUpload func(types.ArtifactManifest)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Device is the protocol endpoint. Safe for concurrent use; dispatches are
// serialized.
type Device struct {
	mu sync.Mutex

	id         string
	bank       *region.Bank
	selection  region.Selection
	session    *session.Session
	exec       executor.Executor
	sender     transport.Sender
	runTimeout time.Duration

	logger  *log.Logger
	metrics *metrics.Collector

	onRun    func(types.RunReport)
	onUpload func(types.ArtifactManifest)
	now      func() time.Time
}

// New creates a device and allocates its regions.
func New(opts Options) (*Device, error) {
	if opts.Executor == nil {
		return nil, errors.New("device: executor is required")
	}
	bank, err := region.NewBank(opts.Layout.WithDefaults())
	if err != nil {
		return nil, err
	}

	d := &Device{
		id:         opts.ID,
		bank:       bank,
		selection:  opts.Selection,
		session:    session.New(),
		exec:       opts.Executor,
		sender:     opts.Sender,
		runTimeout: opts.RunTimeout,
		logger:     opts.Logger.Component("device"),
		metrics:    opts.Metrics,
		onRun:      opts.OnRun,
		onUpload:   opts.OnUpload,
		now:        opts.Now,
	}
	if d.sender == nil {
		d.sender = transport.Discard
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

// ID returns the device ID.
func (d *Device) ID() string { return d.id }

// Receive handles one inbound buffer and replies through Options.Sender.
func (d *Device) Receive(b []byte) {
	d.Handle(context.Background(), b, d.sender)
}

// State is a point-in-time view of the device.
type State struct {
	DeviceID  string           `json:"device_id"`
	Selection region.Selection `json:"selection"`
	Session   session.Snapshot `json:"session"`
}

// State returns the current selection and session fields.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		DeviceID:  d.id,
		Selection: d.selection,
		Session:   d.session.Snapshot(),
	}
}

// Reset returns the session to Idle and the selection to its zero value.
// Region contents are kept.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session.Reset()
	d.selection = region.Selection{}
	d.logger.Info("device reset", nil)
}

// Artifact returns a copy of the completed artifact and the region it lives in.
func (d *Device) Artifact() ([]byte, types.RegionKind, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, kind, err := d.session.Artifact()
	if err != nil {
		return nil, 0, err
	}
	return append([]byte(nil), b...), kind, nil
}
