// Package lwm2mdp wires the registry, dispatcher, and session façade into one running
// data plane, the way the teacher's Inventoryd tied its Lwm2m handler and Config
// together (inventoryd.go) and drove everything from one signal-handling Run loop.
package lwm2mdp

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funahara/lwm2mdp/coap"
	"funahara/lwm2mdp/dispatch"
	"funahara/lwm2mdp/registry"
	"funahara/lwm2mdp/session"
)

// DataPlane is the top-level object a binary constructs: it owns the asset registry,
// the request dispatcher, and the session façade, and knows how to run the
// single-threaded, cooperative event loop of spec.md §5.
type DataPlane struct {
	Config     *Config
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher

	transport coap.Transport
}

// New constructs a DataPlane over the given transport and session core. updateSink
// receives formatted registration-update bodies (spec.md §6); either collaborator may
// be nil for a DataPlane exercised purely through its registry in tests.
func New(config *Config, transport coap.Transport, core session.Core, updateSink registry.UpdateSink) *DataPlane {
	reg := registry.New(transport, core, updateSink)
	return &DataPlane{
		Config:     config,
		Registry:   reg,
		Dispatcher: dispatch.New(reg),
		transport:  transport,
	}
}

// Handle routes one inbound CoAP request through the dispatcher.
func (d *DataPlane) Handle(req *coap.Request) *coap.Response {
	return d.Dispatcher.Handle(req)
}

// Run drives the observe-and-notify poll loop until SIGINT/SIGTERM/SIGQUIT, mirroring
// the teacher's signal-trap-then-stop-goroutines Run() (inventoryd.go). push is called
// with each poll pass's notifications so the caller decides how to format and submit
// them (spec.md §9's Observe/Notify supplemental feature leaves transport framing to
// the caller).
func (d *DataPlane) Run(push func([]registry.Notification)) error {
	trapSignals := []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, trapSignals...)

	interval := time.Duration(d.Config.ObserveInterval) * time.Second
	if interval <= 0 {
		interval = DefaultObserveInterval * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			log.Print("lwm2mdp: shutdown signal received")
			d.Registry.Stop()
			return nil
		case <-ticker.C:
			changes := d.Registry.CollectChanges()
			if len(changes) > 0 && push != nil {
				push(changes)
			}
		}
	}
}
