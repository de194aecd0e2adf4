package registry

import (
	"fmt"
	"strings"
	"time"
)

// reservedAppNames never receive the "le_" prefix in a registration-update body
// (spec.md §6).
var reservedAppNames = map[string]bool{"lwm2m": true, "legato": true}

// scheduleRegistrationUpdate (re)arms the one-shot debounce timer of spec.md §4.B:
// "creating instances schedules a one-shot timer (1 s); the timer handler emits a
// single registration-update to the server collapsing multiple creates." Restarting the
// timer on every call is the same single-shot-timer-restarted-on-create idiom the
// teacher used for its own registration lifecycle (lwm2m_register.go).
func (r *Registry) scheduleRegistrationUpdate() {
	if r.updateSink == nil {
		return
	}
	if r.updateTimer != nil {
		r.updateTimer.Stop()
	}
	r.updateTimer = time.AfterFunc(registrationUpdateDebounce, r.emitRegistrationUpdate)
}

func (r *Registry) emitRegistrationUpdate() {
	r.updateSink(r.RegistrationUpdate())
}

// RegistrationUpdate formats the current asset list as the comma-separated
// "</appName/assetId[/instanceId]>" body described in spec.md §6. App names other than
// the reserved "lwm2m" and "legato" are prefixed with "le_".
func (r *Registry) RegistrationUpdate() string {
	var parts []string
	for _, a := range r.assets {
		appName := a.appName
		if !reservedAppNames[appName] {
			appName = "le_" + appName
		}
		for _, in := range a.instances {
			parts = append(parts, fmt.Sprintf("</%s/%s/%d>", appName, a.assetID, in.id))
		}
	}
	return strings.Join(parts, ",")
}

// Stop releases the debounce timer, e.g. on process shutdown (DESIGN NOTES §9:
// "cancellation on shutdown must release the timer").
func (r *Registry) Stop() {
	if r.updateTimer != nil {
		r.updateTimer.Stop()
	}
}
