// Package methods routes direct-method requests from the hub to named
// handlers. Handler failures never propagate to the transport; every
// request produces a status and a JSON body.
package methods

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AshyBoy91/jetsonazure/internal/ports"
)

// Handler executes one named method. The payload is the raw request body
// (may be empty). A returned error becomes a 500 response.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher implements ports.MethodDispatcher.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	obs      ports.Observability
}

func NewDispatcher(obs ports.Observability) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), obs: obs}
}

// Register binds name to h, replacing any previous handler.
func (d *Dispatcher) Register(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

// Names returns the registered method names, for diagnostics.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch runs the named handler and returns the response status with a
// marshaled JSON body. Unknown methods return 404, handler errors and
// panics return 500 with the error text in the result field.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload []byte) (status int, body []byte) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	d.mu.RUnlock()

	if d.obs != nil {
		d.obs.LogInfo("method request received", ports.Field{Key: "method", Value: name})
	}
	if !ok {
		return 404, mustMarshal(resultMsg(fmt.Sprintf("Unknown method: %s", name)))
	}

	out, err := d.run(ctx, h, payload)
	if err != nil {
		if d.obs != nil {
			d.obs.LogError("method handler failed", err,
				ports.Field{Key: "method", Value: name})
		}
		return 500, mustMarshal(resultMsg(fmt.Sprintf("Error: %s", err.Error())))
	}

	b, err := json.Marshal(out)
	if err != nil {
		return 500, mustMarshal(resultMsg(fmt.Sprintf("Error: encode response: %s", err.Error())))
	}
	return 200, b
}

func (d *Dispatcher) run(ctx context.Context, h Handler, payload []byte) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("method panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}

func resultMsg(msg string) map[string]string {
	return map[string]string{"result": msg}
}

func mustMarshal(v map[string]string) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// map[string]string always marshals
		return []byte(`{"result":"Error: internal"}`)
	}
	return b
}
