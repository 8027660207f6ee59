package transport

import "github.com/gezibash/arc-kernel/pkg/runtime"

const busKey = "transport.bus"

// AttachBus stores a control Bus on the runtime and closes it with the runtime.
func AttachBus(b Bus) runtime.Extension {
	return func(rt *runtime.Runtime) error {
		rt.Set(busKey, b)
		rt.OnClose(b.Close)
		return nil
	}
}

// BusFrom retrieves the control Bus from the runtime.
func BusFrom(rt *runtime.Runtime) Bus {
	if rt == nil {
		return nil
	}
	if b, ok := rt.Get(busKey).(Bus); ok {
		return b
	}
	return nil
}
