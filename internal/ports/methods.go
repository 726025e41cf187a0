package ports

import "context"

// MethodDispatcher handles direct-method requests arriving from the hub
// transport. Implementations must always return a status and a JSON body;
// request failures are encoded in the response, never returned.
type MethodDispatcher interface {
	Dispatch(ctx context.Context, name string, payload []byte) (status int, body []byte)
}
