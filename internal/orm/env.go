package orm

import "maps"

// Env carries the operator identity and the request context blob through
// every store call.
type Env struct {
	UID     ID     `json:"uid"`
	Context Values `json:"context,omitempty"`
}

// NewEnv returns an Env for uid with an empty context.
func NewEnv(uid ID) Env {
	return Env{UID: uid, Context: Values{}}
}

// Clone returns a copy whose context can be mutated without affecting e.
func (e Env) Clone() Env {
	out := Env{UID: e.UID, Context: Values{}}
	maps.Copy(out.Context, e.Context)
	return out
}

// With returns a clone with key set in the context.
func (e Env) With(key string, value any) Env {
	out := e.Clone()
	out.Context[key] = value
	return out
}
