package mpvipc

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of one IPC request: Ok(Data) when Err is empty, Err(description) otherwise.
// Transport failures (refused, timeout, malformed reply) are Results too, never Go errors.
type Result struct {
	Data json.RawMessage
	Err  string
}

// Ok wraps a value as a successful result.
func Ok(v any) Result {
	if v == nil {
		return Result{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Failure("encode data: %v", err)
	}
	return Result{Data: data}
}

// Failure builds an error result.
func Failure(format string, args ...any) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == ""
}

func (r Result) hasData() bool {
	return r.OK() && len(r.Data) > 0 && string(r.Data) != "null"
}

// Decode unmarshals Data into v. It fails on error results and on null data.
func (r Result) Decode(v any) error {
	if !r.OK() {
		return fmt.Errorf("mpv error: %s", r.Err)
	}
	if !r.hasData() {
		return fmt.Errorf("mpv returned no data")
	}
	return json.Unmarshal(r.Data, v)
}

func (r Result) Bool() (bool, bool) {
	var b bool
	if err := r.Decode(&b); err != nil {
		return false, false
	}
	return b, true
}

func (r Result) Float() (float64, bool) {
	var f float64
	if err := r.Decode(&f); err != nil {
		return 0, false
	}
	return f, true
}

func (r Result) Int() (int, bool) {
	f, ok := r.Float()
	return int(f), ok
}

func (r Result) String() (string, bool) {
	var s string
	if err := r.Decode(&s); err != nil {
		return "", false
	}
	return s, true
}
