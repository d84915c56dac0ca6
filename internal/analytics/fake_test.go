package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/moodle-analytics/internal/config"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

// fakeCaller answers web-service calls from per-function handlers
type fakeCaller struct {
	mu       sync.Mutex
	handlers map[string]func(params moodle.Params) moodle.Result
	calls    map[string]int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		handlers: make(map[string]func(moodle.Params) moodle.Result),
		calls:    make(map[string]int),
	}
}

func (f *fakeCaller) Call(ctx context.Context, function string, params moodle.Params) moodle.Result {
	f.mu.Lock()
	f.calls[function]++
	handler, ok := f.handlers[function]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &moodle.TransportError{Message: err.Error(), Err: err}
	}
	if !ok {
		return &moodle.MoodleError{ErrorCode: "invalidfunction", Message: "no handler for " + function}
	}
	return handler(params)
}

func (f *fakeCaller) on(function string, handler func(moodle.Params) moodle.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[function] = handler
}

// respond registers a fixed JSON payload
func (f *fakeCaller) respond(function, body string) {
	payload := mustDecode(body)
	f.on(function, func(moodle.Params) moodle.Result {
		return moodle.Success{Payload: payload}
	})
}

func (f *fakeCaller) fail(function string) {
	f.on(function, func(moodle.Params) moodle.Result {
		return &moodle.TransportError{Message: "connection refused"}
	})
}

func (f *fakeCaller) count(function string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[function]
}

// mustDecode decodes JSON the way the client does, with json.Number values
func mustDecode(body string) interface{} {
	var payload interface{}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		panic(fmt.Sprintf("bad fixture %q: %v", body, err))
	}
	return payload
}

func testService(t *testing.T, caller moodle.Caller) *Service {
	t.Helper()
	cfg := config.Default().Analytics
	cfg.Concurrency = 4
	svc := NewService(caller, cfg)
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc
}

func criteriaValue(params moodle.Params, key string) (interface{}, bool) {
	criteria, ok := params["criteria"].([]map[string]interface{})
	if !ok {
		return nil, false
	}
	for _, c := range criteria {
		if c["key"] == key {
			return c["value"], true
		}
	}
	return nil, false
}

func optionValue(params moodle.Params, name string) int {
	options, _ := params["options"].([]map[string]interface{})
	for _, o := range options {
		if o["name"] == name {
			v, _ := o["value"].(int)
			return v
		}
	}
	return 0
}
