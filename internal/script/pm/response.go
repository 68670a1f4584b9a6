package pm

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"

	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/assert"
)

// newResponseView builds pm.response: a read-only projection of the response
// snapshot. body holds the parsed JSON value when the body parses, otherwise
// the raw string; json() and text() give explicit access to either form.
func newResponseView(rt *goja.Runtime, resp *script.ResponseSnapshot) *goja.Object {
	obj := rt.NewObject()
	obj.Set("code", resp.Code)
	obj.Set("status", resp.Status)
	obj.Set("headers", rt.ToValue(resp.Headers))
	obj.Set("responseTime", resp.ResponseTime)

	var parsed interface{}
	parseErr := sonic.ConfigStd.Unmarshal([]byte(resp.Body), &parsed)
	if resp.Body != "" && parseErr == nil {
		obj.Set("body", rt.ToValue(parsed))
	} else {
		obj.Set("body", resp.Body)
	}

	obj.Set("json", func(goja.FunctionCall) goja.Value {
		if resp.Body == "" || parseErr != nil {
			assert.Raise(rt, "Error", "response body is not valid JSON")
		}
		return rt.ToValue(parsed)
	})

	obj.Set("text", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(resp.Body)
	})

	// pm.response.to.have.status(expected) convenience chain.
	have := rt.NewObject()
	have.Set("status", func(call goja.FunctionCall) goja.Value {
		want := int(call.Argument(0).ToInteger())
		if resp.Code != want {
			assert.Raise(rt, "AssertionError",
				fmt.Sprintf("expected response to have status %d but got %d", want, resp.Code))
		}
		return goja.Undefined()
	})
	to := rt.NewObject()
	to.Set("have", have)
	obj.Set("to", to)

	return obj
}
