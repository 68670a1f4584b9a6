package pm

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// consoleTags maps console method names to the tag rendered in captured
// lines; alert is installed as a bare global with its own tag.
var consoleTags = map[string]string{
	"log":   "LOG",
	"info":  "INFO",
	"warn":  "WARN",
	"error": "ERROR",
	"debug": "DEBUG",
}

// installConsole replaces the console with capture functions that append
// tagged, formatted lines to the job's console buffer.
func installConsole(rt *goja.Runtime, caps *Captures) {
	console := rt.NewObject()
	for method, tag := range consoleTags {
		console.Set(method, makeCapture(caps, tag))
	}
	rt.Set("console", console)
	rt.Set("alert", makeCapture(caps, "ALERT"))
}

func makeCapture(caps *Captures, tag string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatValue(arg))
		}
		caps.Console = append(caps.Console, "["+tag+"] "+strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// formatValue renders a script value for capture: structured values as JSON,
// everything else via JS string conversion.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return v.String()
	}
	if _, isObj := v.(*goja.Object); isObj {
		if b, err := sonic.ConfigStd.Marshal(v.Export()); err == nil {
			return string(b)
		}
	}
	return v.String()
}
