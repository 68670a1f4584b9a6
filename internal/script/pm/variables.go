package pm

import "github.com/dop251/goja"

// unsetSentinel is recorded in a namespace's updates map when a key is
// deleted, so the host can tell "deleted" apart from "never touched".
const unsetSentinel = ""

// newNamespace builds one variable namespace (environment, globals or
// collectionVariables). Reads and writes go against a private copy of the
// snapshot; changes are additionally recorded in updates unless it is nil,
// which keeps collection-variable mutations script-local.
func newNamespace(rt *goja.Runtime, src map[string]string, updates map[string]string) *goja.Object {
	live := make(map[string]string, len(src))
	for k, v := range src {
		live[k] = v
	}

	ns := rt.NewObject()

	ns.Set("get", func(call goja.FunctionCall) goja.Value {
		if v, ok := live[call.Argument(0).String()]; ok {
			return rt.ToValue(v)
		}
		return goja.Undefined()
	})

	ns.Set("set", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		value := formatValue(call.Argument(1))
		live[key] = value
		if updates != nil {
			updates[key] = value
		}
		return goja.Undefined()
	})

	ns.Set("unset", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		delete(live, key)
		if updates != nil {
			updates[key] = unsetSentinel
		}
		return goja.Undefined()
	})

	ns.Set("has", func(call goja.FunctionCall) goja.Value {
		_, ok := live[call.Argument(0).String()]
		return rt.ToValue(ok)
	})

	return ns
}
