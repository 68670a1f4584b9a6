package pm

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/apiforge/forge/backend/internal/script"
	"github.com/apiforge/forge/backend/internal/script/assert"
)

// newRequestView builds pm.request: a live view of the request snapshot whose
// mutators write through to both the view and the job's RequestPatch.
func newRequestView(rt *goja.Runtime, snap *script.RequestSnapshot, caps *Captures) *goja.Object {
	headers := NewHeaderList(snap.Headers)
	var auth *script.Auth
	if snap.Auth != nil {
		cp := *snap.Auth
		auth = &cp
	}

	obj := rt.NewObject()
	obj.Set("url", snap.URL)
	obj.Set("method", snap.Method)
	obj.Set("body", snap.Body)
	obj.Set("headers", headersObject(rt, headers, caps))
	setAuthProp(rt, obj, auth)

	obj.Set("setUrl", func(call goja.FunctionCall) goja.Value {
		u := call.Argument(0).String()
		obj.Set("url", u)
		caps.Patch.URL = &u
		caps.RequestTouched = true
		return goja.Undefined()
	})

	obj.Set("setMethod", func(call goja.FunctionCall) goja.Value {
		m := call.Argument(0).String()
		obj.Set("method", m)
		caps.Patch.Method = &m
		caps.RequestTouched = true
		return goja.Undefined()
	})

	obj.Set("setBody", func(call goja.FunctionCall) goja.Value {
		b := formatValue(call.Argument(0))
		obj.Set("body", b)
		caps.Patch.Body = &b
		caps.RequestTouched = true
		return goja.Undefined()
	})

	obj.Set("setAuth", func(call goja.FunctionCall) goja.Value {
		parsed, err := exportAuth(call.Argument(0))
		if err != nil {
			assert.Raise(rt, "TypeError", err.Error())
		}
		auth = parsed
		setAuthProp(rt, obj, auth)
		caps.Patch.Auth = auth
		caps.Patch.AuthRemoved = false
		caps.RequestTouched = true
		return goja.Undefined()
	})

	obj.Set("removeAuth", func(goja.FunctionCall) goja.Value {
		auth = nil
		setAuthProp(rt, obj, nil)
		caps.Patch.Auth = nil
		caps.Patch.AuthRemoved = true
		caps.RequestTouched = true
		return goja.Undefined()
	})

	obj.Set("updateAuth", func(call goja.FunctionCall) goja.Value {
		authType := call.Argument(0).String()
		key := call.Argument(1).String()
		value := call.Argument(2).String()

		if auth == nil {
			auth = &script.Auth{}
		}
		auth.Type = authType
		if auth.Params == nil {
			auth.Params = make(map[string][]script.AuthParam)
		}
		params := auth.Params[authType]
		updated := false
		for i := range params {
			if params[i].Key == key {
				params[i].Value = value
				updated = true
				break
			}
		}
		if !updated {
			params = append(params, script.AuthParam{Key: key, Value: value})
		}
		auth.Params[authType] = params

		setAuthProp(rt, obj, auth)
		caps.Patch.Auth = auth
		caps.Patch.AuthRemoved = false
		caps.RequestTouched = true
		return goja.Undefined()
	})

	return obj
}

// headersObject exposes a HeaderList to the script. Every mutation records a
// header delta so the host can replay it; removal records the nil sentinel.
func headersObject(rt *goja.Runtime, list *HeaderList, caps *Captures) *goja.Object {
	obj := rt.NewObject()

	upsert := func(call goja.FunctionCall) goja.Value {
		key, value, err := headerArg(call.Argument(0))
		if err != nil {
			assert.Raise(rt, "TypeError", err.Error())
		}
		list.Upsert(key, value)
		caps.headerDelta(key, &value)
		return goja.Undefined()
	}
	obj.Set("add", upsert)
	obj.Set("upsert", upsert)

	obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).String()
		list.Remove(key)
		caps.headerDelta(key, nil)
		return goja.Undefined()
	})

	obj.Set("get", func(call goja.FunctionCall) goja.Value {
		if v, ok := list.Get(call.Argument(0).String()); ok {
			return rt.ToValue(v)
		}
		return goja.Undefined()
	})

	obj.Set("has", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(list.Has(call.Argument(0).String()))
	})

	obj.Set("each", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			assert.Raise(rt, "TypeError", "headers.each expects a callback function")
		}
		var callErr error
		list.Each(func(key, value string) {
			if callErr != nil {
				return
			}
			entry := rt.NewObject()
			entry.Set("key", key)
			entry.Set("value", value)
			_, callErr = fn(goja.Undefined(), entry)
		})
		if callErr != nil {
			// Re-throw the callback's exception into the script.
			var ex *goja.Exception
			if errors.As(callErr, &ex) {
				panic(ex.Value())
			}
			assert.Raise(rt, "Error", callErr.Error())
		}
		return goja.Undefined()
	})

	obj.Set("toObject", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(list.ToMap())
	})

	obj.Set("count", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(list.Len())
	})

	return obj
}

// headerArg extracts {key, value} from a header-mutation argument.
func headerArg(v goja.Value) (string, string, error) {
	obj, isObj := v.(*goja.Object)
	if !isObj || goja.IsNull(v) {
		return "", "", fmt.Errorf("headers.add expects an object like { key: 'Header-Name', value: 'value' }")
	}
	keyVal := obj.Get("key")
	if keyVal == nil || goja.IsUndefined(keyVal) {
		return "", "", fmt.Errorf("headers.add expects an object with a 'key' property")
	}
	value := ""
	if valueVal := obj.Get("value"); valueVal != nil && !goja.IsUndefined(valueVal) {
		value = valueVal.String()
	}
	return keyVal.String(), value, nil
}

// setAuthProp refreshes the auth property on the request view: undefined
// when never set, null after removal, otherwise the editor-shaped object.
func setAuthProp(rt *goja.Runtime, obj *goja.Object, auth *script.Auth) {
	if auth == nil {
		obj.Set("auth", goja.Null())
		return
	}
	av := rt.NewObject()
	av.Set("type", auth.Type)
	for typeName, params := range auth.Params {
		entries := make([]map[string]interface{}, 0, len(params))
		for _, p := range params {
			entries = append(entries, map[string]interface{}{"key": p.Key, "value": p.Value})
		}
		av.Set(typeName, rt.ToValue(entries))
	}
	obj.Set("auth", av)
}

// exportAuth parses a script-provided auth descriptor: {type: "bearer",
// bearer: [{key, value}, ...]}.
func exportAuth(v goja.Value) (*script.Auth, error) {
	obj, isObj := v.(*goja.Object)
	if !isObj || goja.IsNull(v) {
		return nil, fmt.Errorf("setAuth expects an object like { type: 'bearer', bearer: [{ key: 'token', value: '...' }] }")
	}
	typeVal := obj.Get("type")
	if typeVal == nil || goja.IsUndefined(typeVal) {
		return nil, fmt.Errorf("setAuth expects a 'type' property")
	}

	auth := &script.Auth{Type: typeVal.String()}
	for _, k := range obj.Keys() {
		if k == "type" {
			continue
		}
		arr, isArr := obj.Get(k).(*goja.Object)
		if !isArr || arr.ClassName() != "Array" {
			continue
		}
		n := arr.Get("length").ToInteger()
		params := make([]script.AuthParam, 0, n)
		for i := int64(0); i < n; i++ {
			entry, isEntry := arr.Get(fmt.Sprintf("%d", i)).(*goja.Object)
			if !isEntry {
				continue
			}
			p := script.AuthParam{}
			if kv := entry.Get("key"); kv != nil && !goja.IsUndefined(kv) {
				p.Key = kv.String()
			}
			if vv := entry.Get("value"); vv != nil && !goja.IsUndefined(vv) {
				p.Value = vv.String()
			}
			params = append(params, p)
		}
		if auth.Params == nil {
			auth.Params = make(map[string][]script.AuthParam)
		}
		auth.Params[k] = params
	}
	return auth, nil
}
