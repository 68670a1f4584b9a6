// Package assert implements the chainable assertion library exposed to
// scripts as pm.expect(value).
//
// A chain is a pair of goja objects wrapping one captured value: the positive
// chain and its negated twin. The navigation accessors to/be/have point back
// at the chain itself, `not` on the positive chain points at the twin, and
// `not` on the twin points at the twin again, so negation applies once per
// chain, never cumulatively.
package assert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
)

// New returns the assertion object for value, ready to be handed to a script.
func New(rt *goja.Runtime, value goja.Value) *goja.Object {
	neg := build(rt, value, true)
	pos := build(rt, value, false)
	neg.Set("not", neg)
	pos.Set("not", neg)
	return pos
}

// Raise throws a JS exception carrying a named Error object. Shared with the
// pm surface for its own error paths.
func Raise(rt *goja.Runtime, name, msg string) {
	obj, err := rt.New(rt.Get("Error"), rt.ToValue(msg))
	if err != nil {
		panic(rt.ToValue(msg))
	}
	obj.Set("name", name)
	panic(obj)
}

type chain struct {
	rt      *goja.Runtime
	value   goja.Value
	negated bool
}

func build(rt *goja.Runtime, value goja.Value, negated bool) *goja.Object {
	c := &chain{rt: rt, value: value, negated: negated}
	obj := rt.NewObject()
	obj.Set("to", obj)
	obj.Set("be", obj)
	obj.Set("have", obj)

	obj.Set("equal", c.equal)
	obj.Set("eql", c.eql)
	obj.Set("a", c.typeCheck("a"))
	obj.Set("an", c.typeCheck("an"))
	// Nullary predicates assert on property access so scripts can write
	// either `.to.be.ok` or `.to.be.ok()`. The getter returns a no-op
	// callable to keep the second form working.
	c.nullary(obj, "ok", func() bool { return c.value.ToBoolean() }, "be truthy")
	c.nullary(obj, "true", func() bool { return c.value.StrictEquals(rt.ToValue(true)) }, "be true")
	c.nullary(obj, "false", func() bool { return c.value.StrictEquals(rt.ToValue(false)) }, "be false")
	c.nullary(obj, "null", func() bool { return goja.IsNull(c.value) }, "be null")
	c.nullary(obj, "undefined", func() bool { return goja.IsUndefined(c.value) }, "be undefined")
	obj.Set("above", c.above)
	obj.Set("below", c.below)
	obj.Set("include", c.include)
	obj.Set("match", c.match)
	obj.Set("property", c.property)
	obj.Set("length", c.length)
	obj.Set("status", c.status)
	obj.Set("oneOf", c.oneOf)
	return obj
}

// assert resolves one terminal predicate: raise unless the (possibly negated)
// condition holds. `what` completes the sentence "expected <value> [not] to ...".
func (c *chain) assert(ok bool, what string) goja.Value {
	if ok != c.negated {
		return goja.Undefined()
	}
	neg := ""
	if c.negated {
		neg = "not "
	}
	Raise(c.rt, "AssertionError", fmt.Sprintf("expected %s %sto %s", Format(c.value), neg, what))
	return goja.Undefined()
}

func (c *chain) equal(call goja.FunctionCall) goja.Value {
	other := call.Argument(0)
	return c.assert(c.value.StrictEquals(other), fmt.Sprintf("equal %s", Format(other)))
}

func (c *chain) eql(call goja.FunctionCall) goja.Value {
	other := call.Argument(0)
	return c.assert(canonical(c.value) == canonical(other), fmt.Sprintf("deeply equal %s", Format(other)))
}

func (c *chain) typeCheck(article string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		want := strings.ToLower(call.Argument(0).String())
		return c.assert(typeOf(c.value) == want, fmt.Sprintf("be %s %s", article, want))
	}
}

func (c *chain) nullary(obj *goja.Object, name string, cond func() bool, what string) {
	getter := c.rt.ToValue(func(goja.FunctionCall) goja.Value {
		c.assert(cond(), what)
		return c.rt.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	})
	obj.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (c *chain) above(call goja.FunctionCall) goja.Value {
	bound := call.Argument(0)
	return c.assert(c.value.ToFloat() > bound.ToFloat(), fmt.Sprintf("be above %s", Format(bound)))
}

func (c *chain) below(call goja.FunctionCall) goja.Value {
	bound := call.Argument(0)
	return c.assert(c.value.ToFloat() < bound.ToFloat(), fmt.Sprintf("be below %s", Format(bound)))
}

func (c *chain) include(call goja.FunctionCall) goja.Value {
	needle := call.Argument(0)
	what := fmt.Sprintf("include %s", Format(needle))

	if obj, isObj := c.value.(*goja.Object); isObj {
		switch obj.ClassName() {
		case "Array":
			return c.assert(arrayContains(obj, needle), what)
		case "Set":
			if has, found := goja.AssertFunction(obj.Get("has")); found {
				res, err := has(obj, needle)
				return c.assert(err == nil && res.ToBoolean(), what)
			}
		}
		// Plain objects: key presence.
		for _, k := range obj.Keys() {
			if k == needle.String() {
				return c.assert(true, what)
			}
		}
		return c.assert(false, what)
	}
	return c.assert(strings.Contains(c.value.String(), needle.String()), what)
}

func (c *chain) match(call goja.FunctionCall) goja.Value {
	arg := call.Argument(0)
	str := c.value.String()

	if obj, isObj := arg.(*goja.Object); isObj && obj.ClassName() == "RegExp" {
		test, found := goja.AssertFunction(obj.Get("test"))
		if !found {
			Raise(c.rt, "TypeError", "match expects a regular expression")
		}
		res, err := test(obj, c.rt.ToValue(str))
		return c.assert(err == nil && res.ToBoolean(), fmt.Sprintf("match %s", arg.String()))
	}

	re, err := regexp.Compile(arg.String())
	if err != nil {
		Raise(c.rt, "TypeError", fmt.Sprintf("match received an invalid pattern: %s", err))
	}
	return c.assert(re.MatchString(str), fmt.Sprintf("match /%s/", arg.String()))
}

func (c *chain) property(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	obj, isObj := c.value.(*goja.Object)
	if !isObj {
		return c.assert(false, fmt.Sprintf("have property '%s'", name))
	}

	prop := obj.Get(name)
	exists := prop != nil && !goja.IsUndefined(prop)
	if len(call.Arguments) < 2 {
		return c.assert(exists, fmt.Sprintf("have property '%s'", name))
	}

	want := call.Argument(1)
	return c.assert(exists && prop.StrictEquals(want),
		fmt.Sprintf("have property '%s' equal to %s", name, Format(want)))
}

func (c *chain) length(call goja.FunctionCall) goja.Value {
	want := call.Argument(0).ToInteger()
	got := int64(-1)
	if obj, isObj := c.value.(*goja.Object); isObj {
		if l := obj.Get("length"); l != nil && !goja.IsUndefined(l) {
			got = l.ToInteger()
		} else {
			got = int64(len(obj.Keys()))
		}
	} else if !goja.IsUndefined(c.value) && !goja.IsNull(c.value) {
		got = int64(len(c.value.String()))
	}
	return c.assert(got == want, fmt.Sprintf("have length %d but got %d", want, got))
}

func (c *chain) status(call goja.FunctionCall) goja.Value {
	want := call.Argument(0).ToInteger()
	got := int64(-1)
	if obj, isObj := c.value.(*goja.Object); isObj {
		if code := obj.Get("code"); code != nil && !goja.IsUndefined(code) {
			got = code.ToInteger()
		}
	}
	return c.assert(got == want, fmt.Sprintf("have status %d but got %d", want, got))
}

func (c *chain) oneOf(call goja.FunctionCall) goja.Value {
	list := call.Argument(0)
	obj, isObj := list.(*goja.Object)
	if !isObj || obj.ClassName() != "Array" {
		Raise(c.rt, "TypeError", "oneOf expects an array of candidate values")
	}
	return c.assert(arrayContains(obj, c.value), fmt.Sprintf("be one of %s", Format(list)))
}

func arrayContains(arr *goja.Object, needle goja.Value) bool {
	n := arr.Get("length").ToInteger()
	for i := int64(0); i < n; i++ {
		if el := arr.Get(strconv.FormatInt(i, 10)); el != nil && el.StrictEquals(needle) {
			return true
		}
	}
	return false
}

// typeOf classifies a value the way the a/an predicate expects: arrays are
// "array", non-array objects are "object".
func typeOf(v goja.Value) string {
	switch {
	case goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return "function"
	}
	if obj, isObj := v.(*goja.Object); isObj {
		if obj.ClassName() == "Array" {
			return "array"
		}
		return "object"
	}
	switch v.Export().(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	}
	return "object"
}

// Format renders a value for assertion messages: strings quoted, structured
// values as canonical JSON.
func Format(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return "[Function]"
	}
	if _, isObj := v.(*goja.Object); isObj {
		return canonical(v)
	}
	if _, isStr := v.Export().(string); isStr {
		return "'" + v.String() + "'"
	}
	return v.String()
}

// canonical serializes a value with sorted keys so structurally equal values
// compare equal byte for byte.
func canonical(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	b, err := sonic.ConfigStd.Marshal(v.Export())
	if err != nil {
		return v.String()
	}
	return string(b)
}
