// Package syscalls exposes the exec system-call surface. Handlers are
// plain exported methods on a receiver; dispatch finds them by reflected
// snake_case name and coerces raw register arguments with argjoy.
package syscalls

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"
)

type Call struct {
	Name     string
	instance reflect.Value
	method   reflect.Method
	in       []reflect.Type
}

type Dispatcher struct {
	calls  map[string]*Call
	Argjoy argjoy.Argjoy
}

func camelToSnakeCase(name string) string {
	var words []string
	last := 0
	for i, c := range name {
		if unicode.IsUpper(c) {
			if i > 0 {
				words = append(words, name[last:i])
			}
			last = i
		}
	}
	words = append(words, name[last:])
	return strings.ToLower(strings.Join(words, "_"))
}

// NewDispatcher builds a call table from every exported method on recv.
func NewDispatcher(recv interface{}) *Dispatcher {
	d := &Dispatcher{calls: make(map[string]*Call)}
	instance := reflect.ValueOf(recv)
	typ := instance.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		in := make([]reflect.Type, method.Type.NumIn()-1)
		for j := 1; j < method.Type.NumIn(); j++ {
			in[j-1] = method.Type.In(j)
		}
		name := camelToSnakeCase(method.Name)
		d.calls[name] = &Call{
			Name:     name,
			instance: instance,
			method:   method,
			in:       in,
		}
	}
	d.Argjoy.Register(argjoy.IntToInt)
	return d
}

// Call invokes a named syscall with raw register arguments. The handler's
// first return value is the syscall result.
func (d *Dispatcher) Call(name string, args []uint64) (int64, error) {
	call, ok := d.calls[name]
	if !ok {
		return -1, errors.Errorf("syscall missing: %s", name)
	}
	if len(args) < len(call.in) {
		return -1, errors.Errorf("not enough arguments to syscall '%s': wanted %d, got %d",
			name, len(call.in), len(args))
	}
	converted, err := d.Argjoy.Convert(call.in, false, args)
	if err != nil {
		return -1, errors.Wrapf(err, "converting args for '%s'", name)
	}
	in := make([]reflect.Value, 0, len(converted)+1)
	in = append(in, call.instance)
	in = append(in, converted...)
	out := call.method.Func.Call(in)
	int64Type := reflect.TypeOf(int64(0))
	if len(out) > 0 && out[0].Type().ConvertibleTo(int64Type) {
		return out[0].Convert(int64Type).Int(), nil
	}
	return 0, nil
}
