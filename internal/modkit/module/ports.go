package module

import (
	"fmt"
	"reflect"
)

// PortsOf finds a T in m's Ports() bundle without going through the registry
// the bundle itself may be a T, or a struct (or pointer to one) with an exported field holding a T
func PortsOf[T any](m Module) (T, bool) {
	if m == nil {
		var zero T
		return zero, false
	}
	return portIn[T](m.Ports())
}

// MustPortsOf is PortsOf for bootstrap code where a missing port is a wiring bug
func MustPortsOf[T any](m Module) T {
	v, ok := PortsOf[T](m)
	if !ok {
		panic(fmt.Sprintf("module %q: no port of type %s", m.Name(), reflect.TypeFor[T]()))
	}
	return v
}

func portIn[T any](p any) (T, bool) {
	var zero T
	if p == nil {
		return zero, false
	}
	if v, ok := p.(T); ok {
		return v, true
	}
	rv := reflect.ValueOf(p)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return zero, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return zero, false
	}
	for i := range rv.NumField() {
		f := rv.Field(i)
		if !f.CanInterface() {
			continue
		}
		if v, ok := f.Interface().(T); ok {
			return v, true
		}
	}
	return zero, false
}
