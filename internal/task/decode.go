package task

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Decode copies the invocation's parameters into the struct pointed to by
// target. Fields are matched by their `cty:"name"` tag; a parameter with no
// matching field is an error, while fields with no parameter keep their
// current value. Values are converted to the field's type where cty allows it,
// so a number parameter may fill a string field.
func (inv *Invocation) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a pointer to a struct, got %T", target)
	}
	sv := rv.Elem()
	st := sv.Type()

	fields := make(map[string]int, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("cty"), ",")[0]
		if name != "" && name != "-" {
			fields[name] = i
		}
	}

	for _, name := range inv.Params.Names() {
		idx, ok := fields[name]
		if !ok {
			return fmt.Errorf("task %s: unsupported parameter %q", inv.Ref, name)
		}
		field := sv.Field(idx)
		want, err := gocty.ImpliedType(field.Interface())
		if err != nil {
			return fmt.Errorf("task %s: parameter %q: %w", inv.Ref, name, err)
		}
		val, err := convert.Convert(inv.Params[name], want)
		if err != nil {
			return fmt.Errorf("task %s: parameter %q: %w", inv.Ref, name, err)
		}
		if err := gocty.FromCtyValue(val, field.Addr().Interface()); err != nil {
			return fmt.Errorf("task %s: parameter %q: %w", inv.Ref, name, err)
		}
	}
	return nil
}
