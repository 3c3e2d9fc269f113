package config

import (
	"go.starlark.net/starlark"
)

func getString(globals starlark.StringDict, name string, dst *string) (err error) {
	value, ok := globals[name]
	if !ok {
		return
	}
	str, ok := starlark.AsString(value)
	if !ok {
		err = &ErrType{Name: name, Want: "string", Got: value.Type()}
		return
	}
	*dst = str
	return
}

func getBool(globals starlark.StringDict, name string, dst *bool) (err error) {
	value, ok := globals[name]
	if !ok {
		return
	}
	b, ok := value.(starlark.Bool)
	if !ok {
		err = &ErrType{Name: name, Want: "bool", Got: value.Type()}
		return
	}
	*dst = bool(b)
	return
}

func getInt(globals starlark.StringDict, name string, dst *int) (err error) {
	value, ok := globals[name]
	if !ok {
		return
	}
	n, err := starlark.AsInt32(value)
	if err != nil {
		err = &ErrType{Name: name, Want: "int", Got: value.Type()}
		return
	}
	*dst = n
	return
}

func getUint64(globals starlark.StringDict, name string, dst *uint64) (err error) {
	value, ok := globals[name]
	if !ok {
		return
	}
	n, ok := value.(starlark.Int)
	if !ok {
		err = &ErrType{Name: name, Want: "int", Got: value.Type()}
		return
	}
	u, ok := n.Uint64()
	if !ok {
		err = &ErrValue{Name: name, Value: n.String()}
		return
	}
	*dst = u
	return
}

func getStrings(globals starlark.StringDict, name string, dst *[]string) (err error) {
	value, ok := globals[name]
	if !ok {
		return
	}

	// A single string is a list of one.
	if str, ok := starlark.AsString(value); ok {
		*dst = []string{str}
		return
	}

	iter := starlark.Iterate(value)
	if iter == nil {
		err = &ErrType{Name: name, Want: "list of strings", Got: value.Type()}
		return
	}
	defer iter.Done()

	list := []string{}
	var item starlark.Value
	for iter.Next(&item) {
		str, ok := starlark.AsString(item)
		if !ok {
			err = &ErrType{Name: name, Want: "list of strings", Got: item.Type()}
			return
		}
		list = append(list, str)
	}
	*dst = list
	return
}

func getFuses(globals starlark.StringDict, name string, dst *map[int]byte) (err error) {
	value, ok := globals[name]
	if !ok {
		return
	}
	dict, ok := value.(*starlark.Dict)
	if !ok {
		err = &ErrType{Name: name, Want: "dict", Got: value.Type()}
		return
	}

	fuses := map[int]byte{}
	for _, item := range dict.Items() {
		var index, fuse int
		index, err = starlark.AsInt32(item[0])
		if err != nil {
			err = &ErrType{Name: name, Want: "int index", Got: item[0].Type()}
			return
		}
		fuse, err = starlark.AsInt32(item[1])
		if err != nil {
			err = &ErrType{Name: name, Want: "int value", Got: item[1].Type()}
			return
		}
		if index < 0 || fuse < 0 || fuse > 0xff {
			err = &ErrValue{Name: name, Value: item.String()}
			return
		}
		fuses[index] = byte(fuse)
	}
	*dst = fuses
	return
}
