package model

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Value is a single form answer: either a scalar string or an ordered
// list of strings. The zero Value is the empty scalar.
type Value struct {
	str    string
	list   []string
	isList bool
}

func Scalar(s string) Value {
	return Value{str: s}
}

func List(items ...string) Value {
	l := make([]string, len(items))
	copy(l, items)
	return Value{list: l, isList: true}
}

func (v Value) IsList() bool {
	return v.isList
}

// String returns the scalar text; lists yield "".
func (v Value) String() string {
	return v.str
}

// Items returns a copy of the list elements; scalars yield nil.
func (v Value) Items() []string {
	if !v.isList {
		return nil
	}
	l := make([]string, len(v.list))
	copy(l, v.list)
	return l
}

// Answered is true for a non-blank scalar or a list holding at least one
// non-blank element.
func (v Value) Answered() bool {
	if !v.isList {
		return strings.TrimSpace(v.str) != ""
	}
	for _, s := range v.list {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func (v Value) Equal(o Value) bool {
	if v.isList != o.isList {
		return false
	}
	if !v.isList {
		return v.str == o.str
	}
	if len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var l []string
		if err := json.Unmarshal(data, &l); err != nil {
			return errors.Wrap(err, "value list")
		}
		*v = List(l...)
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "value scalar")
		}
		*v = Scalar(s)
		return nil
	}
}

// Values maps question keys to answers.
type Values map[string]Value

func (vs Values) Clone() Values {
	c := make(Values, len(vs))
	for k, v := range vs {
		c[k] = v
	}
	return c
}

func (vs Values) AnyAnswered() bool {
	for _, v := range vs {
		if v.Answered() {
			return true
		}
	}
	return false
}
