package steps

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Поля шагов задаются строками по имени yaml-тега.
// Списки - через запятую, словари - через точку в имени поля
// (aggregations.amount=sum) или целиком ("amount=sum, qty=count").

// Set присваивает значение поля шага
func Set(s Step, field, value string) error {
	name, key, dotted := strings.Cut(strings.TrimSpace(field), ".")
	fv, ok := lookupField(s, name)
	if !ok {
		return &ParamError{Kind: s.Kind(), Field: field, Message: "unknown field"}
	}

	switch fv.Kind() {
	case reflect.String:
		if dotted {
			return &ParamError{Kind: s.Kind(), Field: field, Message: "field is not a map"}
		}
		fv.SetString(strings.TrimSpace(value))

	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return &ParamError{Kind: s.Kind(), Field: field, Message: err.Error()}
		}
		fv.SetBool(b)

	case reflect.Slice:
		switch fv.Type().Elem().Kind() {
		case reflect.String:
			fv.Set(reflect.ValueOf(splitList(value)))
		case reflect.Int:
			ints, err := parseInts(value)
			if err != nil {
				return &ParamError{Kind: s.Kind(), Field: field, Message: err.Error()}
			}
			fv.Set(reflect.ValueOf(ints))
		}

	case reflect.Map:
		if fv.IsNil() {
			fv.Set(reflect.ValueOf(map[string]string{}))
		}
		m := fv.Interface().(map[string]string)
		if dotted {
			key = strings.TrimSpace(key)
			if key == "" {
				return &ParamError{Kind: s.Kind(), Field: field, Message: "empty map key"}
			}
			if strings.TrimSpace(value) == "" {
				delete(m, key)
			} else {
				m[key] = strings.TrimSpace(value)
			}
			return nil
		}
		parsed, err := parsePairs(value)
		if err != nil {
			return &ParamError{Kind: s.Kind(), Field: field, Message: err.Error()}
		}
		fv.Set(reflect.ValueOf(parsed))

	default:
		return &ParamError{Kind: s.Kind(), Field: field, Message: "unsupported field type"}
	}
	return nil
}

// Values возвращает текущие значения полей шага в строковом виде.
// Словари раскладываются в ключи вида name.key.
func Values(s Step) map[string]string {
	out := map[string]string{}
	v, ok := structValue(s)
	if !ok {
		return out
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := tagName(t.Field(i))
		if name == "" {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.String:
			out[name] = fv.String()
		case reflect.Bool:
			out[name] = strconv.FormatBool(fv.Bool())
		case reflect.Slice:
			switch list := fv.Interface().(type) {
			case []string:
				out[name] = strings.Join(list, ",")
			case []int:
				parts := make([]string, len(list))
				for j, n := range list {
					parts[j] = strconv.Itoa(n)
				}
				out[name] = strings.Join(parts, ",")
			}
		case reflect.Map:
			m, _ := fv.Interface().(map[string]string)
			for k, val := range m {
				out[name+"."+k] = val
			}
		}
	}
	return out
}

// FieldNames возвращает имена полей шага в порядке объявления
func FieldNames(s Step) []string {
	v, ok := structValue(s)
	if !ok {
		return nil
	}
	t := v.Type()
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := tagName(t.Field(i)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// HasField проверяет, есть ли у шага поле
func HasField(s Step, name string) bool {
	_, ok := lookupField(s, name)
	return ok
}

// structValue возвращает структуру, на которую указывает шаг
func structValue(s Step) (reflect.Value, bool) {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return v.Elem(), true
}

func lookupField(s Step, name string) (reflect.Value, bool) {
	v, ok := structValue(s)
	if !ok {
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("yaml")
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "y":
		return true, nil
	case "false", "0", "no", "off", "n", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean '%s'", s)
}

// splitList разбивает список через запятую, отбрасывая пустые элементы
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	parts := splitList(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer '%s'", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func parsePairs(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, part := range splitList(s) {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			k, v, ok = strings.Cut(part, ":")
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got '%s'", part)
		}
		out[k] = v
	}
	return out, nil
}

// sortedKeys возвращает ключи словаря по возрастанию
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone возвращает копию шага; словари и списки копируются
func Clone(s Step) Step {
	src, ok := structValue(s)
	if !ok {
		return s
	}
	dst := reflect.New(src.Type())
	dst.Elem().Set(src)
	for i := 0; i < src.NumField(); i++ {
		f := dst.Elem().Field(i)
		switch f.Kind() {
		case reflect.Map:
			if f.IsNil() {
				continue
			}
			m := reflect.MakeMapWithSize(f.Type(), f.Len())
			iter := f.MapRange()
			for iter.Next() {
				m.SetMapIndex(iter.Key(), iter.Value())
			}
			f.Set(m)
		case reflect.Slice:
			if f.IsNil() {
				continue
			}
			c := reflect.MakeSlice(f.Type(), f.Len(), f.Len())
			reflect.Copy(c, f)
			f.Set(c)
		}
	}
	return dst.Interface().(Step)
}
