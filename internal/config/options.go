package config

// Options is a loosely-typed option bag used by ingress readers and backends.
// Accessors return the given default when a key is absent or has the wrong type.
type Options map[string]any

func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key].(string); ok && v != "" {
		return []rune(v)[0]
	}
	return def
}

// StringMap returns a map-valued option. YAML decodes nested maps as
// map[string]any, so string values are picked out and the rest ignored.
func (o Options) StringMap(key string) map[string]string {
	res := make(map[string]string)

	switch m := o[key].(type) {
	case map[string]string:
		for k, v := range m {
			res[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				res[k] = s
			}
		}
	}

	return res
}
