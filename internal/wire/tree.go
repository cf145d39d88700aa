package wire

// ConvertKeysToSnake walks a decoded JSON value (the shapes produced by
// encoding/json into interface{}: map[string]interface{}, []interface{}, and
// scalars) and rewrites every map key from lowerCamelCase to snake_case. It
// does not mutate its argument; it returns a new tree.
func ConvertKeysToSnake(v interface{}) interface{} {
	return convertKeys(v, ToSnakeCase)
}

// ConvertKeysToCamel is the inverse of ConvertKeysToSnake, used when
// serializing an outgoing request or response.
func ConvertKeysToCamel(v interface{}) interface{} {
	return convertKeys(v, ToCamelCase)
}

func convertKeys(v interface{}, convert func(string) string) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[convert(k)] = convertKeys(val, convert)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = convertKeys(val, convert)
		}
		return out
	default:
		return v
	}
}
