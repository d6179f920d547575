package utils

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/google/go-querystring/query"
)

func FormatObject(obj interface{}) (string, error) {
	loggableMap := make(map[string]interface{})

	v := reflect.ValueOf(obj)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		jsonOutput, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return "", err
		}
		return string(jsonOutput), nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Func {
			loggableMap[fieldType.Name] = "<function>"
			continue
		}

		if !field.CanInterface() {
			continue
		}
		if fieldType.Tag.Get("log") == "secret" {
			loggableMap[fieldType.Name] = MaskSecret(fmt.Sprint(field.Interface()))
			continue
		}
		loggableMap[fieldType.Name] = field.Interface()
	}

	jsonOutput, err := json.MarshalIndent(loggableMap, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonOutput), nil
}

func EncodeURLParams(params interface{}) (string, error) {
	v, err := query.Values(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode url param: %w", err)
	}
	return v.Encode(), nil
}

func BeautifyJSON(data []byte) string {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return string(data)
	}
	pretty, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return string(data)
	}
	return string(pretty)
}

// MaskSecret keeps a short head and tail of long values, e.g. cookies.
func MaskSecret(v string) string {
	const keep = 8
	if v == "" {
		return "None"
	}
	if len(v) <= 15 {
		return "***"
	}
	return v[:keep] + "..." + v[len(v)-5:]
}

// TruncateForLog cuts long response bodies before they reach the log file.
func TruncateForLog(value string, length int) string {
	if length <= 0 || len(value) <= length {
		return value
	}
	return value[:length] + "...(truncated)"
}

// RandomDuration returns a uniformly random duration in [0, max].
func RandomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	secs := int64(max / time.Second)
	n, err := rand.Int(rand.Reader, big.NewInt(secs+1))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64()) * time.Second
}
