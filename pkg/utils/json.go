// Package utils 提供通用的 goroutine 与 JSON 工具函数
package utils

import (
	"github.com/bytedance/sonic"
)

// ToJSONPretty 将对象转换为格式化的JSON字符串
func ToJSONPretty(v any) (string, error) {
	bytes, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// FromJSONBytes 将JSON字节数组转换为对象
func FromJSONBytes[T any](data []byte) (T, error) {
	var v T
	err := sonic.Unmarshal(data, &v)
	return v, err
}

// ToJSONString 将对象转换为紧凑的JSON字符串
func ToJSONString(v any) (string, error) {
	return sonic.MarshalString(v)
}
