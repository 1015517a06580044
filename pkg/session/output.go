package session

import (
	"bytes"
	"encoding/json"
)

// Output 按命令提交顺序保存每条命令的输出。
// 以命令文本为键：同一批次中重复的命令都会执行，后一次的输出覆盖前一次，键保持首次出现的位置。
type Output struct {
	keys   []string
	values map[string]string
}

// NewOutput 创建空结果
func NewOutput() *Output {
	return &Output{values: make(map[string]string)}
}

// Set 记录命令输出
func (o *Output) Set(command, text string) {
	if _, ok := o.values[command]; !ok {
		o.keys = append(o.keys, command)
	}
	o.values[command] = text
}

// Get 返回命令输出
func (o *Output) Get(command string) (string, bool) {
	v, ok := o.values[command]
	return v, ok
}

// Commands 按首次出现顺序返回命令
func (o *Output) Commands() []string {
	return append([]string(nil), o.keys...)
}

// Len 不同命令的数量
func (o *Output) Len() int { return len(o.keys) }

// Each 按顺序遍历
func (o *Output) Each(fn func(command, text string)) {
	for _, k := range o.keys {
		fn(k, o.values[k])
	}
}

// MarshalJSON 输出保持命令顺序的 JSON 对象
func (o *Output) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
