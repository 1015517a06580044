// Package util 设备输出的字符集处理。
package util

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// 自动探测时的尝试顺序，国产设备常见 GB18030/GBK 输出
var autoEncodings = []encoding.Encoding{
	simplifiedchinese.GB18030,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
	charmap.Windows1252,
}

var named = map[string]encoding.Encoding{
	"gb18030": simplifiedchinese.GB18030,
	"gbk":     simplifiedchinese.GBK,
	"gb2312":  simplifiedchinese.HZGB2312,
	"big5":    traditionalchinese.Big5,
	"latin1":  charmap.ISO8859_1,
	"cp1252":  charmap.Windows1252,
}

// EnsureUTF8Bytes 合法 UTF-8 原样返回，否则依次尝试常见编码；全部失败时按字节直接转换
func EnsureUTF8Bytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if utf8.Valid(b) {
		return string(b)
	}
	for _, enc := range autoEncodings {
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
	}
	return string(b)
}

// Decoder 按配置名返回解码函数：auto/空 为自动探测，utf-8 为原样转换
func Decoder(name string) (func([]byte) string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "", "auto":
		return EnsureUTF8Bytes, nil
	case "utf-8", "utf8":
		return func(b []byte) string { return string(b) }, nil
	}
	enc, ok := named[key]
	if !ok {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return func(b []byte) string {
		if utf8.Valid(b) {
			return string(b)
		}
		if s, ok := tryDecode(enc, b); ok {
			return s
		}
		return string(b)
	}, nil
}

func tryDecode(enc encoding.Encoding, b []byte) (string, bool) {
	reader := transform.NewReader(bytes.NewReader(b), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", false
	}
	if utf8.Valid(decoded) {
		return string(decoded), true
	}
	return "", false
}
