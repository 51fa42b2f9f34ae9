// Package utils 提供推荐链路中透传的 Label。
package utils

import "strings"

// Label 记录一个 Item 的来源或处理痕迹，例如 recall_source=content|trending。
// 多个打分源贡献同一 Item 时按出现顺序累积，便于解释与 CEL 规则引用。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Parts 返回以 '|' 累积的各个值。
func (l Label) Parts() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, "|")
}

// Has 判断 v 是否为累积值之一。
func (l Label) Has(v string) bool {
	for _, p := range l.Parts() {
		if p == v {
			return true
		}
	}
	return false
}

// MergeLabel 合并同名 Label：Value 以 '|'、Source 以 ',' 累积，已存在的部分不重复追加。
func MergeLabel(existing, incoming Label) Label {
	return Label{
		Value:  appendPart(existing.Value, incoming.Value, "|"),
		Source: appendPart(existing.Source, incoming.Source, ","),
	}
}

func appendPart(acc, part, sep string) string {
	switch {
	case part == "":
		return acc
	case acc == "":
		return part
	}
	for _, p := range strings.Split(acc, sep) {
		if p == part {
			return acc
		}
	}
	return acc + sep + part
}
