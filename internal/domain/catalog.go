package domain

import (
	"bytes"
	"encoding/json"
)

// Catalog 是 code → Video 的有序映射。
//
// 约束：
// - 迭代顺序 = 插入顺序（即扫描顺序；只影响展示，不影响正确性）
// - 构建完成后只读：对外只暴露查询方法，返回的切片都是副本
// - 同一 code 重复插入：值被替换，位置保持首次插入的位置
type Catalog struct {
	codes  []string
	byCode map[string]Video
}

// CatalogBuilder 在构建阶段累积记录；Catalog() 之后不应继续使用。
type CatalogBuilder struct {
	codes  []string
	byCode map[string]Video
}

func NewCatalogBuilder(capacity int) *CatalogBuilder {
	if capacity < 0 {
		capacity = 0
	}
	return &CatalogBuilder{
		codes:  make([]string, 0, capacity),
		byCode: make(map[string]Video, capacity),
	}
}

// Put 以 v.Code 为键插入（last writer wins）。
func (b *CatalogBuilder) Put(v Video) {
	if _, ok := b.byCode[v.Code]; !ok {
		b.codes = append(b.codes, v.Code)
	}
	b.byCode[v.Code] = v
}

// Has 报告 code 是否已插入。
func (b *CatalogBuilder) Has(code string) bool {
	_, ok := b.byCode[code]
	return ok
}

// Catalog 冻结当前内容并返回只读 Catalog。
func (b *CatalogBuilder) Catalog() Catalog {
	c := Catalog{
		codes:  append([]string(nil), b.codes...),
		byCode: make(map[string]Video, len(b.byCode)),
	}
	for k, v := range b.byCode {
		c.byCode[k] = v
	}
	return c
}

func (c Catalog) Len() int { return len(c.codes) }

func (c Catalog) Get(code string) (Video, bool) {
	v, ok := c.byCode[code]
	return v, ok
}

// Codes 按插入顺序返回所有 code（副本）。
func (c Catalog) Codes() []string {
	return append([]string(nil), c.codes...)
}

// Videos 按插入顺序返回所有记录（副本）。
func (c Catalog) Videos() []Video {
	out := make([]Video, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, c.byCode[code])
	}
	return out
}

// Each 按插入顺序遍历；fn 返回 false 时提前结束。
func (c Catalog) Each(fn func(code string, v Video) bool) {
	for _, code := range c.codes {
		if !fn(code, c.byCode[code]) {
			return
		}
	}
}

// MarshalJSON 输出按插入顺序排列的 JSON 对象（encoding/json 的 map 会按键排序，这里不能用）。
func (c Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, code := range c.codes {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(code)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.byCode[code])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
