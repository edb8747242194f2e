package table

import (
	"math"
	"strconv"
	"strings"

	"github.com/ruslano69/tdtp-stepflow/pkg/core/schema"
)

// Key строит ключ значений для группировки и сравнения строк.
// Значения, равные по schema.Same, дают одинаковый ключ: 1 и 1.0 совпадают,
// NULL совпадает только с NULL.
func Key(values ...schema.Value) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		writeKey(&b, v)
	}
	return b.String()
}

// RowKey строит ключ по колонкам idx строки; nil idx - по всем колонкам
func RowKey(row []schema.Value, idx []int) string {
	if idx == nil {
		return Key(row...)
	}
	vals := make([]schema.Value, len(idx))
	for i, j := range idx {
		vals[i] = row[j]
	}
	return Key(vals...)
}

func writeKey(b *strings.Builder, v schema.Value) {
	switch v.Kind() {
	case schema.KindNull:
		b.WriteByte('0')
	case schema.KindInt:
		b.WriteByte('n')
		b.WriteString(strconv.FormatInt(v.IntValue(), 10))
	case schema.KindFloat:
		b.WriteByte('n')
		f := v.FloatValue()
		if f == math.Trunc(f) && math.Abs(f) < 1<<62 {
			b.WriteString(strconv.FormatInt(int64(f), 10))
		} else {
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
	case schema.KindBool:
		b.WriteByte('b')
		b.WriteString(v.String())
	case schema.KindTime:
		b.WriteByte('t')
		b.WriteString(strconv.FormatInt(v.TimeValue().UnixNano(), 10))
	default:
		b.WriteByte('s')
		b.WriteString(v.String())
	}
}
