package query

import (
	"strconv"
	"strings"

	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
)

// Op is a filter operator.
type Op string

const (
	OpIsNull   Op = "is_null"
	OpNotNull  Op = "not_null"
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
)

func (o Op) needsValue() bool {
	return o != OpIsNull && o != OpNotNull
}

func (o Op) numeric() bool {
	switch o {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

var validOps = map[Op]bool{
	OpIsNull: true, OpNotNull: true, OpEq: true, OpNe: true,
	OpContains: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
}

type fieldKind int

const (
	kindText fieldKind = iota
	kindNumber
	kindList
)

// fieldDef binds a filterable field name to its kind and accessor.
// The registry is closed: unknown names are rejected at parse time.
type fieldDef struct {
	kind fieldKind
	text func(*domain.Product) string
	num  func(*domain.Product) (float64, bool)
	list func(*domain.Product) []string
}

var fields = map[string]fieldDef{
	"name":        {kind: kindText, text: func(p *domain.Product) string { return p.Name }},
	"brand":       {kind: kindText, text: func(p *domain.Product) string { return p.Brand }},
	"description": {kind: kindText, text: func(p *domain.Product) string { return p.Description }},
	"url":         {kind: kindText, text: func(p *domain.Product) string { return p.URL }},
	"image": {kind: kindText, text: func(p *domain.Product) string {
		if img := p.PrimaryImage(); img != nil {
			return img.URL
		}
		return ""
	}},
	"availability": {kind: kindText, text: func(p *domain.Product) string {
		if p.Availability == domain.AvailabilityUnknown {
			return ""
		}
		return string(p.Availability)
	}},
	"current_price": {kind: kindNumber, num: func(p *domain.Product) (float64, bool) {
		return deref(p.CurrentPrice)
	}},
	"original_price": {kind: kindNumber, num: func(p *domain.Product) (float64, bool) {
		return deref(p.OriginalPrice)
	}},
	"rating": {kind: kindNumber, num: func(p *domain.Product) (float64, bool) {
		if p.Rating == nil {
			return 0, false
		}
		return p.Rating.Average, true
	}},
	"rating_count": {kind: kindNumber, num: func(p *domain.Product) (float64, bool) {
		if p.Rating == nil {
			return 0, false
		}
		return float64(p.Rating.Count), true
	}},
	"variant_count": {kind: kindNumber, num: func(p *domain.Product) (float64, bool) {
		return float64(len(p.Variants)), true
	}},
	"materials": {kind: kindList, list: func(p *domain.Product) []string { return p.Materials }},
	"patterns":  {kind: kindList, list: func(p *domain.Product) []string { return p.Patterns }},
	"sizes":     {kind: kindList, list: func(p *domain.Product) []string { return p.Sizes }},
	"colors": {kind: kindList, list: func(p *domain.Product) []string {
		out := make([]string, 0, len(p.ColorInfo))
		for _, c := range p.ColorInfo {
			out = append(out, c.Label)
		}
		return out
	}},
	"categories": {kind: kindList, list: func(p *domain.Product) []string {
		out := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			out = append(out, c.Name)
		}
		return out
	}},
}

func deref(f *float64) (float64, bool) {
	if f == nil {
		return 0, false
	}
	return *f, true
}

// Filter is one parsed filter expression.
type Filter struct {
	Field string
	Op    Op
	Value string

	def      fieldDef
	numValue float64
}

// Parse parses a field:operator[:value] expression against the closed
// field registry. Colons inside the value are preserved.
func Parse(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, apperrors.InvalidArgument("empty filter expression")
	}

	parts := strings.SplitN(expr, ":", 3)
	if len(parts) < 2 {
		return nil, apperrors.InvalidArgumentf("malformed filter %q, want field:operator[:value]", expr)
	}

	field := strings.TrimSpace(parts[0])
	def, ok := fields[field]
	if !ok {
		return nil, apperrors.InvalidArgumentf("unknown filter field %q", field)
	}

	op := Op(strings.TrimSpace(parts[1]))
	if !validOps[op] {
		return nil, apperrors.InvalidArgumentf("unknown filter operator %q", string(op))
	}

	f := &Filter{Field: field, Op: op, def: def}
	if op.needsValue() {
		if len(parts) < 3 || parts[2] == "" {
			return nil, apperrors.InvalidArgumentf("operator %q requires a value", string(op))
		}
		f.Value = parts[2]
	} else if len(parts) == 3 {
		return nil, apperrors.InvalidArgumentf("operator %q takes no value", string(op))
	}

	if op.numeric() {
		if def.kind != kindNumber {
			return nil, apperrors.InvalidArgumentf("operator %q requires a numeric field, %q is not", string(op), field)
		}
	}
	if def.kind == kindNumber && op == OpContains {
		return nil, apperrors.InvalidArgumentf("operator \"contains\" does not apply to numeric field %q", field)
	}
	if def.kind == kindNumber && op.needsValue() {
		v, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			return nil, apperrors.InvalidArgumentf("field %q needs a numeric value, got %q", field, f.Value)
		}
		f.numValue = v
	}

	return f, nil
}

// Matches reports whether a product satisfies the filter. Absent
// values never match value comparisons; only is_null matches them.
func (f *Filter) Matches(p *domain.Product) bool {
	switch f.def.kind {
	case kindNumber:
		return f.matchNumber(p)
	case kindList:
		return f.matchList(p)
	default:
		return f.matchText(p)
	}
}

func (f *Filter) matchText(p *domain.Product) bool {
	v := f.def.text(p)
	switch f.Op {
	case OpIsNull:
		return v == ""
	case OpNotNull:
		return v != ""
	case OpEq:
		return strings.EqualFold(v, f.Value)
	case OpNe:
		return v != "" && !strings.EqualFold(v, f.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.Value))
	}
	return false
}

func (f *Filter) matchNumber(p *domain.Product) bool {
	v, ok := f.def.num(p)
	switch f.Op {
	case OpIsNull:
		return !ok
	case OpNotNull:
		return ok
	}
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return v == f.numValue
	case OpNe:
		return v != f.numValue
	case OpLt:
		return v < f.numValue
	case OpLte:
		return v <= f.numValue
	case OpGt:
		return v > f.numValue
	case OpGte:
		return v >= f.numValue
	}
	return false
}

func (f *Filter) matchList(p *domain.Product) bool {
	items := f.def.list(p)
	switch f.Op {
	case OpIsNull:
		return len(items) == 0
	case OpNotNull:
		return len(items) > 0
	case OpEq:
		for _, item := range items {
			if strings.EqualFold(item, f.Value) {
				return true
			}
		}
		return false
	case OpNe:
		if len(items) == 0 {
			return false
		}
		for _, item := range items {
			if strings.EqualFold(item, f.Value) {
				return false
			}
		}
		return true
	case OpContains:
		needle := strings.ToLower(f.Value)
		for _, item := range items {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
		return false
	}
	return false
}
