package journal

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

var (
	// ErrValidation 表示输入不满足数据模型约束。
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 表示后端中不存在请求的对象。
	ErrNotFound = errors.New("not found")
)

// Entry 是某一天的完整记录。全零记录同样是有效的“已记录”日期。
type Entry struct {
	PainLevel   int `json:"painLevel" validate:"gte=0,lte=4"`
	PeakPain    int `json:"peakPain" validate:"gte=0,lte=4"`
	Tinnitus    int `json:"tinnitus" validate:"gte=0,lte=4"`
	Ocular      int `json:"ocular" validate:"gte=0,lte=4"`
	SleepIssues int `json:"sleepIssues" validate:"gte=0,lte=4"`

	Paracetamol int `json:"paracetamol" validate:"gte=0"`
	Ibuprofen   int `json:"ibuprofen" validate:"gte=0"`
	Aspirin     int `json:"aspirin" validate:"gte=0"`
	Triptan     int `json:"triptan" validate:"gte=0"`
	// Codeine 在界面上显示为 "Ice"，字段名沿用历史数据。
	Codeine int `json:"codeine" validate:"gte=0"`

	OtherMeds string `json:"otherMeds"`
	Triggers  string `json:"triggers"`
	Notes     string `json:"notes"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// FieldKind 区分离散控件与自由文本。
type FieldKind int

const (
	KindScale FieldKind = iota
	KindDose
	KindText
)

type fieldSpec struct {
	goName string
	kind   FieldKind
}

// Fields 是可编辑字段的 JSON 名称，顺序与表单一致。
var Fields = []string{
	"painLevel", "peakPain", "tinnitus", "ocular", "sleepIssues",
	"paracetamol", "ibuprofen", "aspirin", "triptan", "codeine",
	"otherMeds", "triggers", "notes",
}

var fieldSpecs = map[string]fieldSpec{
	"painLevel":   {"PainLevel", KindScale},
	"peakPain":    {"PeakPain", KindScale},
	"tinnitus":    {"Tinnitus", KindScale},
	"ocular":      {"Ocular", KindScale},
	"sleepIssues": {"SleepIssues", KindScale},
	"paracetamol": {"Paracetamol", KindDose},
	"ibuprofen":   {"Ibuprofen", KindDose},
	"aspirin":     {"Aspirin", KindDose},
	"triptan":     {"Triptan", KindDose},
	"codeine":     {"Codeine", KindDose},
	"otherMeds":   {"OtherMeds", KindText},
	"triggers":    {"Triggers", KindText},
	"notes":       {"Notes", KindText},
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// KindOf 返回字段类别，未知字段返回 false。
func KindOf(field string) (FieldKind, bool) {
	spec, ok := fieldSpecs[field]
	return spec.kind, ok
}

// IsTextField 判断字段是否为自由文本。
func IsTextField(field string) bool {
	kind, ok := KindOf(field)
	return ok && kind == KindText
}

// Normalize 去除文本字段首尾空白。
func (e Entry) Normalize() Entry {
	e.OtherMeds = strings.TrimSpace(e.OtherMeds)
	e.Triggers = strings.TrimSpace(e.Triggers)
	e.Notes = strings.TrimSpace(e.Notes)
	return e
}

// Validate 校验所有字段的取值范围。
func (e Entry) Validate() error {
	if err := getValidator().Struct(e); err != nil {
		return validationError(err)
	}
	return nil
}

// Set 按 JSON 字段名赋值。数值会做宽松转换（"3"、3.0 均可），随后只校验该字段。
func (e *Entry) Set(field string, value any) error {
	spec, ok := fieldSpecs[field]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrValidation, field)
	}

	if spec.kind == KindText {
		text, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be text", ErrValidation, field)
		}
		e.setText(field, strings.TrimSpace(text))
	} else {
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be a whole number", ErrValidation, field)
		}
		e.setInt(field, n)
	}

	if err := getValidator().StructPartial(*e, spec.goName); err != nil {
		return validationError(err)
	}
	return nil
}

// Value 按 JSON 字段名取值，文本字段返回 string，其余返回 int。
func (e Entry) Value(field string) any {
	switch field {
	case "painLevel":
		return e.PainLevel
	case "peakPain":
		return e.PeakPain
	case "tinnitus":
		return e.Tinnitus
	case "ocular":
		return e.Ocular
	case "sleepIssues":
		return e.SleepIssues
	case "paracetamol":
		return e.Paracetamol
	case "ibuprofen":
		return e.Ibuprofen
	case "aspirin":
		return e.Aspirin
	case "triptan":
		return e.Triptan
	case "codeine":
		return e.Codeine
	case "otherMeds":
		return e.OtherMeds
	case "triggers":
		return e.Triggers
	case "notes":
		return e.Notes
	}
	return nil
}

func (e *Entry) setInt(field string, n int) {
	switch field {
	case "painLevel":
		e.PainLevel = n
	case "peakPain":
		e.PeakPain = n
	case "tinnitus":
		e.Tinnitus = n
	case "ocular":
		e.Ocular = n
	case "sleepIssues":
		e.SleepIssues = n
	case "paracetamol":
		e.Paracetamol = n
	case "ibuprofen":
		e.Ibuprofen = n
	case "aspirin":
		e.Aspirin = n
	case "triptan":
		e.Triptan = n
	case "codeine":
		e.Codeine = n
	}
}

func (e *Entry) setText(field, text string) {
	switch field {
	case "otherMeds":
		e.OtherMeds = text
	case "triggers":
		e.Triggers = text
	case "notes":
		e.Notes = text
	}
}

// SameContent 比较除 UpdatedAt 之外的所有字段。
func (e Entry) SameContent(other Entry) bool {
	e.UpdatedAt = time.Time{}
	other.UpdatedAt = time.Time{}
	return e == other
}

// TotalDoses 是所有计量药物（含冰敷）的次数总和。
func (e Entry) TotalDoses() int {
	return e.Paracetamol + e.Ibuprofen + e.Aspirin + e.Triptan + e.Codeine
}

// UsedPainkiller 判断当天是否服用了止痛药，冰敷不算。
func (e Entry) UsedPainkiller() bool {
	return e.Paracetamol > 0 || e.Ibuprofen > 0 || e.Aspirin > 0 || e.Triptan > 0
}

// UsedPainRelief 在止痛药的基础上把冰敷也算进去。
func (e Entry) UsedPainRelief() bool {
	return e.UsedPainkiller() || e.Codeine > 0
}

// MedsSummary 生成 "Paracetamol: 2, Ice: 1" 形式的摘要，没有用药时返回 "None"。
func (e Entry) MedsSummary() string {
	parts := make([]string, 0, 6)
	add := func(label string, n int) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", label, n))
		}
	}
	add("Paracetamol", e.Paracetamol)
	add("Ibuprofen", e.Ibuprofen)
	add("Aspirin", e.Aspirin)
	add("Triptan", e.Triptan)
	add("Ice", e.Codeine)
	if e.OtherMeds != "" {
		parts = append(parts, e.OtherMeds)
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, ", ")
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, nil
		}
		return cast.ToIntE(trimmed)
	}
	return cast.ToIntE(value)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %s=%s", ErrValidation, lowerFirst(fe.Field()), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
