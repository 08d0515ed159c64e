package service

import (
	"context"
	"errors"
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"cj_dropship_v1/internal/model"
	"cj_dropship_v1/internal/repository"
	"cj_dropship_v1/pkg/cj"
)

// ==================== 轴检测 ====================

// 变体记录中不参与轴检测的保留字段
var excludedVariantFields = map[string]bool{
	cj.FieldVariantID:        true,
	cj.FieldVariantSku:       true,
	cj.FieldVariantImage:     true,
	cj.FieldVariantSellPrice: true,
	cj.FieldVariantStock:     true,
}

// 目录保留属性码，撞上时加前缀避开
var reservedAttributeCodes = map[string]bool{
	"url_key":      true,
	"status":       true,
	"visibility":   true,
	"category_ids": true,
}

// 属性码长度上限
const maxAttributeCodeLen = 30

// Axis 检测出的可配置属性轴
type Axis struct {
	SourceField string   `json:"source_field"` // 供应商侧原始字段名
	Code        string   `json:"code"`         // 清洗后的属性码
	Label       string   `json:"label"`        // 展示名，保留原始字段名
	Values      []string `json:"values"`       // 去重后的取值，按首次出现顺序
}

// AxisSelectionMode 导入时属性轴的选择方式
type AxisSelectionMode int

const (
	// AxisAuto 自动使用检测出的全部轴
	AxisAuto AxisSelectionMode = iota
	// AxisExplicit 只使用调用方指定的轴
	AxisExplicit
)

// ==================== AttributeService ====================

// ResolvedAxis 解析落库后的轴
type ResolvedAxis struct {
	Axis
	AttributeID int64
}

// AttributeService 变体轴检测与目录属性解析
type AttributeService interface {
	// DetectAxes 从变体记录中检测可配置属性轴
	// 同样的输入总是产出同样的轴顺序和取值顺序
	DetectAxes(variants []cj.VariantRecord) []Axis

	// SanitizeCode 把任意字段名清洗为合法属性码，总是返回合法结果
	SanitizeCode(field string) string

	// Resolve 把轴落到目录属性：不存在则创建，存在则只追加缺失的选项
	Resolve(ctx context.Context, axes []Axis) ([]ResolvedAxis, error)

	// ResolveSelected 按选择模式过滤后解析
	// Explicit 模式下无法匹配的选择项记录日志后跳过，不中断导入
	ResolveSelected(ctx context.Context, axes []Axis, mode AxisSelectionMode, selected []string) ([]ResolvedAxis, error)
}

type attributeService struct {
	attrs repository.AttributeRepository
}

func NewAttributeService(attrs repository.AttributeRepository) AttributeService {
	return &attributeService{attrs: attrs}
}

// DetectAxes 检测属性轴
// 规则：
//  1. 跳过保留字段，其余字段按首次出现顺序作为候选轴
//  2. 值先统一转字符串再去重（数字 1 和 "1" 视为同一取值）
//  3. 清洗后属性码相同的轴合并取值
//  4. 去重后不足 2 个取值的轴丢弃（单一取值无法区分变体）
func (s *attributeService) DetectAxes(variants []cj.VariantRecord) []Axis {
	type axisAccum struct {
		axis *Axis
		seen map[string]bool
	}

	var order []string // 属性码的首次出现顺序
	accum := make(map[string]*axisAccum)

	for _, variant := range variants {
		// map 迭代无序，按排序后的键走保证确定性
		keys := make([]string, 0, len(variant))
		for k := range variant {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, field := range keys {
			if excludedVariantFields[field] {
				continue
			}

			value := cj.CoerceString(variant[field])
			if value == "" {
				continue
			}

			code := s.SanitizeCode(field)
			acc, ok := accum[code]
			if !ok {
				acc = &axisAccum{
					axis: &Axis{SourceField: field, Code: code, Label: field},
					seen: make(map[string]bool),
				}
				accum[code] = acc
				order = append(order, code)
			}
			if !acc.seen[value] {
				acc.seen[value] = true
				acc.axis.Values = append(acc.axis.Values, value)
			}
		}
	}

	axes := make([]Axis, 0, len(order))
	for _, code := range order {
		axis := accum[code].axis
		if len(axis.Values) < 2 {
			continue
		}
		axes = append(axes, *axis)
	}
	return axes
}

var nonAttributeChar = regexp.MustCompile(`[^a-z0-9_]`)

// SanitizeCode 清洗属性码
// 任意输入都能得到匹配 ^[a-z][a-z0-9_]{0,29}$ 的结果
func (s *attributeService) SanitizeCode(field string) string {
	code := strings.ToLower(field)
	code = nonAttributeChar.ReplaceAllString(code, "_")

	// 必须以字母开头
	if code == "" || !unicode.IsLower(rune(code[0])) {
		code = "attr_" + code
	}

	if len(code) > maxAttributeCodeLen {
		code = code[:maxAttributeCodeLen]
	}

	// 避开目录保留码，加前缀后再次截断
	if reservedAttributeCodes[code] {
		code = "cj_" + code
		if len(code) > maxAttributeCodeLen {
			code = code[:maxAttributeCodeLen]
		}
	}
	return code
}

// Resolve 把轴落到目录属性
func (s *attributeService) Resolve(ctx context.Context, axes []Axis) ([]ResolvedAxis, error) {
	resolved := make([]ResolvedAxis, 0, len(axes))

	for _, axis := range axes {
		attr, err := s.attrs.GetByCode(ctx, axis.Code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			attr = &model.CatalogAttribute{
				Code:         axis.Code,
				Label:        axis.Label,
				InputType:    "select",
				Configurable: true,
			}
			if err := s.attrs.Create(ctx, attr); err != nil {
				return nil, err
			}
			log.Printf("[Attribute] 创建属性 %s (label=%s)", axis.Code, axis.Label)
		} else if err != nil {
			return nil, err
		}

		// 选项只追加，已有的 label 不动
		if err := s.attrs.AddOptions(ctx, attr.ID, axis.Values); err != nil {
			return nil, err
		}

		resolved = append(resolved, ResolvedAxis{Axis: axis, AttributeID: attr.ID})
	}
	return resolved, nil
}

// ResolveSelected 按选择模式解析
func (s *attributeService) ResolveSelected(ctx context.Context, axes []Axis, mode AxisSelectionMode, selected []string) ([]ResolvedAxis, error) {
	if mode == AxisAuto {
		return s.Resolve(ctx, axes)
	}

	byCode := make(map[string]Axis, len(axes))
	for _, axis := range axes {
		byCode[axis.Code] = axis
	}

	var picked []Axis
	for _, sel := range selected {
		code := s.SanitizeCode(sel)
		axis, ok := byCode[code]
		if !ok {
			// 选择项在检测结果中不存在时跳过该轴，导入继续
			log.Printf("[Attribute] 所选属性 %q 不在检测结果中，已跳过", sel)
			continue
		}
		picked = append(picked, axis)
	}
	return s.Resolve(ctx, picked)
}
