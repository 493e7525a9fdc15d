// internal/service/ledger/infrastructure/adapter/cel_qualification_rule.go
package adapter

import (
	"reflect"

	"associate-ledger/internal/service/ledger/domain"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// CELQualificationRule 用 CEL 表达式判断订单是否为合格购买。
// 可用变量: total_amount, quantity, category, is_id_product, product_id。
// 例如: is_id_product || total_amount >= 50000
type CELQualificationRule struct {
	expr    string
	program cel.Program
}

// NewCELQualificationRule 编译表达式，表达式必须返回 bool
func NewCELQualificationRule(expr string) (*CELQualificationRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("total_amount", cel.IntType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("category", cel.StringType),
		cel.Variable("is_id_product", cel.BoolType),
		cel.Variable("product_id", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel environment")
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(domain.ErrValidation, "compile qualification rule %q: %v", expr, iss.Err())
	}
	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, errors.Wrapf(domain.ErrValidation, "qualification rule %q must return bool, got %v", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build cel program for %q", expr)
	}
	return &CELQualificationRule{expr: expr, program: prg}, nil
}

func (r *CELQualificationRule) Qualifies(facts domain.OrderFacts) (bool, error) {
	out, _, err := r.program.Eval(map[string]interface{}{
		"total_amount":  facts.TotalAmount,
		"quantity":      facts.Quantity,
		"category":      string(facts.Category),
		"is_id_product": facts.IsIDProduct,
		"product_id":    int64(facts.ProductID),
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate qualification rule %q", r.expr)
	}
	qualified, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("qualification rule %q returned %T", r.expr, out.Value())
	}
	return qualified, nil
}

func (r *CELQualificationRule) String() string {
	return r.expr
}
