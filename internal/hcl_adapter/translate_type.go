// This file parses parameter type expressions such as `string`, `array` or
// `list(string)` into declared parameter types.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/pipegrid/internal/config"
	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// HCL-native keywords accepted as aliases of the declared parameter types.
var typeAliases = map[string]config.ParamType{
	"list":  config.ParamArray,
	"tuple": config.ParamArray,
	"set":   config.ParamArray,
	"map":   config.ParamObject,
}

// paramTypeFromExpr converts a type expression into a parameter type. An
// omitted type means string.
func paramTypeFromExpr(ctx context.Context, expr hcl.Expression) (config.ParamType, error) {
	logger := ctxlog.FromContext(ctx)
	if !isExprDefined(ctx, expr, "type") {
		return config.ParamString, nil
	}

	switch v := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return "", fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		logger.Debug("Parsing type expression as a keyword.", "keyword", v.Traversal.RootName())
		return keywordType(v.Traversal.RootName())

	case *hclsyntax.TemplateExpr:
		if len(v.Parts) == 1 {
			if lit, ok := v.Parts[0].(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type() == cty.String {
				return keywordType(lit.Val.AsString())
			}
		}
		return "", fmt.Errorf("type must be a keyword or a literal string")

	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a constructor.", "call", v.Name)
		if v.Name == "object" {
			return config.ParamObject, nil
		}
		if t, ok := typeAliases[v.Name]; ok {
			return t, nil
		}
		return "", fmt.Errorf("unknown type constructor %q", v.Name)

	default:
		return "", fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

func keywordType(keyword string) (config.ParamType, error) {
	if t, ok := typeAliases[keyword]; ok {
		return t, nil
	}
	return config.ParseParamType(keyword)
}
