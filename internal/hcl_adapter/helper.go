package hcl_adapter

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/pipegrid/internal/ctxlog"
)

// isExprDefined reports whether an attribute was present in the source. The
// decoder fills omitted optional expression fields with zero-width
// placeholders, so a nil check is not enough.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	defined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checked HCL attribute presence.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", defined,
	)
	return defined
}
