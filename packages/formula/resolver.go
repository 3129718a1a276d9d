package formula

import "strings"

// ResolveReference reads ref from the grid of ctx. Cell and area
// references become an Area operand; failures become error values:
// #REF! for deleted or missing sheets and cyclic names, #NAME? for names
// that no longer exist.
func ResolveReference(ctx *EvaluationContext, ref Reference) Operand {
	var visited map[string]struct{}
	for ref.Kind == RefName {
		key := strings.ToUpper(ref.Name)
		if _, seen := visited[key]; seen {
			return valueOperand(NewError(ErrorCodeRef))
		}
		if visited == nil {
			visited = make(map[string]struct{})
		}
		visited[key] = struct{}{}

		target, ok := ctx.Grid.DefinedName(ref.Name)
		if !ok {
			return valueOperand(NewError(ErrorCodeName))
		}
		ref = target
	}

	first, last := ref.Sheet, ref.LastSheet
	if first == SheetCurrent {
		first, last = ctx.Sheet, ctx.Sheet
	}
	count := ctx.Grid.SheetCount()
	for s := first; s <= last; s++ {
		if s < 0 || s >= count || ctx.Grid.IsSheetDeleted(s) {
			return valueOperand(NewError(ErrorCodeRef))
		}
	}
	if !ref.First.inBounds() || !ref.Last.inBounds() {
		return valueOperand(NewError(ErrorCodeRef))
	}
	return areaOperand(newGridArea(ctx.Grid, first, last, ref.First, ref.Last, ref.Kind == RefCell))
}

// ResolveValue resolves a single-cell reference to its value. Areas are
// reduced by implicit intersection with the evaluated cell.
func ResolveValue(ctx *EvaluationContext, ref Reference) Value {
	c := &CallContext{EvaluationContext: ctx, kind: KindCell}
	return c.Scalar(ResolveReference(ctx, ref))
}
