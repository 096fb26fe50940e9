package pipeline

import (
	"context"
	"slices"
)

type buildStackKey struct{}

type buildFrame struct {
	pathname string
	kind     Kind
}

// enterBuild records that pathname is being built as kind on ctx and
// fails when it already is, which means a require chain looped back.
func enterBuild(ctx context.Context, pathname string, kind Kind) (context.Context, error) {
	stack, _ := ctx.Value(buildStackKey{}).([]buildFrame)
	frame := buildFrame{pathname, kind}
	if i := slices.Index(stack, frame); i >= 0 {
		path := make([]string, 0, len(stack)-i+1)
		for _, f := range stack[i:] {
			path = append(path, f.pathname)
		}
		return ctx, &CircularDependencyError{Path: append(path, pathname)}
	}
	return context.WithValue(ctx, buildStackKey{}, append(slices.Clip(stack), frame)), nil
}
