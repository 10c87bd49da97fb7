package statementcache

import "context"

type partitionsContextKey struct{}

// WithPartitions attaches additional partition names to the context. The
// coordinator merges them with the partitions the facts provider reports,
// so hosts can widen invalidation scope for statements whose effects the
// analyzer cannot see, such as triggers or stored procedures.
func WithPartitions(ctx context.Context, partitions ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(partitions) == 0 {
		return ctx
	}

	combined := append(partitionsFromContext(ctx), partitions...)
	combined = normalizePartitions(combined)
	if len(combined) == 0 {
		return ctx
	}

	return context.WithValue(ctx, partitionsContextKey{}, combined)
}

func partitionsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if partitions, ok := ctx.Value(partitionsContextKey{}).([]string); ok {
		return append([]string(nil), partitions...)
	}
	return nil
}
