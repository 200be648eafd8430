// Package pipeline implements the order processing stages and the
// orchestrator that runs them: intake, SKU matching, pricing, insights,
// and proposal drafting. A stage failure never stops the run; every stage
// produces a usable fallback value.
package pipeline

// StageResult carries a stage outcome. When Failed is set, Value holds
// the stage's fallback and Err says what went wrong; downstream stages
// consume Value either way.
type StageResult[T any] struct {
	Value  T
	Failed bool
	Err    error
}

func succeeded[T any](v T) StageResult[T] {
	return StageResult[T]{Value: v}
}

func failedWith[T any](fallback T, err error) StageResult[T] {
	return StageResult[T]{Value: fallback, Failed: true, Err: err}
}
