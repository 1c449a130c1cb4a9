//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// State represents a pipeline run state
// ENUM(fetching,normalizing,persisting,succeeded,failed)
type State string

// Terminal reports whether no further transition can happen.
func (x State) Terminal() bool {
	return x == StateSucceeded || x == StateFailed
}
