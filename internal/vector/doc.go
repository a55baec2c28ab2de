// Package vector implements the numeric post-processing applied to model
// output: mean pooling over tokens, L2 normalization and dimension
// reconciliation.
//
// All functions are pure. They never mutate their inputs and always return
// freshly allocated slices.
package vector
