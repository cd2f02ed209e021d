//go:build !debug

package common

// ENABLE_VALIDATION is the default of the validation toggle. Release builds run without validation layers.
const ENABLE_VALIDATION = false
