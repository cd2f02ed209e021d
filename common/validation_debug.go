//go:build debug

package common

// ENABLE_VALIDATION is the default of the validation toggle. Builds with the debug tag enable the Khronos
// validation layer and the debug report callback.
const ENABLE_VALIDATION = true
