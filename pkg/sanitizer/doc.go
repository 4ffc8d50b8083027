// Package sanitizer provides input normalization for user-supplied data.
//
// All normalization functions are idempotent - applying them multiple times
// produces the same result. Functions handle invalid input gracefully,
// typically by returning empty strings rather than errors.
//
// Normalization includes:
//   - Phone numbers: Convert to E.164 format (+[country][number])
//   - Names and notes: Collapse whitespace, trim leading/trailing spaces
//   - Message text: Trim, preserve interior whitespace and newlines
package sanitizer
