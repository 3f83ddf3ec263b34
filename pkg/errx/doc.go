// Package errx provides structured, code-based errors for swr-promote.
//
// Every error carries:
//   - A stable 5-digit code (e.g. "72000" for registry control-plane errors)
//   - A category description (e.g. "Registry error")
//   - A user-facing message
//   - Optional structured context (key-value pairs)
//   - Optional cause and base sentinel errors
//
// The first two digits of a code select the domain:
//   - 70xxx: CLI/argument validation errors
//   - 71xxx: Configuration errors
//   - 72xxx: Registry control-plane errors (SWR API)
//   - 73xxx: Registry authentication errors
//   - 74xxx: Container engine errors (pull, tag, push)
//   - 75xxx: Promotion flow errors
//
// The last three digits are reserved for subcodes.
//
// Example usage:
//
//	err := errx.WrapEngine("docker push failed", cause).
//		WithContext("image", "swr.ap-southeast-1.myhuaweicloud.com/myns/app:v1").
//		WithBase(sentinelErr)
//
//	if errors.Is(err, sentinelErr) {
//		// Handle specific error
//	}
//
//	fmt.Println(errx.UserString(err))  // User-friendly message
//	fmt.Println(errx.DebugString(err)) // Full debug details
package errx
