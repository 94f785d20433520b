package evaluator

import "fmt"

// bucket computes the consistent-hashing bucket used by Rollout flags:
// a djb2-variant 32-bit hash of "{seed}:{key}:{userID}", reduced mod 100.
//
// This is the one function spec.md's Open Question (a) requires to be
// fixed and documented rather than picked per implementation: given
// identical (seed, key, userID), every flagcore deployment must agree on
// the bucket, so the exact bit-mixing is nailed down here and pinned by
// bucket_test.go's published test vector. No third-party library exposes
// "djb2 mod 100" as a primitive, so this is intentionally hand-written
// rather than imported (see DESIGN.md's standard-library justification).
func bucket(seed, key, userID string) int {
	input := fmt.Sprintf("%s:%s:%s", seed, key, userID)
	var hash uint32 = 5381
	for i := 0; i < len(input); i++ {
		hash = ((hash << 5) + hash) + uint32(input[i]) // hash*33 + c
	}
	return int(hash % 100)
}
