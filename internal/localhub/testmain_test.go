package localhub_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies no event-loop goroutine outlives its test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
