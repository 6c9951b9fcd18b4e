package testutil

import (
	"os"
	"strconv"
	"time"
)

// TimeScaleEnv names the environment variable consulted by Scaled.
const TimeScaleEnv = "AETHER_TEST_TIME_SCALE"

// Scaled returns d scaled by $AETHER_TEST_TIME_SCALE. If the environment
// variable does not exist or contains an invalid value, the scale defaults to
// 1.
func Scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * getTestTimeScale())
}

func getTestTimeScale() float64 {
	env := os.Getenv(TimeScaleEnv)
	if env == "" {
		return 1
	}
	scale, err := strconv.ParseFloat(env, 64)
	if err != nil || scale <= 0 {
		return 1
	}
	return scale
}

// Eventually polls cond every tick until it returns true or the scaled
// timeout elapses. It fails the test in the latter case.
func Eventually(t Helper, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(Scaled(timeout))
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", Scaled(timeout))
		}
		time.Sleep(time.Millisecond)
	}
}
