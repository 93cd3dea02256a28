package common

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Add("127.0.0.1")
	ss.Add("10.0.0.2")
	assert.T(t, ss.Contains("127.0.0.1"), "should contain")
	assert.T(t, ss.Contains("10.0.0.2"), "should contain")
	ss.Remove("10.0.0.2")
	assert.T(t, !ss.Contains("10.0.0.2"), "should not contain")
}
