package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/log"
)

type errStub string

func TestFlowID(t *testing.T) {
	attr := log.FlowID(api.FlowName("checkout"))
	assertAttrEqual(t, attr, "flow_id", "checkout")
}

func TestNodeID(t *testing.T) {
	attr := log.NodeID(api.NodeID("checkout.3"))
	assertAttrEqual(t, attr, "node_id", "checkout.3")
}

func TestStepName(t *testing.T) {
	attr := log.StepName(api.StepName("charge"))
	assertAttrEqual(t, attr, "step", "charge")
}

func TestExecID(t *testing.T) {
	attr := log.ExecID("exec-xyz")
	assertAttrEqual(t, attr, "exec_id", "exec-xyz")
}

func TestStatus(t *testing.T) {
	attr := log.Status("completed")
	assertAttrEqual(t, attr, "status", "completed")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
