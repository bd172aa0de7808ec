package boot

import "testing"

func TestStateCanAdvance(t *testing.T) {
	all := []State{StateProtocolCheck, StateFeatureCheck, StateTableBootstrap, StateModeTransition, StateHandoff, StateFault}

	for _, from := range all {
		for _, to := range all {
			exp := from != StateFault && (to == StateFault || to == from+1)
			if got := from.CanAdvance(to); got != exp {
				t.Errorf("expected %s -> %s allowed=%t; got %t", from, to, exp, got)
			}
		}
	}
}

func TestStateString(t *testing.T) {
	specs := []struct {
		state State
		exp   string
	}{
		{StateProtocolCheck, "protocol-check"},
		{StateFeatureCheck, "feature-check"},
		{StateTableBootstrap, "table-bootstrap"},
		{StateModeTransition, "mode-transition"},
		{StateHandoff, "handoff"},
		{StateFault, "fault"},
		{State(42), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.state.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestFaults(t *testing.T) {
	specs := []struct {
		fault    *Fault
		expCode  Code
		expDigit byte
		expClass Class
	}{
		{FaultBadMagic, CodeBadMagic, '0', UnsupportedBootProtocol},
		{FaultNoCPUID, CodeNoCPUID, '1', UnsupportedCPU},
		{FaultNoLongMode, CodeNoLongMode, '2', UnsupportedCPU},
		{FaultNullHandoff, CodeNullHandoff, '4', UnsupportedBootProtocol},
	}

	for specIndex, spec := range specs {
		f := spec.fault
		if f.Code != spec.expCode || f.Code.Digit() != spec.expDigit || f.Class != spec.expClass {
			t.Errorf("[spec %d] expected code %d (%c) class %s; got %d (%c) class %s",
				specIndex, spec.expCode, spec.expDigit, spec.expClass, f.Code, f.Code.Digit(), f.Class)
		}

		var err error = f
		if err.Error() != f.Err.Message {
			t.Errorf("[spec %d] expected error %q; got %q", specIndex, f.Err.Message, err.Error())
		}
	}

	if got := CodeReserved.Digit(); got != '3' {
		t.Errorf("expected reserved code digit '3'; got %c", got)
	}

	if got := Class(9).String(); got != "unknown" {
		t.Errorf("expected unknown class; got %q", got)
	}
}
