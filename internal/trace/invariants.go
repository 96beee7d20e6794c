package trace

import (
	"fmt"

	"stepviz/internal/model"
)

// CheckSteps verifies the ordering and heap invariants of a trace:
// stepId strictly increases, every pointer variable references an address in
// the same step's heap, and no heap address disappears once seen.
func CheckSteps(steps []model.ExecutionStep) error {
	seen := map[string]bool{}
	for i, step := range steps {
		if i > 0 && step.StepID <= steps[i-1].StepID {
			return fmt.Errorf("step %d: stepId %d does not follow %d", i, step.StepID, steps[i-1].StepID)
		}
		if step.Line < 1 {
			return fmt.Errorf("step %d: invalid line %d", step.StepID, step.Line)
		}

		addrs := step.HeapAddresses()
		for addr := range seen {
			if !addrs[addr] {
				return fmt.Errorf("step %d: heap object %s disappeared", step.StepID, addr)
			}
		}
		for addr := range addrs {
			seen[addr] = true
		}

		for _, frame := range step.Stack {
			for _, v := range frame.Variables {
				if v.IsPointer && !addrs[v.Address] {
					return fmt.Errorf("step %d: %s.%s points to %q, absent from heap",
						step.StepID, frame.FunctionName, v.Name, v.Address)
				}
			}
		}
	}
	return nil
}
