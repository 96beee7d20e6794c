package trace

import "stepviz/internal/model"

// MarkChanges sets Highlight on every variable that is new or whose value
// differs from the same frame's binding in the previous step.
func MarkChanges(steps []model.ExecutionStep) {
	prev := map[string]string{}
	for i := range steps {
		cur := map[string]string{}
		for f := range steps[i].Stack {
			frame := &steps[i].Stack[f]
			for v := range frame.Variables {
				variable := &frame.Variables[v]
				key := frame.ID + "/" + frame.FunctionName + "/" + variable.Name
				old, seen := prev[key]
				variable.Highlight = !seen || old != variable.Value
				cur[key] = variable.Value
			}
		}
		prev = cur
	}
}
