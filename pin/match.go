package pin

// CheckSpecsMatch reports whether two pin-spec collections match: same
// cardinality, and every element of left has a counterpart in right equal by
// (Name, Category). Order independent; O(n²) is acceptable given the
// MaxPinsPerDirection cap.
func CheckSpecsMatch(left, right []Spec) bool {
	if len(left) != len(right) {
		return false
	}

	for _, l := range left {
		found := false
		for _, r := range right {
			if l.Matches(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// CheckInstancesMatchSpecs reports whether a set of live pins structurally
// matches a set of declared pins by name. Used as the sanity check that a
// graph node's pins agree with its backing node's declared pins; callers
// strip orphaned instances and invalid specs before comparing.
func CheckInstancesMatchSpecs(instances []*Instance, specs []Spec) bool {
	if len(instances) != len(specs) {
		return false
	}

	for _, spec := range specs {
		found := false
		for _, inst := range instances {
			if inst.Spec.Name == spec.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// FilterOrphaned returns only the non-orphaned instances, preserving order.
func FilterOrphaned(instances []*Instance) []*Instance {
	result := make([]*Instance, 0, len(instances))
	for _, inst := range instances {
		if !inst.Orphaned {
			result = append(result, inst)
		}
	}
	return result
}
