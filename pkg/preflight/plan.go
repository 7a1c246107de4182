package preflight

// Plan selects which checks Run performs.
type Plan struct {
	SourceAccessible  bool
	ReplicaAccessible bool
	ReplicaWritable   bool
	PathNesting       bool
}

// FullPlan enables every check.
func FullPlan() Plan {
	return Plan{
		SourceAccessible:  true,
		ReplicaAccessible: true,
		ReplicaWritable:   true,
		PathNesting:       true,
	}
}

// Run performs the enabled checks in order and returns the first failure.
// The writable check creates the replica directory when it is missing.
func Run(plan Plan, sourcePath, replicaPath string) error {
	if plan.PathNesting {
		if err := CheckPathNesting(sourcePath, replicaPath); err != nil {
			return err
		}
	}
	if plan.SourceAccessible {
		if err := CheckSourceAccessible(sourcePath); err != nil {
			return err
		}
	}
	if plan.ReplicaAccessible {
		if err := CheckReplicaAccessible(replicaPath); err != nil {
			return err
		}
	}
	if plan.ReplicaWritable {
		if err := CheckReplicaWritable(replicaPath); err != nil {
			return err
		}
	}
	return nil
}
