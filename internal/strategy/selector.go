package strategy

// ResourceConstraints bounds how much the runner may do at once.
type ResourceConstraints struct {
	MaxConcurrency int `json:"max_concurrency"`
}

// Criteria are the static project characteristics used to pick a strategy.
type Criteria struct {
	TotalPackages          int                  `json:"total_packages"`
	HasComplexDependencies bool                 `json:"has_complex_dependencies"`
	TimeConstraintSeconds  int                  `json:"time_constraint_seconds"`
	Resources              *ResourceConstraints `json:"resources,omitempty"`
}

// SelectInitial picks the first strategy for a session. It is a pure decision
// table evaluated top to bottom.
func SelectInitial(c Criteria) Strategy {
	if c.TotalPackages <= 10 || c.TimeConstraintSeconds < 60 {
		return AllAtOnce{Parallel: false}
	}

	if c.TotalPackages <= 50 && (c.Resources == nil || c.Resources.MaxConcurrency >= 4) {
		return Batch{BatchSize: 10, Parallel: true}
	}

	if c.TotalPackages > 50 || c.HasComplexDependencies {
		maxConcurrency := 5
		if c.Resources != nil {
			maxConcurrency = c.Resources.MaxConcurrency
		}
		return DirectoryByDirectory{MaxConcurrency: maxConcurrency}
	}

	return FileByFile{StopOnFirstError: true}
}
